package ltiprovider

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	slices2 "tideland.dev/go/slices"

	"github.com/go-lti/ltiprovider/internal/utils"
	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/storage/model"
)

// LaunchState is the step a launch has reached
type LaunchState int

// Launch states in the order they are reached
const (
	StateStart LaunchState = iota
	StateParametersValidated
	StateConsumerResolved
	StateSignatureVerified
	StateContextEstablished
	StateShareResolved
	StatePersisted
	StateDone
	StateError
)

func (s LaunchState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateParametersValidated:
		return "parameters_validated"
	case StateConsumerResolved:
		return "consumer_resolved"
	case StateSignatureVerified:
		return "signature_verified"
	case StateContextEstablished:
		return "context_established"
	case StateShareResolved:
		return "share_resolved"
	case StatePersisted:
		return "persisted"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	supportedVersions = []string{lti.Version1, lti.Version2}
	documentTargets   = []string{"embed", "frame", "iframe", "window", "popup", "overlay", "none"}
	launchTargets     = documentTargets[:len(documentTargets)-1]
	contentItemFlags  = []string{"accept_unsigned", "accept_multiple", "accept_copy_advice", "auto_create", "can_confirm"}
)

// Handler processes an authenticated launch of one message type. It may set
// the Redirect or Output of the launch; a returned error fails the launch.
type Handler func(ctx context.Context, l *Launch) error

// Launch is the outcome of authenticating a LaunchRequest
type Launch struct {
	Request  *LaunchRequest
	State    LaunchState
	Consumer *lti.ToolConsumer
	// ResourceLink is the link the tool works on; for an approved share
	// this is the primary link
	ResourceLink *lti.ResourceLink
	User         *lti.User
	// MediaTypes and DocumentTargets are set for content-item selection
	MediaTypes      []string
	DocumentTargets []string
	ReturnURL       string
	Debug           bool
	// Message is the error message shown to the user
	Message     string
	Redirect    string
	Output      string
	ErrorOutput string
	Err         *Error

	link        *lti.ResourceLink
	linkChanged bool
	saveUser    bool
	deleteUser  bool
}

// OK reports whether the launch succeeded so far
func (l *Launch) OK() bool {
	return l.Err == nil
}

// Reason returns the detailed failure reason, or "" for successful launches
func (l *Launch) Reason() string {
	if l.Err == nil {
		return ""
	}
	return l.Err.Error()
}

// SourceLink returns the resource link the launch came from; unlike
// ResourceLink it is never replaced by a shared primary link
func (l *Launch) SourceLink() *lti.ResourceLink {
	return l.link
}

// SetResult sets the result of a handler: an absolute http(s) URL becomes
// the redirect target, anything else is appended to the output
func (l *Launch) SetResult(s string) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		l.Redirect = s
		return
	}
	l.Output += s
}

func (l *Launch) fail(err error) {
	l.Err = asLaunchError(err)
	l.State = StateError
}

func (l *Launch) logger() *log.Entry {
	e := log.WithField("state", l.State.String()).WithField("message_type", l.Request.MessageType())
	if key := l.Request.ConsumerKey(); key != "" {
		e = e.WithField("consumer_key", key)
	}
	return e
}

type launchStep struct {
	reached LaunchState
	run     func(ctx context.Context, l *Launch) error
}

// Authenticate runs a launch request through all launch steps and the
// handler of its message type. It never returns nil; check Launch.OK.
func (p *ToolProvider) Authenticate(ctx context.Context, r *LaunchRequest) *Launch {
	l := &Launch{
		Request:   r,
		State:     StateStart,
		ReturnURL: r.ReturnURL(),
		Debug:     r.Debug(),
		Message:   p.Message,
	}
	steps := []launchStep{
		{StateParametersValidated, p.validateParameters},
		{StateConsumerResolved, p.resolveConsumer},
		{StateSignatureVerified, p.verifySignature},
		{StateContextEstablished, p.establishContext},
		{StateShareResolved, p.resolveShare},
		{StatePersisted, p.persist},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			l.fail(err)
			break
		}
		if err := s.run(ctx, l); err != nil {
			l.fail(err)
			break
		}
		l.State = s.reached
	}
	if l.OK() {
		handler, ok := p.handlers[r.MessageType()]
		switch {
		case !ok:
			l.fail(ErrMessageUnsupported)
		default:
			if err := handler(ctx, l); err != nil {
				l.fail(err)
			} else {
				l.State = StateDone
			}
		}
	}
	if !l.OK() {
		l.logger().WithField("reason", l.Reason()).Info("launch failed")
		if p.onError != nil {
			if err := p.onError(ctx, l); err != nil {
				l.logger().WithError(err).Warn("error handler failed")
			}
		}
	} else {
		l.logger().Debug("launch succeeded")
	}
	p.publishLaunch(ctx, l)
	return l
}

func (p *ToolProvider) validateParameters(_ context.Context, l *Launch) error {
	r := l.Request
	if !slices.Contains(supportedVersions, r.Version()) {
		return ErrInvalidVersion
	}
	switch r.MessageType() {
	case MessageBasicLaunch, MessageDashboard, MessageConfigure:
		if r.Trimmed(ParamResourceLinkID) == "" {
			return ErrMissingLinkID
		}
		if r.Has(ParamDocumentTarget) {
			if err := checkValue(
				r.Param(ParamDocumentTarget), launchTargets,
				"Invalid value for launch_presentation_document_target parameter: %s.",
			); err != nil {
				return err
			}
		}
	case MessageContentItem:
		mediaTypes, err := acceptList(r, ParamAcceptMediaTypes)
		if err != nil {
			return err
		}
		targets, err := acceptList(r, ParamAcceptTargets)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if err = checkValue(
				t, documentTargets, "Invalid value in accept_presentation_document_targets parameter: %s.",
			); err != nil {
				return err
			}
		}
		if r.Trimmed(ParamContentItemReturnURL) == "" {
			return ErrMissingReturnURL
		}
		for _, name := range contentItemFlags {
			if !r.Has(name) {
				continue
			}
			if err = checkValue(
				r.Param(name), []string{"true", "false"}, "Invalid value for "+name+" parameter: %s.",
			); err != nil {
				return err
			}
		}
		l.MediaTypes = mediaTypes
		l.DocumentTargets = targets
	default:
		return ErrInvalidMessageType
	}
	return p.checkConstraints(r)
}

func acceptList(r *LaunchRequest, name string) ([]string, error) {
	raw := r.Trimmed(name)
	if raw == "" {
		return nil, newError(KindValidation, "No %s found", name)
	}
	values := slices2.Unique(utils.SplitList(raw))
	if len(values) == 0 {
		return nil, newError(KindValidation, "No valid %s found", name)
	}
	return values, nil
}

func checkValue(value string, allowed []string, format string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return newError(KindValidation, format, value)
}

func (p *ToolProvider) resolveConsumer(_ context.Context, l *Launch) error {
	r := l.Request
	key := r.ConsumerKey()
	if key == "" {
		return ErrMissingConsumerKey
	}
	consumer, err := lti.LoadToolConsumer(p.backends, key)
	if err != nil {
		return err
	}
	if !consumer.Exists() {
		return ErrUnknownConsumer
	}
	l.Consumer = consumer
	now := p.now()
	consumer.TouchLastAccess(now)

	if consumer.Protected() {
		guid := r.Param(ParamConsumerGUID)
		if guid == "" {
			return ErrMissingConsumerGUID
		}
		if guid != consumer.GUID() {
			return ErrConsumerGUIDMismatch
		}
	}
	if !consumer.Enabled() {
		return ErrConsumerDisabled
	}
	if from := consumer.EnableFrom(); from != nil && from.After(now) {
		return ErrConsumerNotYetActive
	}
	if until := consumer.EnableUntil(); until != nil && !until.After(now) {
		return ErrConsumerExpired
	}
	return nil
}

func (p *ToolProvider) verifySignature(_ context.Context, l *Launch) error {
	consumer := l.Consumer
	return p.verifier.Verify(
		l.Request.OAuthRequest(), func(key, _ string) (string, string, error) {
			if key != consumer.Key() {
				return "", "", model.NotFoundErrorFmt("consumer %s not found", key)
			}
			return consumer.Secret(), "", nil
		},
	)
}

func (p *ToolProvider) establishContext(_ context.Context, l *Launch) error {
	r := l.Request
	consumer := l.Consumer
	if id := r.Trimmed(ParamResourceLinkID); id != "" {
		link, err := lti.LoadResourceLink(consumer, id, r.Param(ParamContentItemID))
		if err != nil {
			return err
		}
		l.linkChanged = !link.Exists() || link.PreviousID() != link.ID()
		if r.Has(ParamContextID) {
			l.linkChanged = setIfChanged(&link.ContextID, r.Trimmed(ParamContextID)) || l.linkChanged
		}
		l.linkChanged = setIfChanged(&link.LTIResourceID, id) || l.linkChanged
		l.linkChanged = setIfChanged(&link.Title, linkTitle(r, id)) || l.linkChanged

		for _, name := range lti.LaunchSettings {
			link.SetSetting(name, r.Param(name))
		}
		custom := r.CustomParams()
		for _, name := range link.SettingNames() {
			if _, ok := custom[name]; strings.HasPrefix(name, CustomPrefix) && !ok {
				link.SetSetting(name, "")
			}
		}
		for name, value := range custom {
			link.SetSetting(name, value)
		}
		l.link = link
		l.ResourceLink = link
	}

	user, err := lti.LoadUser(l.link, r.Trimmed(ParamUserID))
	if err != nil {
		return err
	}
	user.SetNames(r.Param(ParamGivenName), r.Param(ParamFamilyName), r.Param(ParamFullName))
	user.SetEmail(r.Param(ParamEmail), p.defaultEmail(consumer))
	if r.Has(ParamRoles) {
		user.Roles = lti.ParseRoles(r.Param(ParamRoles))
	}
	if r.Has(ParamResultSourcedID) {
		if v := r.Param(ParamResultSourcedID); v != user.ResultSourcedID {
			user.ResultSourcedID = v
			l.saveUser = true
		}
	} else if user.ResultSourcedID != "" {
		user.ResultSourcedID = ""
		l.deleteUser = true
	}
	l.User = user

	updateConsumer(consumer, r)
	return nil
}

func setIfChanged(field *string, v string) bool {
	if *field == v {
		return false
	}
	*field = v
	return true
}

func linkTitle(r *LaunchRequest, linkID string) string {
	title := r.Trimmed(ParamContextTitle)
	if t := r.Trimmed(ParamResourceLinkTitle); t != "" {
		if title != "" {
			title += ": "
		}
		title += t
	}
	if title == "" {
		title = fmt.Sprintf("Course %s", linkID)
	}
	return title
}

func updateConsumer(c *lti.ToolConsumer, r *LaunchRequest) {
	c.SetLTIVersion(r.Version())
	if r.Has(ParamConsumerName) {
		c.SetConsumerName(r.Param(ParamConsumerName))
	}
	if r.Has(ParamProductFamilyCode) {
		v := r.Param(ParamProductFamilyCode)
		if r.Has(ParamProductVersion) {
			v += "-" + r.Param(ParamProductVersion)
		}
		c.SetConsumerVersion(v)
	} else if r.Has(ParamExtLMS) {
		c.SetConsumerVersion(r.Param(ParamExtLMS))
	}
	if r.Has(ParamConsumerGUID) && (!c.HasGUID() || !c.Protected()) {
		c.SetGUID(r.Param(ParamConsumerGUID))
	}
	switch {
	case r.Has(ParamCSSURL):
		c.SetCSSPath(r.Param(ParamCSSURL))
	case r.Has(ParamExtCSSURL):
		c.SetCSSPath(r.Param(ParamExtCSSURL))
	default:
		c.SetCSSPath("")
	}
}

func (p *ToolProvider) persist(_ context.Context, l *Launch) error {
	if err := l.Consumer.Save(); err != nil {
		return err
	}
	if link := l.link; link != nil && (l.linkChanged || link.SettingsChanged()) {
		if err := link.Save(); err != nil {
			return err
		}
		l.linkChanged = false
	}
	switch {
	case l.saveUser:
		if err := l.User.Save(); err != nil {
			return err
		}
	case l.deleteUser:
		if err := l.User.Delete(); err != nil {
			return errors.Wrap(err, "could not delete user")
		}
	}
	return nil
}
