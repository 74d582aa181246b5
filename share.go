package ltiprovider

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/storage/model"
)

// resolveShare checks the share arrangement of the launching link and, for
// an approved share, makes the primary link the active one
func (p *ToolProvider) resolveShare(_ context.Context, l *Launch) error {
	link := l.link
	if link == nil {
		return nil
	}
	if id := l.Request.Param(ParamShareKey); id != "" {
		if !p.allowSharing(l.Consumer.Key()) {
			return ErrSharingNotPermitted
		}
		if err := p.consumeShareKey(l, id); err != nil {
			return err
		}
		if !link.HasPrimary() {
			return ErrNoShareAvailable
		}
		if link.ShareStatus != model.ShareStatusApproved {
			return ErrSharePendingApproval
		}
	} else if link.HasPrimary() {
		return ErrUnexpectedShareState
	}
	if !link.HasPrimary() {
		return nil
	}

	consumer, err := lti.LoadToolConsumer(p.backends, link.PrimaryConsumerKey)
	if err != nil {
		return err
	}
	if !consumer.Exists() {
		return ErrShareTargetUnavailable
	}
	primary, err := lti.LoadResourceLink(consumer, link.PrimaryResourceLinkID, "")
	if err != nil {
		return err
	}
	if !primary.Exists() {
		return ErrShareTargetUnavailable
	}
	l.ResourceLink = primary
	return nil
}

// consumeShareKey points the launching link at the primary link of a share
// key and deletes the key; unknown, expired or already used keys are ignored
func (p *ToolProvider) consumeShareKey(l *Launch, id string) error {
	link := l.link
	key, err := lti.LoadShareKey(p.backends.ShareKeys, id, p.now())
	if err != nil {
		return err
	}
	if key == nil || key.PrimaryConsumerKey == "" || key.PrimaryResourceLinkID == "" {
		return nil
	}
	if link.IsSelf(key.PrimaryConsumerKey, key.PrimaryResourceLinkID) {
		return ErrSelfShareRejected
	}
	consumed, err := key.Consume(p.backends.ShareKeys, p.now())
	if err != nil {
		return err
	}
	if !consumed {
		l.logger().WithField("share_key", id).Info("share key was used by a concurrent launch")
		return nil
	}
	link.PrimaryConsumerKey = key.PrimaryConsumerKey
	link.PrimaryResourceLinkID = key.PrimaryResourceLinkID
	link.ShareStatus = model.ShareStatusFromApproval(key.AutoApprove)
	if err = link.Save(); err != nil {
		return &Error{
			Kind:   KindShare,
			Reason: ErrShareInitFailed.Reason,
			Err:    err,
		}
	}
	l.linkChanged = false
	return nil
}

// launchSettings returns the stored settings of the consumer over the
// provider-wide ones, falling back to the configured values
func (p *ToolProvider) launchSettings(consumerKey string) model.LaunchSettings {
	configured := model.LaunchSettings{
		AllowSharing: &p.AllowSharing,
		DefaultEmail: &p.DefaultEmail,
	}
	if p.backends.Settings == nil {
		return configured
	}
	stored, err := p.backends.Settings.Effective(consumerKey)
	if err != nil {
		log.WithError(err).WithField("consumer", consumerKey).Warn("could not read launch settings")
		return configured
	}
	return stored.Over(configured)
}

func (p *ToolProvider) allowSharing(consumerKey string) bool {
	return *p.launchSettings(consumerKey).AllowSharing
}

func (p *ToolProvider) defaultEmail(c *lti.ToolConsumer) string {
	if e := c.DefaultEmail(); e != "" {
		return e
	}
	return *p.launchSettings(c.Key()).DefaultEmail
}
