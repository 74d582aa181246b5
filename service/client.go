// Package service calls the extension services a tool consumer offers to the
// tool: outcomes, memberships and the tool setting. Requests are signed with
// the consumer's credentials and sent either as LTI 1.1 POX messages or as
// legacy form posts.
package service

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider/internal/version"
	"github.com/go-lti/ltiprovider/internal/xmltree"
	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/oauth"
)

// DefaultTimeout is the timeout of a service call if none is configured
const DefaultTimeout = 30 * time.Second

// Client sends service requests to tool consumers
type Client struct {
	http      *resty.Client
	signer    *oauth.Signer
	now       func() time.Time
	messageID func() string
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the timeout of each call
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithRestyClient replaces the underlying HTTP client
func WithRestyClient(r *resty.Client) Option {
	return func(c *Client) {
		c.http = r
	}
}

// WithSigner sets the signer used for requests
func WithSigner(s *oauth.Signer) Option {
	return func(c *Client) {
		c.signer = s
	}
}

// WithClock sets the time source used for outcome dates
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithMessageIDs sets the generator for POX message identifiers
func WithMessageIDs(f func() string) Option {
	return func(c *Client) {
		c.messageID = f
	}
}

// NewClient returns a Client using HMAC-SHA1 signatures
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("User-Agent", version.UserAgent()),
		signer:    oauth.NewSigner(),
		now:       time.Now,
		messageID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient returns the underlying resty client
func (c *Client) HTTPClient() *resty.Client {
	return c.http
}

// Now returns the current time of the client's clock
func (c *Client) Now() time.Time {
	return c.now()
}

// Do signs op with the credentials of consumer, posts it to url and passes
// the parsed response to op
func (c *Client) Do(ctx context.Context, consumer *lti.ToolConsumer, url string, op Operation) error {
	name := op.ServiceName()
	if url == "" {
		return &Error{Kind: ErrUnsupported, Operation: name}
	}
	req := c.http.R().SetContext(ctx)
	switch o := op.(type) {
	case poxOperation:
		body, err := EncodeBody(o, c.messageID())
		if err != nil {
			return &Error{Kind: ErrTransport, Operation: name, Err: err}
		}
		auth, err := c.signer.AuthorizationHeader(http.MethodPost, url, body, consumer.Credentials())
		if err != nil {
			return &Error{Kind: ErrTransport, Operation: name, Err: err}
		}
		req.SetHeader("Content-Type", o.ContentType()).
			SetHeader("Authorization", auth).
			SetBody(body)
	case formOperation:
		ltiVersion := consumer.LTIVersion()
		if ltiVersion == "" {
			ltiVersion = lti.Version1
		}
		form, err := consumer.SignParameters(c.signer, url, name, ltiVersion, o.params())
		if err != nil {
			return &Error{Kind: ErrTransport, Operation: name, Err: err}
		}
		req.SetFormDataFromValues(form)
	}

	logger := log.WithField("service", name).WithField("consumer", consumer.Key())
	res, err := req.Post(url)
	if err != nil {
		logger.WithError(err).Debug("service request failed")
		return &Error{Kind: ErrTransport, Operation: name, Err: err}
	}
	if !res.IsSuccess() {
		logger.WithField("status", res.StatusCode()).Debug("service request rejected")
		return &Error{Kind: ErrStatus, Operation: name, StatusCode: res.StatusCode()}
	}
	root, err := xmltree.Parse(res.Body())
	if err != nil {
		return &Error{Kind: ErrParse, Operation: name, Err: err}
	}
	if ok, description := succeeded(op, root); !ok {
		logger.WithField("description", description).Debug("service request failed at consumer")
		return &Error{Kind: ErrFailure, Operation: name, Description: description, Response: root.Map()}
	}
	if err = op.HandleResponse(root); err != nil {
		return &Error{Kind: ErrParse, Operation: name, Err: err}
	}
	return nil
}

func succeeded(op Operation, root *xmltree.Node) (bool, string) {
	if _, ok := op.(poxOperation); ok {
		status, _ := root.Find("imsx_POXHeader.imsx_POXResponseHeaderInfo.imsx_statusInfo")
		if status == nil {
			return false, ""
		}
		return status.ValueOr("imsx_codeMajor", "") == "success", status.ValueOr("imsx_description", "")
	}
	return root.ValueOr("statusinfo.codemajor", "") == "Success", root.ValueOr("statusinfo.description", "")
}
