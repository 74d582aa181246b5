package lti

import (
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider/oauth"
	"github.com/go-lti/ltiprovider/storage/model"
)

// Supported LTI versions
const (
	Version1 = "LTI-1p0"
	Version2 = "LTI-2p0"
)

// ToolConsumer is a consumer loaded for the duration of a request. Changes
// made through its setters are tracked and only written by Save if any field
// changed.
type ToolConsumer struct {
	row      model.Consumer
	backends model.Backends
	dirty    bool
}

// NewToolConsumer returns a new, unsaved consumer
func NewToolConsumer(backends model.Backends, key, secret string) *ToolConsumer {
	return &ToolConsumer{
		row: model.Consumer{
			Key:    key,
			Secret: secret,
		},
		backends: backends,
		dirty:    true,
	}
}

// LoadToolConsumer loads the consumer for key. If there is none, the returned
// consumer does not Exist.
func LoadToolConsumer(backends model.Backends, key string) (*ToolConsumer, error) {
	c := &ToolConsumer{
		row:      model.Consumer{Key: key},
		backends: backends,
	}
	row, err := backends.Consumers.Get(key)
	if err != nil {
		return nil, errors.Wrap(err, "could not load tool consumer")
	}
	if row != nil {
		c.row = *row
	}
	return c, nil
}

// Key returns the consumer key
func (c *ToolConsumer) Key() string {
	return c.row.Key
}

// Secret returns the shared secret
func (c *ToolConsumer) Secret() string {
	return c.row.Secret
}

// Exists reports whether the consumer was loaded from storage
func (c *ToolConsumer) Exists() bool {
	return !c.row.CreatedAt.IsZero()
}

// Row returns a copy of the stored fields
func (c *ToolConsumer) Row() model.Consumer {
	return c.row
}

// Backends returns the storage backends the consumer was loaded from
func (c *ToolConsumer) Backends() model.Backends {
	return c.backends
}

// Dirty reports whether the consumer has unsaved changes
func (c *ToolConsumer) Dirty() bool {
	return c.dirty
}

// IDScope returns the scope applied to the ids of the consumer's users
func (c *ToolConsumer) IDScope() model.IDScope {
	return c.row.IDScope
}

// DefaultEmail returns the email domain or address used for users without an
// email
func (c *ToolConsumer) DefaultEmail() string {
	return c.row.DefaultEmail
}

// LTIVersion returns the LTI version of the last launch
func (c *ToolConsumer) LTIVersion() string {
	return c.row.LTIVersion
}

// Protected reports whether launches must carry the stored consumer GUID
func (c *ToolConsumer) Protected() bool {
	return c.row.Protected
}

// GUID returns the tool consumer instance GUID, or "" if none is known
func (c *ToolConsumer) GUID() string {
	if c.row.ConsumerGUID == nil {
		return ""
	}
	return *c.row.ConsumerGUID
}

// HasGUID reports whether a tool consumer instance GUID is stored
func (c *ToolConsumer) HasGUID() bool {
	return c.row.ConsumerGUID != nil
}

// Enabled reports whether the consumer has been enabled
func (c *ToolConsumer) Enabled() bool {
	return c.row.Enabled
}

// EnableFrom returns the start of the access window, if any
func (c *ToolConsumer) EnableFrom() *time.Time {
	return c.row.EnableFrom
}

// EnableUntil returns the end of the access window, if any
func (c *ToolConsumer) EnableUntil() *time.Time {
	return c.row.EnableUntil
}

// IsAvailable reports whether the consumer is enabled and now is inside its
// access window
func (c *ToolConsumer) IsAvailable(now time.Time) bool {
	if !c.row.Enabled {
		return false
	}
	if c.row.EnableFrom != nil && c.row.EnableFrom.After(now) {
		return false
	}
	if c.row.EnableUntil != nil && !c.row.EnableUntil.After(now) {
		return false
	}
	return true
}

func (c *ToolConsumer) setString(field *string, v string) {
	if *field != v {
		*field = v
		c.dirty = true
	}
}

// SetLTIVersion sets the LTI version
func (c *ToolConsumer) SetLTIVersion(v string) {
	c.setString(&c.row.LTIVersion, v)
}

// SetConsumerName sets the tool consumer instance name
func (c *ToolConsumer) SetConsumerName(v string) {
	c.setString(&c.row.ConsumerName, v)
}

// ConsumerName returns the tool consumer instance name
func (c *ToolConsumer) ConsumerName() string {
	return c.row.ConsumerName
}

// SetConsumerVersion sets the product version of the consumer
func (c *ToolConsumer) SetConsumerVersion(v string) {
	c.setString(&c.row.ConsumerVersion, v)
}

// ConsumerVersion returns the product version of the consumer
func (c *ToolConsumer) ConsumerVersion() string {
	return c.row.ConsumerVersion
}

// SetCSSPath sets the stylesheet URL of the consumer
func (c *ToolConsumer) SetCSSPath(v string) {
	c.setString(&c.row.CSSPath, v)
}

// CSSPath returns the stylesheet URL of the consumer
func (c *ToolConsumer) CSSPath() string {
	return c.row.CSSPath
}

// SetGUID sets the tool consumer instance GUID
func (c *ToolConsumer) SetGUID(v string) {
	if c.row.ConsumerGUID != nil && *c.row.ConsumerGUID == v {
		return
	}
	c.row.ConsumerGUID = &v
	c.dirty = true
}

// TouchLastAccess records an access at now. The consumer only becomes dirty
// if the previous access was on another day.
func (c *ToolConsumer) TouchLastAccess(now time.Time) {
	last := c.row.LastAccess
	if last == nil || last.UTC().Format(time.DateOnly) != now.UTC().Format(time.DateOnly) {
		c.dirty = true
	}
	c.row.LastAccess = &now
}

// LastAccess returns the time of the last launch
func (c *ToolConsumer) LastAccess() *time.Time {
	return c.row.LastAccess
}

// Save stores the consumer if it has changed since it was loaded
func (c *ToolConsumer) Save() error {
	if !c.dirty {
		return nil
	}
	if err := c.backends.Consumers.Save(&c.row); err != nil {
		return errors.Wrap(err, "could not save tool consumer")
	}
	c.dirty = false
	return nil
}

// Credentials returns the OAuth credentials of the consumer
func (c *ToolConsumer) Credentials() oauth.Credentials {
	return oauth.Credentials{
		ConsumerKey:    c.row.Key,
		ConsumerSecret: c.row.Secret,
	}
}

// SignParameters signs params for a POST of an LTI message of messageType to
// rawURL. Parameters in the query of rawURL are covered by the signature but
// are not added to the returned values.
func (c *ToolConsumer) SignParameters(
	signer *oauth.Signer, rawURL, messageType, version string, params url.Values,
) (url.Values, error) {
	form := url.Values{}
	for k, vs := range params {
		form[k] = append([]string(nil), vs...)
	}
	form.Set("lti_version", version)
	form.Set("lti_message_type", messageType)
	form.Set(oauth.ParamCallback, "about:blank")
	return signer.Sign("POST", rawURL, form, c.Credentials())
}
