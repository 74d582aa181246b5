package config

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider"
)

// launchConf configures the launch endpoint
type launchConf struct {
	Path string `yaml:"path"`
	// AllowSharing and DefaultEmail are used unless the provider settings in
	// the key-value store override them
	AllowSharing bool   `yaml:"allow_sharing"`
	DefaultEmail string `yaml:"default_email"`
	// Message is shown to users whose launch failed
	Message string `yaml:"message"`
	// RedirectURL is where successful launches are sent; the consumer,
	// resource link and user are passed in the query
	RedirectURL string `yaml:"redirect_url"`
}

func (c *launchConf) validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return errors.Errorf("launch path '%s' must start with a '/'", c.Path)
	}
	if c.RedirectURL != "" {
		u, err := url.Parse(c.RedirectURL)
		if err != nil || !u.IsAbs() {
			return errors.Errorf("launch redirect_url '%s' must be an absolute url", c.RedirectURL)
		}
	}
	return nil
}

var defaultLaunchConf = launchConf{
	Path:    ltiprovider.DefaultLaunchPath,
	Message: ltiprovider.DefaultMessage,
}
