package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/duration"

	"github.com/go-lti/ltiprovider/oauth"
)

// oauthConf selects the signature methods accepted on launches
//
// YAML example:
//
//	oauth:
//	  signature_methods:
//	    - HMAC-SHA1
//	    - RSA-SHA1
//	  rsa:
//	    public_key_file: /config/consumer.pem
//	  timestamp_window: 5m
//	  nonce_ttl: 30m
type oauthConf struct {
	SignatureMethods []string                `yaml:"signature_methods"`
	TimestampWindow  duration.DurationOption `yaml:"timestamp_window"`
	NonceTTL         duration.DurationOption `yaml:"nonce_ttl"`
	RSA              struct {
		PrivateKeyFile string `yaml:"private_key_file"`
		PublicKeyFile  string `yaml:"public_key_file"`
	} `yaml:"rsa"`

	methods []oauth.SignatureMethod
}

// Methods returns the configured signature methods
func (c oauthConf) Methods() []oauth.SignatureMethod {
	return c.methods
}

func (c *oauthConf) validate() error {
	c.methods = nil
	for _, name := range c.SignatureMethods {
		switch name {
		case oauth.MethodHMACSHA1:
			c.methods = append(c.methods, oauth.HMACSHA1{})
		case oauth.MethodPlainText:
			c.methods = append(c.methods, oauth.PlainText{})
		case oauth.MethodRSASHA1:
			m, err := c.loadRSA()
			if err != nil {
				return err
			}
			c.methods = append(c.methods, m)
		default:
			return errors.Errorf("unknown signature method '%s'", name)
		}
	}
	if len(c.methods) == 0 {
		return errors.New("at least one signature method must be enabled")
	}
	if c.TimestampWindow.Duration() <= 0 {
		return errors.New("oauth timestamp_window must be positive")
	}
	// a timestamp at the far edge of the window stays acceptable for twice the window
	if c.NonceTTL.Duration() < 2*c.TimestampWindow.Duration() {
		return errors.New("oauth nonce_ttl must be at least twice the timestamp_window")
	}
	return nil
}

func (c *oauthConf) loadRSA() (*oauth.RSASHA1, error) {
	var private, public []byte
	var err error
	if f := c.RSA.PrivateKeyFile; f != "" {
		if private, err = os.ReadFile(f); err != nil {
			return nil, errors.Wrap(err, "could not read rsa private key")
		}
	}
	if f := c.RSA.PublicKeyFile; f != "" {
		if public, err = os.ReadFile(f); err != nil {
			return nil, errors.Wrap(err, "could not read rsa public key")
		}
	}
	return oauth.NewRSASHA1(private, public)
}

var defaultOAuthConf = oauthConf{
	SignatureMethods: []string{oauth.MethodHMACSHA1},
	TimestampWindow:  duration.DurationOption(oauth.DefaultTimestampThreshold),
	NonceTTL:         duration.DurationOption(oauth.DefaultNonceTTL),
}
