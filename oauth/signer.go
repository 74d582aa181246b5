package oauth

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Credentials identifies the signing party; Token and TokenSecret are
// optional.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Signer adds the OAuth protocol parameters and the signature to outgoing
// requests
type Signer struct {
	Method SignatureMethod
	Realm  string
	// Now returns the current time; defaults to time.Now
	Now func() time.Time
	// Nonce returns a fresh nonce; defaults to 128 random bits, hex encoded
	Nonce func() (string, error)
}

// NewSigner returns a Signer using HMAC-SHA1
func NewSigner() *Signer {
	return &Signer{Method: HMACSHA1{}}
}

// NewNonce returns 128 random bits, hex encoded
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(b), nil
}

// BodyHash returns the oauth_body_hash value for body
func BodyHash(body []byte) string {
	h := sha1.Sum(body)
	return base64.StdEncoding.EncodeToString(h[:])
}

func (s *Signer) method() SignatureMethod {
	if s.Method == nil {
		return HMACSHA1{}
	}
	return s.Method
}

func (s *Signer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Signer) nonce() (string, error) {
	if s.Nonce == nil {
		return NewNonce()
	}
	return s.Nonce()
}

// Sign returns a copy of params extended by the protocol parameters and the
// oauth_signature computed for a request with the passed method and URL.
// Existing oauth_* parameters other than oauth_body_hash and oauth_callback
// are replaced.
func (s *Signer) Sign(method, rawURL string, params url.Values, creds Credentials) (url.Values, error) {
	nonce, err := s.nonce()
	if err != nil {
		return nil, err
	}
	signed := make(url.Values, len(params)+7)
	for k, vs := range params {
		signed[k] = append([]string(nil), vs...)
	}
	m := s.method()
	signed.Del(ParamSignature)
	signed.Set(ParamConsumerKey, creds.ConsumerKey)
	signed.Set(ParamNonce, nonce)
	signed.Set(ParamTimestamp, strconv.FormatInt(s.now().Unix(), 10))
	signed.Set(ParamVersion, Version)
	signed.Set(ParamSignatureMethod, m.Name())
	if creds.Token != "" {
		signed.Set(ParamToken, creds.Token)
	} else {
		signed.Del(ParamToken)
	}
	base, err := BaseString(method, rawURL, signed)
	if err != nil {
		return nil, err
	}
	sig, err := m.Sign(base, creds.ConsumerSecret, creds.TokenSecret)
	if err != nil {
		return nil, err
	}
	signed.Set(ParamSignature, sig)
	return signed, nil
}

// AuthorizationHeader signs a request whose body is not form encoded (e.g.
// XML). The body is bound to the signature through oauth_body_hash and the
// returned value is ready for the Authorization header.
func (s *Signer) AuthorizationHeader(method, rawURL string, body []byte, creds Credentials) (string, error) {
	params := url.Values{}
	params.Set(ParamBodyHash, BodyHash(body))
	signed, err := s.Sign(method, rawURL, params, creds)
	if err != nil {
		return "", err
	}
	return AuthorizationHeader(s.Realm, signed), nil
}
