package oauth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/pkg/errors"
)

// Names of the supported signature methods
const (
	MethodHMACSHA1  = "HMAC-SHA1"
	MethodPlainText = "PLAINTEXT"
	MethodRSASHA1   = "RSA-SHA1"
)

// SignatureMethod computes and checks the oauth_signature over a base string
type SignatureMethod interface {
	// Name returns the value used for oauth_signature_method
	Name() string
	// Sign returns the signature of base
	Sign(base, consumerSecret, tokenSecret string) (string, error)
	// Verify reports whether signature is valid for base
	Verify(base, consumerSecret, tokenSecret, signature string) bool
}

func signingKey(consumerSecret, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HMACSHA1 implements the HMAC-SHA1 signature method
type HMACSHA1 struct{}

// Name implements the SignatureMethod interface
func (HMACSHA1) Name() string {
	return MethodHMACSHA1
}

// Sign implements the SignatureMethod interface
func (HMACSHA1) Sign(base, consumerSecret, tokenSecret string) (string, error) {
	mac := hmac.New(sha1.New, []byte(signingKey(consumerSecret, tokenSecret)))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify implements the SignatureMethod interface
func (m HMACSHA1) Verify(base, consumerSecret, tokenSecret, signature string) bool {
	expected, _ := m.Sign(base, consumerSecret, tokenSecret)
	return constantTimeEqual(expected, signature)
}

// PlainText implements the PLAINTEXT signature method. It must only be used
// over TLS.
type PlainText struct{}

// Name implements the SignatureMethod interface
func (PlainText) Name() string {
	return MethodPlainText
}

// Sign implements the SignatureMethod interface
func (PlainText) Sign(_, consumerSecret, tokenSecret string) (string, error) {
	return signingKey(consumerSecret, tokenSecret), nil
}

// Verify implements the SignatureMethod interface
func (PlainText) Verify(_, consumerSecret, tokenSecret, signature string) bool {
	return constantTimeEqual(signingKey(consumerSecret, tokenSecret), signature)
}

// RSASHA1 implements the RSA-SHA1 signature method. The shared secrets are
// ignored; a PrivateKey is needed for signing and a PublicKey (or the
// PrivateKey) for verification.
type RSASHA1 struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// NewRSASHA1 creates a RSASHA1 from PEM encoded keys. Either argument may be
// empty; a public key may also be given as a certificate.
func NewRSASHA1(privatePEM, publicPEM []byte) (*RSASHA1, error) {
	m := &RSASHA1{}
	if len(privatePEM) > 0 {
		key, err := jwk.ParseKey(privatePEM, jwk.WithPEM(true))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse rsa private key")
		}
		var priv rsa.PrivateKey
		if err = jwk.Export(key, &priv); err != nil {
			return nil, errors.Wrap(err, "private key is not an rsa key")
		}
		m.PrivateKey = &priv
	}
	if len(publicPEM) > 0 {
		key, err := jwk.ParseKey(publicPEM, jwk.WithPEM(true))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse rsa public key")
		}
		var pub rsa.PublicKey
		if err = jwk.Export(key, &pub); err != nil {
			return nil, errors.Wrap(err, "public key is not an rsa key")
		}
		m.PublicKey = &pub
	}
	if m.PublicKey == nil && m.PrivateKey != nil {
		m.PublicKey = &m.PrivateKey.PublicKey
	}
	if m.PublicKey == nil {
		return nil, errors.New("no rsa key given")
	}
	return m, nil
}

// Name implements the SignatureMethod interface
func (*RSASHA1) Name() string {
	return MethodRSASHA1
}

// Sign implements the SignatureMethod interface
func (m *RSASHA1) Sign(base, _, _ string) (string, error) {
	if m.PrivateKey == nil {
		return "", errors.New("rsa-sha1: no private key configured")
	}
	h := sha1.Sum([]byte(base))
	sig, err := rsa.SignPKCS1v15(rand.Reader, m.PrivateKey, crypto.SHA1, h[:])
	if err != nil {
		return "", errors.WithStack(err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify implements the SignatureMethod interface
func (m *RSASHA1) Verify(base, _, _, signature string) bool {
	if m.PublicKey == nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	h := sha1.Sum([]byte(base))
	return rsa.VerifyPKCS1v15(m.PublicKey, crypto.SHA1, h[:], sig) == nil
}
