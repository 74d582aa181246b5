package oauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/url"
	"strings"
	"testing"
	"time"
)

var twitterCredentials = Credentials{
	ConsumerKey:    "xvz1evFS4wEEPTGEFPHBog",
	ConsumerSecret: "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
	Token:          "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
	TokenSecret:    "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
}

func twitterSigner() *Signer {
	return &Signer{
		Method: HMACSHA1{},
		Now:    func() time.Time { return time.Unix(1318622958, 0) },
		Nonce:  func() (string, error) { return "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg", nil },
	}
}

func twitterBody(t *testing.T) url.Values {
	body, err := url.ParseQuery("status=Hello%20Ladies%20%2b%20Gentlemen%2c%20a%20signed%20OAuth%20request%21")
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestSignerReferenceVectors(t *testing.T) {
	tests := []struct {
		name              string
		url               string
		expectedBase      string
		expectedSignature string
	}{
		{
			name: "twitter",
			url:  "https://api.twitter.com/1/statuses/update.json?include_entities=true",
			expectedBase: "POST&https%3A%2F%2Fapi.twitter.com%2F1%2Fstatuses%2Fupdate.json&include_entities%3Dtrue%26oauth_consumer_key%3Dxvz1evFS4wEEPTGEFPHBog%26oauth_nonce%3DkYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg%26oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1318622958%26oauth_token%3D370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb%26oauth_version%3D1.0%26status%3DHello%2520Ladies%2520%252B%2520Gentlemen%252C%2520a%2520signed%2520OAuth%2520request%2521",
			expectedSignature: "tnnArxj06cWHq44gCs1OSKk/jLY=",
		},
		{
			name: "example.com",
			url:  "https://api.example.com/1/statuses/update.json?include_entities=true",
			expectedBase: "POST&https%3A%2F%2Fapi.example.com%2F1%2Fstatuses%2Fupdate.json&include_entities%3Dtrue%26oauth_consumer_key%3Dxvz1evFS4wEEPTGEFPHBog%26oauth_nonce%3DkYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg%26oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1318622958%26oauth_token%3D370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb%26oauth_version%3D1.0%26status%3DHello%2520Ladies%2520%252B%2520Gentlemen%252C%2520a%2520signed%2520OAuth%2520request%2521",
			expectedSignature: "tbPYjBW9I2phmGNhIM7FgeiqgTI=",
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				signed, err := twitterSigner().Sign("POST", test.url, twitterBody(t), twitterCredentials)
				if err != nil {
					t.Fatal(err)
				}
				base, err := BaseString("POST", test.url, signed)
				if err != nil {
					t.Fatal(err)
				}
				if base != test.expectedBase {
					t.Errorf("unexpected base string\n got: %s\nwant: %s", base, test.expectedBase)
				}
				if got := signed.Get(ParamSignature); got != test.expectedSignature {
					t.Errorf("unexpected signature %q, expected %q", got, test.expectedSignature)
				}
			},
		)
	}
}

func TestPlainText(t *testing.T) {
	sig, err := PlainText{}.Sign("ignored", twitterCredentials.ConsumerSecret, twitterCredentials.TokenSecret)
	if err != nil {
		t.Fatal(err)
	}
	expected := "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw&LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE"
	if sig != expected {
		t.Fatalf("unexpected plaintext signature %q", sig)
	}
	if !(PlainText{}).Verify("other", twitterCredentials.ConsumerSecret, twitterCredentials.TokenSecret, sig) {
		t.Fatal("plaintext signature did not verify")
	}
	if sig, _ = (PlainText{}).Sign("", "a b", ""); sig != "a%20b&" {
		t.Fatalf("unexpected key encoding %q", sig)
	}
}

func TestSignatureMethodsRejectAlteredSignatures(t *testing.T) {
	rsaMethod := newTestRSAMethod(t)
	methods := []SignatureMethod{HMACSHA1{}, PlainText{}, rsaMethod}
	base := "POST&https%3A%2F%2Fexample.com%2F&a%3Db"
	for _, m := range methods {
		t.Run(
			m.Name(), func(t *testing.T) {
				sig, err := m.Sign(base, "secret", "token")
				if err != nil {
					t.Fatal(err)
				}
				if !m.Verify(base, "secret", "token", sig) {
					t.Fatal("signature did not verify")
				}
				for i := range sig {
					flipped := []byte(sig)
					if flipped[i] == 'A' {
						flipped[i] = 'g'
					} else {
						flipped[i] = 'A'
					}
					if m.Verify(base, "secret", "token", string(flipped)) {
						t.Fatalf("altered signature %q verified", flipped)
					}
				}
			},
		)
	}
}

func newTestRSAMethod(t *testing.T) *RSASHA1 {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pubDer, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewRSASHA1(
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDer}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewRSASHA1KeyFormats(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDer, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pkix := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDer})

	tests := []struct {
		name       string
		private    []byte
		public     []byte
		canSign    bool
		errMessage string
	}{
		{name: "pkcs1 private only", private: pkcs1, canSign: true},
		{name: "pkix public only", public: pkix},
		{name: "both", private: pkcs1, public: pkix, canSign: true},
		{name: "none", errMessage: "no rsa key"},
		{name: "garbage", private: []byte("not a key"), errMessage: "failed to parse"},
	}
	base := "POST&https%3A%2F%2Fexample.com%2F&a%3Db"
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				m, err := NewRSASHA1(test.private, test.public)
				if test.errMessage != "" {
					if err == nil || !strings.Contains(err.Error(), test.errMessage) {
						t.Fatalf("expected error containing %q, got %v", test.errMessage, err)
					}
					return
				}
				if err != nil {
					t.Fatal(err)
				}
				if m.PublicKey == nil || m.PublicKey.N.Cmp(key.N) != 0 || m.PublicKey.E != key.E {
					t.Fatalf("unexpected public key %+v", m.PublicKey)
				}
				if !test.canSign {
					if _, err = m.Sign(base, "", ""); err == nil {
						t.Fatal("signing without a private key must fail")
					}
					return
				}
				if m.PrivateKey.D.Cmp(key.D) != 0 {
					t.Fatal("private exponent differs")
				}
				sig, err := m.Sign(base, "", "")
				if err != nil {
					t.Fatal(err)
				}
				verifier, err := NewRSASHA1(nil, pkix)
				if err != nil {
					t.Fatal(err)
				}
				if !verifier.Verify(base, "", "", sig) {
					t.Fatal("signature did not verify with the public key")
				}
			},
		)
	}
}

func TestAuthorizationHeaderRoundTrip(t *testing.T) {
	s := twitterSigner()
	s.Realm = "http://sp.example.com/"
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?><x/>`)
	header, err := s.AuthorizationHeader("POST", "https://lms.example.com/outcomes", body, twitterCredentials)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(header, `OAuth realm="http%3A%2F%2Fsp.example.com%2F",oauth_body_hash="`) {
		t.Fatalf("unexpected header %s", header)
	}
	params := ParseAuthorizationHeader(header)
	if params.Get(ParamRealm) != "" {
		t.Error("realm must not be returned")
	}
	if got := params.Get(ParamBodyHash); got != BodyHash(body) {
		t.Errorf("body hash %q, expected %q", got, BodyHash(body))
	}
	if got := params.Get(ParamConsumerKey); got != twitterCredentials.ConsumerKey {
		t.Errorf("consumer key %q", got)
	}
	base, err := BaseString("POST", "https://lms.example.com/outcomes", params)
	if err != nil {
		t.Fatal(err)
	}
	if !(HMACSHA1{}).Verify(
		base, twitterCredentials.ConsumerSecret, twitterCredentials.TokenSecret, params.Get(ParamSignature),
	) {
		t.Fatal("header signature did not verify")
	}
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewNonce()
	if len(a) != 32 || a == b {
		t.Fatalf("unexpected nonces %q %q", a, b)
	}
}
