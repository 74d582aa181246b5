package oauth

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Defaults used by NewServer
const (
	DefaultTimestampThreshold = 300 * time.Second
	DefaultNonceTTL           = 30 * time.Minute
)

// ErrInvalidParameter is returned for protocol parameters with a malformed value
var ErrInvalidParameter = errors.New("invalid oauth parameter")

// NonceStore records used nonces. Insert must atomically store the nonce for
// consumerKey if it is not already present (and unexpired) and report
// whether it was stored.
type NonceStore interface {
	Insert(consumerKey, nonce string, expires time.Time) (bool, error)
}

// SecretFunc resolves the consumer secret and, if a token is used, the token
// secret for the passed consumer key and token.
type SecretFunc func(consumerKey, token string) (consumerSecret, tokenSecret string, err error)

// Server verifies signed requests
type Server struct {
	Methods   map[string]SignatureMethod
	Threshold time.Duration
	NonceTTL  time.Duration
	Nonces    NonceStore
	// Now returns the current time; defaults to time.Now
	Now func() time.Time
}

// NewServer creates a Server accepting the passed signature methods; when
// none are passed HMAC-SHA1 is accepted.
func NewServer(nonces NonceStore, methods ...SignatureMethod) *Server {
	if len(methods) == 0 {
		methods = []SignatureMethod{HMACSHA1{}}
	}
	s := &Server{
		Methods:   make(map[string]SignatureMethod, len(methods)),
		Threshold: DefaultTimestampThreshold,
		NonceTTL:  DefaultNonceTTL,
		Nonces:    nonces,
	}
	for _, m := range methods {
		s.Methods[m.Name()] = m
	}
	return s
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

var requiredParams = []string{
	ParamConsumerKey,
	ParamSignatureMethod,
	ParamNonce,
	ParamTimestamp,
	ParamSignature,
}

// Verify checks the request. The checks run in a fixed order: presence of
// the protocol parameters, the signature method, the timestamp window, the
// nonce and finally the signature. The nonce is recorded before the
// signature is compared so that a replay is detected even for requests
// with a bad signature.
func (s *Server) Verify(r *Request, secrets SecretFunc) error {
	for _, p := range requiredParams {
		if r.Param(p) == "" {
			return protocolError(ErrMissingParameter, p)
		}
	}
	if v := r.Param(ParamVersion); v != "" && v != Version {
		return protocolError(ErrInvalidParameter, ParamVersion)
	}
	method, ok := s.Methods[r.Param(ParamSignatureMethod)]
	if !ok {
		return protocolError(ErrUnsupportedSignatureMethod, r.Param(ParamSignatureMethod))
	}
	ts, err := strconv.ParseInt(r.Param(ParamTimestamp), 10, 64)
	if err != nil {
		return protocolError(ErrInvalidParameter, ParamTimestamp)
	}
	now := s.now()
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultTimestampThreshold
	}
	if d := now.Sub(time.Unix(ts, 0)); d > threshold || d < -threshold {
		return securityError(ErrExpiredTimestamp)
	}

	consumerKey := r.Param(ParamConsumerKey)
	consumerSecret, tokenSecret, err := secrets(consumerKey, r.Param(ParamToken))
	if err != nil {
		return protocolError(errors.Wrap(ErrUnknownConsumer, err.Error()), consumerKey)
	}

	if s.Nonces == nil {
		return errors.New("no nonce store configured")
	}
	ttl := s.NonceTTL
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	fresh, err := s.Nonces.Insert(consumerKey, r.Param(ParamNonce), now.Add(ttl))
	if err != nil {
		return errors.Wrap(err, "failed to record nonce")
	}
	if !fresh {
		return securityError(ErrReplayedNonce)
	}

	base, err := r.BaseString()
	if err != nil {
		return protocolError(ErrInvalidParameter, err.Error())
	}
	if !method.Verify(base, consumerSecret, tokenSecret, r.Param(ParamSignature)) {
		return securityError(ErrInvalidSignature)
	}
	return nil
}
