package oauth

import (
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Parameter names of the OAuth 1.0a protocol
const (
	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignature       = "oauth_signature"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamToken           = "oauth_token"
	ParamVersion         = "oauth_version"
	ParamCallback        = "oauth_callback"
	ParamBodyHash        = "oauth_body_hash"
	ParamRealm           = "realm"

	// Version is the only protocol version emitted and accepted
	Version = "1.0"
)

// BaseString builds the signature base string of RFC 5849 section 3.4.1
// for the passed request method, URL and parameters. Parameters contained in
// the query of rawURL are merged into params; oauth_signature and realm are
// never part of the base string.
func BaseString(method, rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid request url")
	}
	all := make(url.Values, len(params))
	for k, vs := range params {
		all[k] = append(all[k], vs...)
	}
	if u.RawQuery != "" {
		query, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return "", errors.Wrap(err, "invalid request query")
		}
		for k, vs := range query {
			all[k] = append(all[k], vs...)
		}
	}
	return strings.ToUpper(method) + "&" +
		PercentEncode(normalizeURL(u)) + "&" +
		PercentEncode(NormalizeParameters(all)), nil
}

// NormalizeURL returns the base string URI of rawURL: lower case scheme and
// host, no default port, no query and no fragment.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid request url")
	}
	return normalizeURL(u), nil
}

func normalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

func isDefaultPort(scheme, port string) bool {
	return scheme == "http" && port == "80" || scheme == "https" && port == "443"
}

type encodedParam struct {
	key, value string
}

// NormalizeParameters encodes, sorts and joins params as described in RFC
// 5849 section 3.4.1.3.2.
func NormalizeParameters(params url.Values) string {
	kvs := make([]encodedParam, 0, len(params))
	for k, vs := range params {
		if k == ParamSignature || k == ParamRealm {
			continue
		}
		ek := PercentEncode(k)
		for _, v := range vs {
			kvs = append(kvs, encodedParam{key: ek, value: PercentEncode(v)})
		}
	}
	sort.Slice(
		kvs, func(i, j int) bool {
			if kvs[i].key != kvs[j].key {
				return kvs[i].key < kvs[j].key
			}
			return kvs[i].value < kvs[j].value
		},
	)
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = kv.key + "=" + kv.value
	}
	return strings.Join(parts, "&")
}
