package oauth

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	authSchemeExp = regexp.MustCompile(`^\s*OAuth\s+`)
	authParamExp  = regexp.MustCompile(`(\w+)="(.*?)"`)
)

// Request is the signed part of an HTTP request: its method, the full URL
// (including any query) and the body and header parameters.
type Request struct {
	Method string
	URL    string
	Params url.Values

	query url.Values
}

// NewRequest creates a Request. form holds the decoded
// application/x-www-form-urlencoded body; authHeader is the raw value of the
// Authorization header and may be empty. Parameters from the header are
// merged into Params.
func NewRequest(method, rawURL string, form url.Values, authHeader string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid request url")
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, errors.Wrap(err, "invalid request query")
	}
	params := make(url.Values, len(form))
	for k, vs := range form {
		params[k] = append([]string(nil), vs...)
	}
	for k, vs := range ParseAuthorizationHeader(authHeader) {
		params[k] = append(params[k], vs...)
	}
	return &Request{
		Method: strings.ToUpper(method),
		URL:    rawURL,
		Params: params,
		query:  query,
	}, nil
}

// Param returns the first value for name from the body/header parameters or,
// if absent there, from the URL query.
func (r *Request) Param(name string) string {
	if v, ok := r.Params[name]; ok && len(v) > 0 {
		return v[0]
	}
	return r.query.Get(name)
}

// BaseString returns the signature base string of this request
func (r *Request) BaseString() (string, error) {
	return BaseString(r.Method, r.URL, r.Params)
}

// ParseAuthorizationHeader extracts the protocol parameters of an
// "Authorization: OAuth ..." header. The realm is not returned.
func ParseAuthorizationHeader(header string) url.Values {
	params := url.Values{}
	loc := authSchemeExp.FindStringIndex(header)
	if loc == nil {
		return params
	}
	for _, m := range authParamExp.FindAllStringSubmatch(header[loc[1]:], -1) {
		if m[1] == ParamRealm {
			continue
		}
		params.Add(m[1], PercentDecode(m[2]))
	}
	return params
}

// AuthorizationHeader renders params as an "OAuth ..." Authorization header
// value. Only oauth_* parameters are included.
func AuthorizationHeader(realm string, params url.Values) string {
	parts := make([]string, 0, len(params)+1)
	if realm != "" {
		parts = append(parts, ParamRealm+`="`+PercentEncode(realm)+`"`)
	}
	for _, kv := range sortedOAuthParams(params) {
		parts = append(parts, kv.key+`="`+kv.value+`"`)
	}
	return "OAuth " + strings.Join(parts, ",")
}

func sortedOAuthParams(params url.Values) []encodedParam {
	var kvs []encodedParam
	for k, vs := range params {
		if !strings.HasPrefix(k, "oauth_") || len(vs) == 0 {
			continue
		}
		kvs = append(kvs, encodedParam{key: PercentEncode(k), value: PercentEncode(vs[0])})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].key < kvs[j].key })
	return kvs
}
