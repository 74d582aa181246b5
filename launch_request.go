package ltiprovider

import (
	"net/url"
	"strings"

	"github.com/go-lti/ltiprovider/oauth"
)

// LTI message types
const (
	MessageBasicLaunch   = "basic-lti-launch-request"
	MessageConfigure     = "ConfigureLaunchRequest"
	MessageDashboard     = "DashboardRequest"
	MessageContentItem   = "ContentItemSelectionRequest"
	MessageContentReturn = "ContentItemSelection"
)

// Launch parameter names used by the authenticator
const (
	ParamLTIVersion           = "lti_version"
	ParamMessageType          = "lti_message_type"
	ParamResourceLinkID       = "resource_link_id"
	ParamContentItemID        = "custom_content_item_id"
	ParamContextID            = "context_id"
	ParamContextTitle         = "context_title"
	ParamResourceLinkTitle    = "resource_link_title"
	ParamUserID               = "user_id"
	ParamRoles                = "roles"
	ParamGivenName            = "lis_person_name_given"
	ParamFamilyName           = "lis_person_name_family"
	ParamFullName             = "lis_person_name_full"
	ParamEmail                = "lis_person_contact_email_primary"
	ParamResultSourcedID      = "lis_result_sourcedid"
	ParamShareKey             = "custom_share_key"
	ParamDebug                = "custom_debug"
	ParamReturnURL            = "launch_presentation_return_url"
	ParamDocumentTarget       = "launch_presentation_document_target"
	ParamCSSURL               = "launch_presentation_css_url"
	ParamExtCSSURL            = "ext_launch_presentation_css_url"
	ParamConsumerGUID         = "tool_consumer_instance_guid"
	ParamConsumerName         = "tool_consumer_instance_name"
	ParamProductFamilyCode    = "tool_consumer_info_product_family_code"
	ParamProductVersion       = "tool_consumer_info_version"
	ParamExtLMS               = "ext_lms"
	ParamAcceptMediaTypes     = "accept_media_types"
	ParamAcceptTargets        = "accept_presentation_document_targets"
	ParamContentItemReturnURL = "content_item_return_url"
	ParamData                 = "data"
)

// CustomPrefix starts the names of custom launch parameters
const CustomPrefix = "custom_"

// LaunchRequest is an inbound launch. It is not modified once created.
type LaunchRequest struct {
	oauth *oauth.Request
}

// NewLaunchRequest creates a LaunchRequest from the method and full URL of
// the request, its decoded form body and its Authorization header
func NewLaunchRequest(method, rawURL string, form url.Values, authHeader string) (*LaunchRequest, error) {
	r, err := oauth.NewRequest(method, rawURL, form, authHeader)
	if err != nil {
		return nil, err
	}
	return &LaunchRequest{oauth: r}, nil
}

// Param returns the value of a body or header parameter
func (r *LaunchRequest) Param(name string) string {
	return r.oauth.Params.Get(name)
}

// Trimmed returns Param(name) without surrounding whitespace
func (r *LaunchRequest) Trimmed(name string) string {
	return strings.TrimSpace(r.Param(name))
}

// Has reports whether the parameter was sent, even if empty
func (r *LaunchRequest) Has(name string) bool {
	_, ok := r.oauth.Params[name]
	return ok
}

// Params returns a copy of all body and header parameters
func (r *LaunchRequest) Params() url.Values {
	out := make(url.Values, len(r.oauth.Params))
	for k, vs := range r.oauth.Params {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// CustomParams returns the custom_ parameters of the launch
func (r *LaunchRequest) CustomParams() map[string]string {
	out := make(map[string]string)
	for k := range r.oauth.Params {
		if strings.HasPrefix(k, CustomPrefix) {
			out[k] = r.Param(k)
		}
	}
	return out
}

// Version returns the lti_version parameter
func (r *LaunchRequest) Version() string {
	return r.Param(ParamLTIVersion)
}

// MessageType returns the lti_message_type parameter
func (r *LaunchRequest) MessageType() string {
	return r.Param(ParamMessageType)
}

// ConsumerKey returns the oauth_consumer_key of the request
func (r *LaunchRequest) ConsumerKey() string {
	return r.oauth.Param(oauth.ParamConsumerKey)
}

// Debug reports whether the consumer asked for detailed error messages
func (r *LaunchRequest) Debug() bool {
	return r.Param(ParamDebug) == "true"
}

// ReturnURL returns the URL the user is sent back to; for content-item
// selection this is the content_item_return_url
func (r *LaunchRequest) ReturnURL() string {
	if r.MessageType() == MessageContentItem {
		return r.Trimmed(ParamContentItemReturnURL)
	}
	return r.Trimmed(ParamReturnURL)
}

// OAuthRequest returns the signed request
func (r *LaunchRequest) OAuthRequest() *oauth.Request {
	return r.oauth
}
