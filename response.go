package ltiprovider

import (
	"html"
	"net/url"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/go-lti/ltiprovider/lti"
)

// Response is what is sent back to the browser after a launch
type Response struct {
	Status      int
	Location    string
	ContentType string
	Body        string
}

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// Respond renders the result of a launch. Failed launches with a return URL
// redirect there with lti_errormsg and lti_errorlog set; failed content-item
// selections post the error back in a signed form instead.
func (p *ToolProvider) Respond(l *Launch) (*Response, error) {
	if l.OK() {
		if l.Redirect != "" {
			return redirect(l.Redirect), nil
		}
		return &Response{
			Status:      fiber.StatusOK,
			ContentType: contentTypeHTML,
			Body:        l.Output,
		}, nil
	}
	if l.ReturnURL == "" {
		body := "Error: " + l.Message
		switch {
		case l.ErrorOutput != "":
			body = l.ErrorOutput
		case l.Debug && l.Reason() != "":
			body = "Debug error: " + l.Reason()
		}
		return &Response{
			Status:      fiber.StatusOK,
			ContentType: contentTypeText,
			Body:        body,
		}, nil
	}

	errorURL := appendErrorQuery(l.ReturnURL, l.Message, l.Reason(), l.Debug)
	if l.Consumer == nil || l.Request.MessageType() != MessageContentItem {
		return redirect(errorURL), nil
	}
	params := url.Values{}
	if l.Request.Has(ParamData) {
		params.Set(ParamData, l.Request.Param(ParamData))
	}
	version := l.Request.Version()
	if version == "" {
		version = lti.Version1
	}
	signed, err := l.Consumer.SignParameters(p.signer, errorURL, MessageContentReturn, version, params)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:      fiber.StatusOK,
		ContentType: contentTypeHTML,
		Body:        SendForm(errorURL, signed),
	}, nil
}

func redirect(location string) *Response {
	return &Response{
		Status:   fiber.StatusFound,
		Location: location,
	}
}

func appendErrorQuery(returnURL, message, reason string, debug bool) string {
	var b strings.Builder
	b.WriteString(returnURL)
	if strings.Contains(returnURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("lti_errormsg=")
	if debug && reason != "" {
		b.WriteString(url.QueryEscape("Debug error: " + reason))
		return b.String()
	}
	b.WriteString(url.QueryEscape(message))
	if reason != "" {
		b.WriteString("&lti_errorlog=")
		b.WriteString(url.QueryEscape("Debug error: " + reason))
	}
	return b.String()
}

// SendForm returns an HTML page that posts params to action as soon as it
// is loaded
func SendForm(action string, params url.Values) string {
	var b strings.Builder
	b.WriteString(`<html>
<head>
<title>IMS LTI message</title>
<script type="text/javascript">
//<![CDATA[
function doOnLoad() {
  document.forms[0].submit();
}

window.onload=doOnLoad;
//]]>
</script>
</head>
<body>
<form action="`)
	b.WriteString(html.EscapeString(action))
	b.WriteString(`" method="post" target="" encType="application/x-www-form-urlencoded">
`)
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		for _, v := range params[k] {
			b.WriteString(`  <input type="hidden" name="`)
			b.WriteString(html.EscapeString(k))
			b.WriteString(`" value="`)
			b.WriteString(html.EscapeString(v))
			b.WriteString("\" />\n")
		}
	}
	b.WriteString("</form>\n</body>\n</html>")
	return b.String()
}
