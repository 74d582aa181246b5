package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider/internal/xmltree"
	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/oauth"
	"github.com/go-lti/ltiprovider/storage/memstore"
	"github.com/go-lti/ltiprovider/storage/model"
)

const (
	outcomeURL     = "https://lms.example.com/outcomes?course=1"
	basicURL       = "https://lms.example.com/basic"
	settingURL     = "https://lms.example.com/setting"
	membershipsURL = "https://lms.example.com/memberships"
)

const poxSuccess = `<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeResponse xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
  <imsx_POXHeader>
    <imsx_POXResponseHeaderInfo>
      <imsx_version>V1.0</imsx_version>
      <imsx_messageIdentifier>42</imsx_messageIdentifier>
      <imsx_statusInfo>
        <imsx_codeMajor>success</imsx_codeMajor>
        <imsx_severity>status</imsx_severity>
      </imsx_statusInfo>
    </imsx_POXResponseHeaderInfo>
  </imsx_POXHeader>
  <imsx_POXBody>
    <readResultResponse>
      <result><resultScore><language>en</language><textString>0.91</textString></resultScore></result>
    </readResultResponse>
  </imsx_POXBody>
</imsx_POXEnvelopeResponse>`

const poxFailure = `<imsx_POXEnvelopeResponse>
  <imsx_POXHeader><imsx_POXResponseHeaderInfo><imsx_statusInfo>
    <imsx_codeMajor>failure</imsx_codeMajor>
    <imsx_description>unknown sourcedid</imsx_description>
  </imsx_statusInfo></imsx_POXResponseHeaderInfo></imsx_POXHeader>
</imsx_POXEnvelopeResponse>`

const legacySuccess = `<message_response>
  <lti_message_type>basic-lis-readresult</lti_message_type>
  <statusinfo><codemajor>Success</codemajor><severity>Status</severity></statusinfo>
  <result><resultscore><textstring>0.4</textstring></resultscore></result>
  <setting><value>stored</value></setting>
</message_response>`

type captured struct {
	contentType string
	params      url.Values
	body        string
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(
		WithTimeout(time.Second),
		WithMessageIDs(func() string { return "msg-1" }),
	)
	httpmock.ActivateNonDefault(c.HTTPClient().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func newTestLink(t *testing.T, settings map[string]string) *lti.ResourceLink {
	t.Helper()
	b := memstore.New().Backends()
	if err := b.Consumers.Save(
		&model.Consumer{
			Key:        "key",
			Secret:     "secret",
			Enabled:    true,
			LTIVersion: lti.Version1,
		},
	); err != nil {
		t.Fatal(err)
	}
	consumer, err := lti.LoadToolConsumer(b, "key")
	if err != nil {
		t.Fatal(err)
	}
	link := lti.NewResourceLink(consumer, "rl")
	for k, v := range settings {
		link.SetSetting(k, v)
	}
	if err = link.Save(); err != nil {
		t.Fatal(err)
	}
	return link
}

// signedResponder verifies the OAuth signature of the request with the
// consumer secret, records what was sent and answers with body
func signedResponder(t *testing.T, got *captured, status int, body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatal(err)
		}
		got.contentType = req.Header.Get("Content-Type")
		got.body = string(data)
		var form url.Values
		if strings.HasPrefix(got.contentType, ContentTypeForm) {
			if form, err = url.ParseQuery(got.body); err != nil {
				t.Fatal(err)
			}
		}
		r, err := oauth.NewRequest(req.Method, req.URL.String(), form, req.Header.Get("Authorization"))
		if err != nil {
			t.Fatal(err)
		}
		got.params = r.Params
		server := oauth.NewServer(memstore.New().Backends().Nonces)
		err = server.Verify(
			r, func(string, string) (string, string, error) {
				return "secret", "", nil
			},
		)
		if err != nil {
			t.Errorf("request signature does not verify: %v", err)
			return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
		}
		if h := r.Param(oauth.ParamBodyHash); h != "" && h != oauth.BodyHash(data) {
			t.Errorf("body hash does not match body")
		}
		return httpmock.NewStringResponse(status, body), nil
	}
}

func TestEncodeBody(t *testing.T) {
	body, err := EncodeBody(
		&WriteResult{
			SourcedID: "a&b",
			Language:  "en-US",
			Value:     "0.5",
		}, "msg-1",
	)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `xmlns="`+POXNamespace+`"`) {
		t.Errorf("namespace missing: %s", body)
	}
	root, err := xmltree.Parse(body)
	if err != nil {
		t.Fatal(err)
	}
	checks := map[string]string{
		"imsx_POXHeader.imsx_POXRequestHeaderInfo.imsx_version":                        "V1.0",
		"imsx_POXHeader.imsx_POXRequestHeaderInfo.imsx_messageIdentifier":              "msg-1",
		"imsx_POXBody.replaceResultRequest.resultRecord.sourcedGUID.sourcedId":         "a&b",
		"imsx_POXBody.replaceResultRequest.resultRecord.result.resultScore.language":   "en-US",
		"imsx_POXBody.replaceResultRequest.resultRecord.result.resultScore.textString": "0.5",
	}
	for path, expected := range checks {
		if v, ok := root.Value(path); !ok || v != expected {
			t.Errorf("%s: expected %q, got %q (%v)", path, expected, v, ok)
		}
	}

	body, err = EncodeBody(&DeleteResult{SourcedID: "s"}, "msg-2")
	if err != nil {
		t.Fatal(err)
	}
	root, _ = xmltree.Parse(body)
	if _, ok := root.Find("imsx_POXBody.deleteResultRequest.resultRecord.result"); ok {
		t.Error("delete request carries a result")
	}

	body, err = EncodeBody(&LegacyReadResult{SourcedID: "s 1"}, "")
	if err != nil || string(body) != "sourcedid=s+1" {
		t.Errorf("unexpected form body %q %v", body, err)
	}
}

func TestDoOutcomePOX(t *testing.T) {
	c := newTestClient(t)
	link := newTestLink(t, map[string]string{lti.SettingOutcomeServiceURL: outcomeURL})
	user := lti.NewUser(link, "u1")
	user.ResultSourcedID = "src-1"
	var got captured
	httpmock.RegisterResponder(http.MethodPost, outcomeURL, signedResponder(t, &got, http.StatusOK, poxSuccess))

	o := lti.NewOutcome("", c.Now())
	if err := c.DoOutcome(context.Background(), OutcomeRead, o, user); err != nil {
		t.Fatal(err)
	}
	if o.Value != "0.91" {
		t.Errorf("expected read value 0.91, got %q", o.Value)
	}
	if got.contentType != ContentTypePOX || !strings.Contains(got.body, "<readResultRequest>") {
		t.Errorf("unexpected request %s: %s", got.contentType, got.body)
	}

	o = lti.NewOutcome("50%", c.Now())
	o.Type = lti.OutcomePercentage
	if err := c.DoOutcome(context.Background(), OutcomeWrite, o, user); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.body, "<textString>0.5</textString>") ||
		!strings.Contains(got.body, "<sourcedId>src-1</sourcedId>") {
		t.Errorf("unexpected write body %s", got.body)
	}

	o.SourcedID = "override"
	if err := c.DoOutcome(context.Background(), OutcomeDelete, o, user); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.body, "<deleteResultRequest>") || !strings.Contains(got.body, "override") {
		t.Errorf("unexpected delete body %s", got.body)
	}
	if n := httpmock.GetTotalCallCount(); n != 3 {
		t.Errorf("expected 3 calls, got %d", n)
	}
}

func TestDoOutcomeLegacy(t *testing.T) {
	c := newTestClient(t)
	link := newTestLink(
		t, map[string]string{
			lti.SettingBasicOutcomeURL:       basicURL,
			lti.SettingResultValueSourcedIDs: "decimal,letteraf",
		},
	)
	user := lti.NewUser(link, "u1")
	user.ResultSourcedID = "src-1"
	var got captured
	httpmock.RegisterResponder(http.MethodPost, basicURL, signedResponder(t, &got, http.StatusOK, legacySuccess))

	o := lti.NewOutcome("3/4", c.Now())
	o.Type = lti.OutcomeRatio
	o.Status = "final"
	if err := c.DoOutcome(context.Background(), OutcomeWrite, o, user); err != nil {
		t.Fatal(err)
	}
	expected := map[string]string{
		"lti_message_type":              "basic-lis-updateresult",
		"lti_version":                   lti.Version1,
		"oauth_callback":                "about:blank",
		"sourcedid":                     "src-1",
		"result_resultscore_textstring": "0.75",
		"result_resultvaluesourcedid":   "decimal",
		"result_statusofresult":         "final",
		"result_resultscore_language":   "en-US",
	}
	for k, v := range expected {
		if got.params.Get(k) != v {
			t.Errorf("%s: expected %q, got %q", k, v, got.params.Get(k))
		}
	}

	o = lti.NewOutcome("", c.Now())
	if err := c.DoOutcome(context.Background(), OutcomeRead, o, user); err != nil {
		t.Fatal(err)
	}
	if o.Value != "0.4" || got.params.Get("lti_message_type") != "basic-lis-readresult" {
		t.Errorf("unexpected read %q %q", o.Value, got.params.Get("lti_message_type"))
	}
}

func TestDoOutcomeRejected(t *testing.T) {
	c := newTestClient(t)
	user := lti.NewUser(newTestLink(t, map[string]string{lti.SettingOutcomeServiceURL: outcomeURL}), "u1")
	o := lti.NewOutcome("abc", c.Now())
	o.Type = lti.OutcomePercentage
	err := c.DoOutcome(context.Background(), OutcomeWrite, o, user)
	if !errors.Is(err, &Error{Kind: ErrInvalidValue}) {
		t.Fatalf("expected invalid value error, got %v", err)
	}

	user = lti.NewUser(newTestLink(t, nil), "u1")
	err = c.DoOutcome(context.Background(), OutcomeRead, lti.NewOutcome("", c.Now()), user)
	if !errors.Is(err, &Error{Kind: ErrUnsupported}) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if n := httpmock.GetTotalCallCount(); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}
}

func TestDoErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		kind      ErrorKind
	}{
		{
			name:      "transport",
			responder: httpmock.NewErrorResponder(errors.New("connection refused")),
			kind:      ErrTransport,
		},
		{
			name:      "status",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, poxSuccess),
			kind:      ErrStatus,
		},
		{
			name:      "parse",
			responder: httpmock.NewStringResponder(http.StatusOK, "not xml <"),
			kind:      ErrParse,
		},
		{
			name:      "failure",
			responder: httpmock.NewStringResponder(http.StatusOK, poxFailure),
			kind:      ErrFailure,
		},
		{
			name:      "legacy status on pox",
			responder: httpmock.NewStringResponder(http.StatusOK, legacySuccess),
			kind:      ErrFailure,
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				c := newTestClient(t)
				link := newTestLink(t, nil)
				httpmock.RegisterResponder(http.MethodPost, outcomeURL, test.responder)
				err := c.Do(context.Background(), link.Consumer(), outcomeURL, &ReadResult{SourcedID: "s"})
				var serr *Error
				if !errors.As(err, &serr) {
					t.Fatalf("expected service error, got %v", err)
				}
				if serr.Kind != test.kind || serr.Operation != "readResult" {
					t.Fatalf("expected %s error, got %v", test.kind, serr)
				}
			},
		)
	}
}

func TestDoFailureDescription(t *testing.T) {
	c := newTestClient(t)
	link := newTestLink(t, nil)
	httpmock.RegisterResponder(http.MethodPost, outcomeURL, httpmock.NewStringResponder(http.StatusOK, poxFailure))
	err := c.Do(context.Background(), link.Consumer(), outcomeURL, &DeleteResult{SourcedID: "s"})
	var serr *Error
	if !errors.As(err, &serr) || serr.Description != "unknown sourcedid" {
		t.Fatalf("unexpected error %v", err)
	}
	header, ok := serr.Response["imsx_POXHeader"].(map[string]any)
	if !ok {
		t.Fatalf("failure must carry the consumer response, got %#v", serr.Response)
	}
	info := header["imsx_POXResponseHeaderInfo"].(map[string]any)
	status := info["imsx_statusInfo"].(map[string]any)
	if status["imsx_codeMajor"] != "failure" {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestToolSetting(t *testing.T) {
	c := newTestClient(t)
	link := newTestLink(
		t, map[string]string{
			lti.SettingToolSettingURL: settingURL,
			lti.SettingToolSettingID:  "ts-1",
		},
	)
	var got captured
	httpmock.RegisterResponder(http.MethodPost, settingURL, signedResponder(t, &got, http.StatusOK, legacySuccess))

	value, err := c.ReadToolSetting(context.Background(), link)
	if err != nil {
		t.Fatal(err)
	}
	if value != "stored" || got.params.Get("id") != "ts-1" ||
		got.params.Get("lti_message_type") != "basic-lti-loadsetting" {
		t.Errorf("unexpected read %q %v", value, got.params)
	}

	if err = c.WriteToolSetting(context.Background(), link, "new"); err != nil {
		t.Fatal(err)
	}
	if got.params.Get("setting") != "new" || link.Setting(lti.SettingToolSetting, "") != "new" {
		t.Errorf("setting not written: %v", got.params)
	}
	stored, _ := link.Consumer().Backends().ResourceLinks.Get("key", "rl")
	if stored.Settings.Data()[lti.SettingToolSetting] != "new" {
		t.Error("setting not saved with the link")
	}

	if err = c.DeleteToolSetting(context.Background(), link); err != nil {
		t.Fatal(err)
	}
	if got.params.Get("lti_message_type") != "basic-lti-deletesetting" ||
		link.Setting(lti.SettingToolSetting, "") != "" {
		t.Errorf("setting not deleted: %v", got.params)
	}
}

const membershipsResponse = `<message_response>
  <statusinfo><codemajor>Success</codemajor></statusinfo>
  <memberships>
    <member>
      <user_id>u1</user_id>
      <person_name_given>Ada</person_name_given>
      <person_name_family>Lovelace</person_name_family>
      <person_contact_email_primary>ada@example.com</person_contact_email_primary>
      <roles>Learner</roles>
      <lis_result_sourcedid>src-u1</lis_result_sourcedid>
      <groups>
        <group><id>g1</id><title>Group 1</title><set><id>s1</id><title>Set 1</title></set></group>
        <group><id>g3</id><title>Loose</title></group>
      </groups>
    </member>
    <member>
      <user_id>u2</user_id>
      <person_name_full>Grace Hopper</person_name_full>
      <roles>Instructor</roles>
      <groups>
        <group><id>g2</id><title>Group 2</title><set><id>s1</id><title>Set 1</title></set></group>
      </groups>
    </member>
  </memberships>
</message_response>`

func TestMemberships(t *testing.T) {
	c := newTestClient(t)
	link := newTestLink(
		t, map[string]string{
			lti.SettingMembershipsURL: membershipsURL,
			lti.SettingMembershipsID:  "m-1",
		},
	)
	gone := lti.NewUser(link, "gone")
	gone.ResultSourcedID = "src-gone"
	if err := gone.Save(); err != nil {
		t.Fatal(err)
	}
	var got captured
	httpmock.RegisterResponder(
		http.MethodPost, membershipsURL, signedResponder(t, &got, http.StatusOK, membershipsResponse),
	)

	m, err := c.Memberships(context.Background(), link, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.params.Get("lti_message_type") != "basic-lis-readmembershipsforcontextwithgroups" ||
		got.params.Get("id") != "m-1" {
		t.Errorf("unexpected request %v", got.params)
	}
	if len(m.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(m.Users))
	}
	ada, grace := m.Users[0], m.Users[1]
	if ada.FullName != "Ada Lovelace" || ada.Email != "ada@example.com" || !ada.IsLearner() {
		t.Errorf("unexpected user %+v", ada)
	}
	if grace.FirstName != "Grace" || grace.LastName != "Hopper" || !grace.IsStaff() {
		t.Errorf("unexpected user %+v", grace)
	}
	set := m.GroupSets["s1"]
	if set == nil || set.Title != "Set 1" || set.NumMembers != 2 || set.NumStaff != 1 || set.NumLearners != 1 ||
		len(set.Groups) != 2 {
		t.Errorf("unexpected group set %+v", set)
	}
	if g := m.Groups["g3"]; g == nil || g.SetID != "" || g.Title != "Loose" {
		t.Errorf("unexpected group %+v", g)
	}
	if len(ada.Groups) != 2 || len(grace.Groups) != 1 {
		t.Errorf("unexpected user groups %v %v", ada.Groups, grace.Groups)
	}

	users := link.Consumer().Backends().Users
	if u, _ := users.Get("key", "rl", "u1"); u == nil || u.ResultSourcedID != "src-u1" {
		t.Errorf("member with sourcedid not saved: %+v", u)
	}
	if u, _ := users.Get("key", "rl", "u2"); u != nil {
		t.Error("member without sourcedid saved")
	}
	if u, _ := users.Get("key", "rl", "gone"); u != nil {
		t.Error("user missing from memberships not removed")
	}
}
