package service

import (
	"context"
	"encoding/xml"
	"net/url"

	"github.com/go-lti/ltiprovider/internal/xmltree"
	"github.com/go-lti/ltiprovider/lti"
)

type resultRequest struct {
	XMLName xml.Name
	Record  resultRecord `xml:"resultRecord"`
}

type resultRecord struct {
	SourcedID string       `xml:"sourcedGUID>sourcedId"`
	Score     *resultScore `xml:"result>resultScore,omitempty"`
}

type resultScore struct {
	Language   string `xml:"language"`
	TextString string `xml:"textString"`
}

func newResultRequest(name, sourcedID string, score *resultScore) resultRequest {
	return resultRequest{
		XMLName: xml.Name{Local: name + "Request"},
		Record: resultRecord{
			SourcedID: sourcedID,
			Score:     score,
		},
	}
}

// ReadResult reads the outcome of a result sourcedid through the LTI 1.1
// outcomes service
type ReadResult struct {
	pox
	SourcedID string
	// Value is set from the response; Found reports whether the response
	// carried a score
	Value string
	Found bool
}

func (*ReadResult) ServiceName() string {
	return "readResult"
}

func (op *ReadResult) poxRequest() any {
	return newResultRequest(op.ServiceName(), op.SourcedID, nil)
}

func (op *ReadResult) HandleResponse(root *xmltree.Node) error {
	op.Value, op.Found = root.Value("imsx_POXBody.readResultResponse.result.resultScore.textString")
	return nil
}

// WriteResult replaces the outcome of a result sourcedid through the LTI 1.1
// outcomes service
type WriteResult struct {
	pox
	SourcedID string
	Language  string
	Value     string
}

func (*WriteResult) ServiceName() string {
	return "replaceResult"
}

func (op *WriteResult) poxRequest() any {
	return newResultRequest(
		op.ServiceName(), op.SourcedID, &resultScore{
			Language:   op.Language,
			TextString: op.Value,
		},
	)
}

func (*WriteResult) HandleResponse(*xmltree.Node) error {
	return nil
}

// DeleteResult deletes the outcome of a result sourcedid through the LTI 1.1
// outcomes service
type DeleteResult struct {
	pox
	SourcedID string
}

func (*DeleteResult) ServiceName() string {
	return "deleteResult"
}

func (op *DeleteResult) poxRequest() any {
	return newResultRequest(op.ServiceName(), op.SourcedID, nil)
}

func (*DeleteResult) HandleResponse(*xmltree.Node) error {
	return nil
}

// LegacyReadResult reads an outcome through the basic outcomes extension
type LegacyReadResult struct {
	form
	SourcedID string
	Value     string
	Found     bool
}

func (*LegacyReadResult) ServiceName() string {
	return "basic-lis-readresult"
}

func (op *LegacyReadResult) params() url.Values {
	return url.Values{"sourcedid": {op.SourcedID}}
}

func (op *LegacyReadResult) HandleResponse(root *xmltree.Node) error {
	op.Value, op.Found = root.Value("result.resultscore.textstring")
	return nil
}

// LegacyWriteResult writes an outcome through the basic outcomes extension
type LegacyWriteResult struct {
	form
	SourcedID string
	Outcome   lti.Outcome
}

func (*LegacyWriteResult) ServiceName() string {
	return "basic-lis-updateresult"
}

func (op *LegacyWriteResult) params() url.Values {
	p := url.Values{
		"sourcedid":                     {op.SourcedID},
		"result_resultscore_textstring": {op.Outcome.Value},
	}
	optional := map[string]string{
		"result_resultvaluesourcedid": string(op.Outcome.Type),
		"result_resultscore_language": op.Outcome.Language,
		"result_statusofresult":       op.Outcome.Status,
		"result_date":                 op.Outcome.Date,
		"result_datasource":           op.Outcome.DataSource,
	}
	for k, v := range optional {
		if v != "" {
			p.Set(k, v)
		}
	}
	return p
}

func (*LegacyWriteResult) HandleResponse(*xmltree.Node) error {
	return nil
}

// LegacyDeleteResult deletes an outcome through the basic outcomes extension
type LegacyDeleteResult struct {
	form
	SourcedID string
}

func (*LegacyDeleteResult) ServiceName() string {
	return "basic-lis-deleteresult"
}

func (op *LegacyDeleteResult) params() url.Values {
	return url.Values{"sourcedid": {op.SourcedID}}
}

func (*LegacyDeleteResult) HandleResponse(*xmltree.Node) error {
	return nil
}

// OutcomeAction selects the outcome operation performed by DoOutcome
type OutcomeAction int

// Outcome actions
const (
	OutcomeRead OutcomeAction = iota
	OutcomeWrite
	OutcomeDelete
)

func (a OutcomeAction) String() string {
	switch a {
	case OutcomeRead:
		return "read"
	case OutcomeWrite:
		return "write"
	case OutcomeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// DoOutcome performs action for the outcome of user. The endpoint is taken
// from the resource link the user was launched from, so users of links sharing
// a primary link are graded through their own consumer. The LTI 1.1 service is
// preferred over the basic outcomes extension. A read stores the returned
// value in o.
func (c *Client) DoOutcome(ctx context.Context, action OutcomeAction, o *lti.Outcome, user *lti.User) error {
	if action == OutcomeRead {
		_, err := c.ReadOutcome(ctx, o, user)
		return err
	}
	link, sourcedID, err := outcomeTarget(action, o, user)
	if err != nil {
		return err
	}
	consumer := link.Consumer()

	if serviceURL := link.Setting(lti.SettingOutcomeServiceURL, ""); serviceURL != "" {
		if action == OutcomeDelete {
			return c.Do(ctx, consumer, serviceURL, &DeleteResult{SourcedID: sourcedID})
		}
		if !o.CheckValueType([]lti.OutcomeType{lti.OutcomeDecimal}) {
			return &Error{Kind: ErrInvalidValue, Operation: "replaceResult"}
		}
		return c.Do(
			ctx, consumer, serviceURL, &WriteResult{
				SourcedID: sourcedID,
				Language:  o.Language,
				Value:     o.Value,
			},
		)
	}

	serviceURL := link.Setting(lti.SettingBasicOutcomeURL, "")
	if action == OutcomeDelete {
		return c.Do(ctx, consumer, serviceURL, &LegacyDeleteResult{SourcedID: sourcedID})
	}
	op := &LegacyWriteResult{SourcedID: sourcedID}
	if serviceURL != "" &&
		!o.CheckValueType(lti.SupportedTypes(link.Setting(lti.SettingResultValueSourcedIDs, ""))) {
		return &Error{Kind: ErrInvalidValue, Operation: op.ServiceName()}
	}
	op.Outcome = *o
	return c.Do(ctx, consumer, serviceURL, op)
}

// ReadOutcome reads the outcome of user into o.Value. found is false if the
// consumer answered without a score; o.Value is left unchanged then.
func (c *Client) ReadOutcome(ctx context.Context, o *lti.Outcome, user *lti.User) (found bool, err error) {
	link, sourcedID, err := outcomeTarget(OutcomeRead, o, user)
	if err != nil {
		return false, err
	}
	consumer := link.Consumer()
	if serviceURL := link.Setting(lti.SettingOutcomeServiceURL, ""); serviceURL != "" {
		op := &ReadResult{SourcedID: sourcedID}
		if err = c.Do(ctx, consumer, serviceURL, op); err != nil {
			return false, err
		}
		if op.Found {
			o.Value = op.Value
		}
		return op.Found, nil
	}
	op := &LegacyReadResult{SourcedID: sourcedID}
	if err = c.Do(ctx, consumer, link.Setting(lti.SettingBasicOutcomeURL, ""), op); err != nil {
		return false, err
	}
	if op.Found {
		o.Value = op.Value
	}
	return op.Found, nil
}

func outcomeTarget(action OutcomeAction, o *lti.Outcome, user *lti.User) (*lti.ResourceLink, string, error) {
	link, err := user.LoadResourceLink()
	if err != nil {
		return nil, "", &Error{Kind: ErrUnsupported, Operation: "outcome " + action.String(), Err: err}
	}
	sourcedID := o.SourcedID
	if sourcedID == "" {
		sourcedID = user.ResultSourcedID
	}
	return link, sourcedID, nil
}
