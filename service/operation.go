package service

import (
	"encoding/xml"
	"net/url"

	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider/internal/xmltree"
)

// Content types of service requests
const (
	ContentTypePOX  = "application/xml"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// POXNamespace is the namespace of LTI 1.1 POX messages
const POXNamespace = "http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0"

// Operation is a single service call. The set of operations is closed; all
// implementations live in this package.
type Operation interface {
	// ServiceName is the POX operation name or the legacy lti_message_type
	ServiceName() string
	ContentType() string
	// HandleResponse extracts the result from a successful response
	HandleResponse(root *xmltree.Node) error
}

type poxOperation interface {
	Operation
	poxRequest() any
}

type formOperation interface {
	Operation
	params() url.Values
}

type poxEnvelope struct {
	XMLName   xml.Name `xml:"imsx_POXEnvelopeRequest"`
	Namespace string   `xml:"xmlns,attr"`
	Version   string   `xml:"imsx_POXHeader>imsx_POXRequestHeaderInfo>imsx_version"`
	MessageID string   `xml:"imsx_POXHeader>imsx_POXRequestHeaderInfo>imsx_messageIdentifier"`
	Body      poxBody  `xml:"imsx_POXBody"`
}

type poxBody struct {
	Request any
}

// EncodeBody returns the request body of op. POX operations are wrapped in an
// envelope carrying messageID; form operations are returned url encoded and
// unsigned.
func EncodeBody(op Operation, messageID string) ([]byte, error) {
	switch o := op.(type) {
	case poxOperation:
		env := poxEnvelope{
			Namespace: POXNamespace,
			Version:   "V1.0",
			MessageID: messageID,
			Body:      poxBody{Request: o.poxRequest()},
		}
		data, err := xml.Marshal(env)
		if err != nil {
			return nil, errors.Wrap(err, "could not encode pox request")
		}
		return append([]byte(xml.Header), data...), nil
	case formOperation:
		return []byte(o.params().Encode()), nil
	}
	return nil, errors.Errorf("unsupported operation %T", op)
}

type pox struct{}

func (pox) ContentType() string {
	return ContentTypePOX
}

type form struct{}

func (form) ContentType() string {
	return ContentTypeForm
}
