package xmltree

import (
	"reflect"
	"testing"
)

const membershipsXML = `<?xml version="1.0" encoding="UTF-8"?>
<message_response>
  <lti_message_type>basic-lis-readmembershipsforcontext</lti_message_type>
  <statusinfo>
    <codemajor>Success</codemajor>
    <severity>Status</severity>
  </statusinfo>
  <memberships>
    <member>
      <user_id>u1</user_id>
      <roles>Instructor</roles>
    </member>
    <member>
      <user_id>u2</user_id>
      <roles>Learner</roles>
      <groups>
        <group id="g1"><title> Group 1 </title></group>
      </groups>
    </member>
  </memberships>
</message_response>`

func TestParseAndFind(t *testing.T) {
	root, err := Parse([]byte(membershipsXML))
	if err != nil {
		t.Fatal(err)
	}
	if root.Name != "message_response" {
		t.Fatalf("unexpected root %q", root.Name)
	}
	if v, ok := root.Value("statusinfo.codemajor"); !ok || v != "Success" {
		t.Fatalf("unexpected codemajor %q %v", v, ok)
	}
	if _, ok := root.Value("statusinfo.codeminor"); ok {
		t.Fatal("missing path reported as present")
	}
	members := root.FindAll("memberships.member")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	group, ok := members[1].Find("groups.group")
	if !ok || group.Attributes["id"] != "g1" || group.ValueOr("title", "") != "Group 1" {
		t.Fatalf("unexpected group %+v", group)
	}
	if got := root.ValueOr("nope", "default"); got != "default" {
		t.Fatalf("unexpected default %q", got)
	}
}

func TestMapView(t *testing.T) {
	root, err := Parse([]byte(membershipsXML))
	if err != nil {
		t.Fatal(err)
	}
	m := root.Map()
	status, ok := m["statusinfo"].(map[string]any)
	if !ok || status["codemajor"] != "Success" {
		t.Fatalf("unexpected statusinfo %#v", m["statusinfo"])
	}
	memberships := m["memberships"].(map[string]any)
	list, ok := memberships["member"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("repeated children must become a list, got %#v", memberships["member"])
	}
	second := list[1].(map[string]any)
	groups := second["groups"].(map[string]any)
	group, ok := groups["group"].(map[string]any)
	if !ok {
		t.Fatalf("single child must collapse to a scalar value, got %#v", groups["group"])
	}
	expectedAttrs := map[string]string{"id": "g1"}
	if !reflect.DeepEqual(group[AttributesKey], expectedAttrs) {
		t.Fatalf("unexpected attributes %#v", group[AttributesKey])
	}
	if group["title"] != "Group 1" {
		t.Fatalf("text must be trimmed, got %q", group["title"])
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "not xml", "<a><b></a>"} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestMapKeepsText(t *testing.T) {
	tests := []struct {
		name     string
		xml      string
		key      string
		expected any
	}{
		{
			name:     "plain leaf",
			xml:      `<r><a>hello</a></r>`,
			key:      "a",
			expected: "hello",
		},
		{
			name: "leaf with attributes",
			xml:  `<r><a lang="en">hello</a></r>`,
			key:  "a",
			expected: map[string]any{
				AttributesKey: map[string]string{"lang": "en"},
				ValueKey:      "hello",
			},
		},
		{
			name:     "empty leaf with attributes",
			xml:      `<r><a lang="en"/></r>`,
			key:      "a",
			expected: map[string]any{AttributesKey: map[string]string{"lang": "en"}},
		},
		{
			name: "mixed content",
			xml:  `<r><a>text<b>x</b></a></r>`,
			key:  "a",
			expected: map[string]any{
				ValueKey: "text",
				"b":      "x",
			},
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				root, err := Parse([]byte(test.xml))
				if err != nil {
					t.Fatal(err)
				}
				got := root.Map()[test.key]
				if !reflect.DeepEqual(got, test.expected) {
					t.Fatalf("expected %#v, got %#v", test.expected, got)
				}
			},
		)
	}
}
