package model

import (
	"fmt"
)

// IDScope determines how the user ids of a consumer are exposed to the tool
type IDScope int

// Constants for IDScope
const (
	// IDScopeIDOnly uses the id as sent by the consumer
	IDScopeIDOnly IDScope = iota
	// IDScopeGlobal prefixes the id with the consumer key
	IDScopeGlobal
	// IDScopeContext prefixes the id with the consumer key and context id
	IDScopeContext
	// IDScopeResource prefixes the id with the consumer key and resource id
	IDScopeResource
)

// IDScopeSeparator separates the parts of a scoped id
const IDScopeSeparator = ":"

// String returns the canonical string representation for the id scope.
func (s IDScope) String() string {
	switch s {
	case IDScopeIDOnly:
		return "id_only"
	case IDScopeGlobal:
		return "global"
	case IDScopeContext:
		return "context"
	case IDScopeResource:
		return "resource"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the id scope as a JSON string.
func (s IDScope) MarshalJSON() ([]byte, error) {
	return []byte("\"" + s.String() + "\""), nil
}

// UnmarshalJSON decodes the id scope from a JSON string.
func (s *IDScope) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("id scope must be a JSON string")
	}
	ps, err := ParseIDScope(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*s = ps
	return nil
}

// ParseIDScope converts a string to an IDScope
func ParseIDScope(v string) (IDScope, error) {
	switch v {
	case "id_only", "":
		return IDScopeIDOnly, nil
	case "global":
		return IDScopeGlobal, nil
	case "context":
		return IDScopeContext, nil
	case "resource":
		return IDScopeResource, nil
	}
	return 0, fmt.Errorf("invalid id scope: %s", v)
}
