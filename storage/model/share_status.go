package model

import (
	"fmt"
)

// ShareStatus describes the state of a share arrangement of a resource link
// that points at a primary resource link
type ShareStatus int

// Constants for ShareStatus
const (
	ShareStatusNone ShareStatus = iota
	ShareStatusPending
	ShareStatusApproved
	ShareStatusRejected
)

// String returns the canonical string representation for the share status.
func (s ShareStatus) String() string {
	switch s {
	case ShareStatusNone:
		return "none"
	case ShareStatusPending:
		return "pending"
	case ShareStatusApproved:
		return "approved"
	case ShareStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Valid reports whether the share status is one of the defined constants.
func (s ShareStatus) Valid() bool {
	switch s {
	case ShareStatusNone, ShareStatusPending, ShareStatusApproved, ShareStatusRejected:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the share status as a JSON string.
func (s ShareStatus) MarshalJSON() ([]byte, error) {
	return []byte("\"" + s.String() + "\""), nil
}

// UnmarshalJSON decodes the share status from a JSON string.
func (s *ShareStatus) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("share status must be a JSON string")
	}
	ps, err := ParseShareStatus(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*s = ps
	return nil
}

// ParseShareStatus converts a string to a ShareStatus, returning an error for
// invalid values.
func ParseShareStatus(v string) (ShareStatus, error) {
	switch v {
	case "none", "":
		return ShareStatusNone, nil
	case "pending":
		return ShareStatusPending, nil
	case "approved":
		return ShareStatusApproved, nil
	case "rejected":
		return ShareStatusRejected, nil
	}
	return 0, fmt.Errorf("invalid share status: %s", v)
}

// ShareStatusFromApproval maps the auto_approve flag of a share key to the
// status a new share starts in
func ShareStatusFromApproval(approved bool) ShareStatus {
	if approved {
		return ShareStatusApproved
	}
	return ShareStatusPending
}
