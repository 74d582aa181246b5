package model

import (
	"time"

	"gorm.io/datatypes"
)

// ResourceLink is a placement of the tool inside a consumer's context
type ResourceLink struct {
	ConsumerKey           string                                 `gorm:"primaryKey;size:255" json:"consumer_key"`
	ResourceLinkID        string                                 `gorm:"primaryKey;size:255" json:"resource_link_id"`
	ContextID             string                                 `gorm:"size:255" json:"context_id,omitempty"`
	LTIResourceID         string                                 `gorm:"size:255" json:"lti_resource_id,omitempty"`
	Title                 string                                 `json:"title"`
	Settings              datatypes.JSONType[map[string]string] `json:"settings"`
	PrimaryConsumerKey    *string                                `gorm:"size:255;index:idx_primary_link" json:"primary_consumer_key,omitempty"`
	PrimaryResourceLinkID *string                                `gorm:"size:255;index:idx_primary_link" json:"primary_resource_link_id,omitempty"`
	ShareStatus           ShareStatus                            `json:"share_status"`
	CreatedAt             time.Time                              `json:"created"`
	UpdatedAt             time.Time                              `json:"updated"`
}

// HasPrimary reports whether the link shares the data of a primary link
func (l ResourceLink) HasPrimary() bool {
	return l.PrimaryConsumerKey != nil && l.PrimaryResourceLinkID != nil
}

// LinkedUser is a User together with the identifiers of its resource link
// needed to derive scoped user ids
type LinkedUser struct {
	User
	ContextID     string
	LTIResourceID string
	IDScope       IDScope
}

// ResourceLinkStore persists ResourceLinks
type ResourceLinkStore interface {
	// Get returns the resource link or (nil, nil) if there is none
	Get(consumerKey, resourceLinkID string) (*ResourceLink, error)
	// Save creates or replaces the resource link. If previousID is set and
	// differs from the link's id, the stored link (and its users and shares)
	// is renamed first.
	Save(link *ResourceLink, previousID string) error
	// Delete removes the resource link and its users; links sharing it lose
	// their primary pointer
	Delete(consumerKey, resourceLinkID string) error
	// Shares returns the links that use the passed link as their primary
	Shares(consumerKey, resourceLinkID string) ([]ResourceLink, error)
	// ResultUsers returns the users holding a result sourcedid for the link
	// and, unless localOnly is set, for the links approved to share it
	ResultUsers(consumerKey, resourceLinkID string, localOnly bool) ([]LinkedUser, error)
}
