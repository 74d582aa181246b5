package model

import (
	"time"
)

// ShareKey authorizes a resource link of another consumer to share the
// primary resource link
type ShareKey struct {
	ID                    string    `gorm:"primaryKey;size:32" json:"share_key_id"`
	PrimaryConsumerKey    string    `gorm:"size:255;index" json:"primary_consumer_key"`
	PrimaryResourceLinkID string    `gorm:"size:255" json:"primary_resource_link_id"`
	AutoApprove           bool      `json:"auto_approve"`
	Expires               time.Time `gorm:"index" json:"expires"`
}

// ShareKeyStore persists ShareKeys
type ShareKeyStore interface {
	// Get returns the share key or (nil, nil) if there is none. Expired
	// keys are never returned.
	Get(id string) (*ShareKey, error)
	// Save creates or replaces the share key
	Save(k *ShareKey) error
	// Delete removes the share key; no error if it is missing
	Delete(id string) error
	// Consume removes the unexpired share key and reports whether this call
	// removed it; of concurrent calls for the same key only one gets true
	Consume(id string, now time.Time) (bool, error)
}
