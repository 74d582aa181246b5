package model

import (
	"time"
)

// Consumer is a tool consumer (learning platform) identified by its key
type Consumer struct {
	Key             string     `gorm:"primaryKey;size:255" json:"key"`
	Name            string     `json:"name"`
	Secret          string     `gorm:"size:1024" json:"-"`
	LTIVersion      string     `gorm:"size:10" json:"lti_version,omitempty"`
	ConsumerName    string     `json:"consumer_name,omitempty"`
	ConsumerVersion string     `json:"consumer_version,omitempty"`
	ConsumerGUID    *string    `gorm:"size:1024" json:"consumer_guid,omitempty"`
	CSSPath         string     `gorm:"size:1024" json:"css_path,omitempty"`
	Protected       bool       `json:"protected"`
	Enabled         bool       `json:"enabled"`
	EnableFrom      *time.Time `json:"enable_from,omitempty"`
	EnableUntil     *time.Time `json:"enable_until,omitempty"`
	LastAccess      *time.Time `json:"last_access,omitempty"`
	IDScope         IDScope    `json:"id_scope"`
	DefaultEmail    string     `json:"default_email,omitempty"`
	CreatedAt       time.Time  `json:"created"`
	UpdatedAt       time.Time  `json:"updated"`
}

// ConsumerStore persists Consumers
type ConsumerStore interface {
	// Get returns the consumer for key or (nil, nil) if there is none
	Get(key string) (*Consumer, error)
	// List returns all consumers ordered by name
	List() ([]Consumer, error)
	// Save creates or replaces the consumer
	Save(c *Consumer) error
	// Delete removes the consumer together with its resource links, users,
	// nonces, share keys and launch settings; admin users restricted to the
	// consumer are disabled
	Delete(key string) error
}
