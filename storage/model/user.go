package model

import (
	"time"
)

// User is a user of a resource link who holds a result sourcedid
type User struct {
	ConsumerKey     string    `gorm:"primaryKey;size:255" json:"consumer_key"`
	ResourceLinkID  string    `gorm:"primaryKey;size:255" json:"resource_link_id"`
	UserID          string    `gorm:"primaryKey;size:255" json:"user_id"`
	ResultSourcedID string    `gorm:"size:1024" json:"lti_result_sourcedid"`
	CreatedAt       time.Time `json:"created"`
	UpdatedAt       time.Time `json:"updated"`
}

// UserStore persists Users
type UserStore interface {
	// Get returns the user or (nil, nil) if there is none
	Get(consumerKey, resourceLinkID, userID string) (*User, error)
	// Save creates or replaces the user
	Save(u *User) error
	// Delete removes the user; no error if it is missing
	Delete(consumerKey, resourceLinkID, userID string) error
}
