package model

import (
	"time"
)

// AdminUser is an operator of the admin API. While no user exists the admin
// API is open; afterwards every request needs HTTP Basic authentication.
type AdminUser struct {
	Username     string `gorm:"primaryKey;size:255" json:"username"`
	PasswordHash string `gorm:"size:512;not null" json:"-"`
	DisplayName  string `json:"display_name,omitempty"`
	// ConsumerKey restricts the user to the routes of a single consumer;
	// empty grants access to everything
	ConsumerKey string     `gorm:"size:255;index" json:"consumer_key,omitempty"`
	Disabled    bool       `json:"disabled"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created"`
	UpdatedAt   time.Time  `json:"updated"`
}

// CanManage reports whether the user may access the data of the consumer
func (u AdminUser) CanManage(consumerKey string) bool {
	return u.ConsumerKey == "" || u.ConsumerKey == consumerKey
}

// AdminUserUpdate holds changes to an AdminUser; nil fields are kept
type AdminUserUpdate struct {
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password"`
	ConsumerKey *string `json:"consumer_key"`
	Disabled    *bool   `json:"disabled"`
}

// AdminUsersStore persists AdminUsers. Returned users never carry the
// password hash.
type AdminUsersStore interface {
	// Count returns the number of users
	Count() (int64, error)
	// List returns all users ordered by username
	List() ([]AdminUser, error)
	// Get returns the user or a NotFoundError
	Get(username string) (*AdminUser, error)
	// Create stores u with the hash of password; the consumer a user is
	// restricted to must exist
	Create(u AdminUser, password string) (*AdminUser, error)
	// Update applies change to the user
	Update(username string, change AdminUserUpdate) (*AdminUser, error)
	// Delete removes the user or returns a NotFoundError
	Delete(username string) error
	// Authenticate checks the credentials of an enabled user and records the
	// login
	Authenticate(username, password string) (*AdminUser, error)
}
