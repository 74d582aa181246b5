package model

import (
	"time"
)

// MaxNonceAge is the time a nonce is remembered
const MaxNonceAge = 30 * time.Minute

// Nonce is a used oauth_nonce of a consumer
type Nonce struct {
	ConsumerKey string    `gorm:"primaryKey;size:255"`
	Value       string    `gorm:"primaryKey;size:255"`
	Expires     time.Time `gorm:"index"`
}

// NonceStore records nonces. Insert must be atomic: it stores the nonce
// unless an unexpired record for the same consumer and value exists and
// reports whether it stored it.
type NonceStore interface {
	Insert(consumerKey, nonce string, expires time.Time) (bool, error)
}
