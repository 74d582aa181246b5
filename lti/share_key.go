package lti

import (
	"time"

	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider/internal/utils"
	"github.com/go-lti/ltiprovider/storage/model"
)

// Share key limits; lives are in hours
const (
	MaxShareKeyLife     = 168
	DefaultShareKeyLife = 24
	MinShareKeyLength   = 5
	MaxShareKeyLength   = 32
)

// ShareKey is a one-time token that lets a resource link of another consumer
// share a primary resource link
type ShareKey struct {
	ID                    string
	PrimaryConsumerKey    string
	PrimaryResourceLinkID string
	AutoApprove           bool
	// Length of a generated id, clamped to [MinShareKeyLength, MaxShareKeyLength]
	Length int
	// Life in hours, clamped to [0, MaxShareKeyLife]; 0 means DefaultShareKeyLife
	Life    int
	Expires time.Time
}

// NewShareKey returns an unsaved share key for link
func NewShareKey(link *ResourceLink) *ShareKey {
	return &ShareKey{
		PrimaryConsumerKey:    link.Key(),
		PrimaryResourceLinkID: link.ID(),
	}
}

// LoadShareKey loads an unexpired share key; it returns nil if there is none
func LoadShareKey(store model.ShareKeyStore, id string, now time.Time) (*ShareKey, error) {
	row, err := store.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "could not load share key")
	}
	if row == nil {
		return nil, nil
	}
	return &ShareKey{
		ID:                    row.ID,
		PrimaryConsumerKey:    row.PrimaryConsumerKey,
		PrimaryResourceLinkID: row.PrimaryResourceLinkID,
		AutoApprove:           row.AutoApprove,
		Length:                len(row.ID),
		Life:                  int(row.Expires.Sub(now).Hours()),
		Expires:               row.Expires,
	}, nil
}

// Save stores the share key, generating its id if it has none
func (k *ShareKey) Save(store model.ShareKeyStore, now time.Time) error {
	switch {
	case k.Life == 0:
		k.Life = DefaultShareKeyLife
	case k.Life > MaxShareKeyLife:
		k.Life = MaxShareKeyLife
	case k.Life < 0:
		k.Life = 0
	}
	k.Expires = now.Add(time.Duration(k.Life) * time.Hour)
	if k.ID == "" {
		switch {
		case k.Length <= 0:
			k.Length = MaxShareKeyLength
		case k.Length < MinShareKeyLength:
			k.Length = MinShareKeyLength
		case k.Length > MaxShareKeyLength:
			k.Length = MaxShareKeyLength
		}
		id, err := utils.RandomString(k.Length)
		if err != nil {
			return errors.Wrap(err, "could not generate share key")
		}
		k.ID = id
	}
	return store.Save(
		&model.ShareKey{
			ID:                    k.ID,
			PrimaryConsumerKey:    k.PrimaryConsumerKey,
			PrimaryResourceLinkID: k.PrimaryResourceLinkID,
			AutoApprove:           k.AutoApprove,
			Expires:               k.Expires,
		},
	)
}

// Delete removes the share key
func (k *ShareKey) Delete(store model.ShareKeyStore) error {
	return store.Delete(k.ID)
}

// Consume removes the share key for use in a launch; false means the key
// expired or was used by another launch in the meantime
func (k *ShareKey) Consume(store model.ShareKeyStore, now time.Time) (bool, error) {
	ok, err := store.Consume(k.ID, now)
	if err != nil {
		return false, errors.Wrap(err, "could not consume share key")
	}
	return ok, nil
}
