package storage

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-lti/ltiprovider/storage/model"
)

// NonceStorage implements model.NonceStore using GORM. The primary key on
// (consumer_key, value) makes the insert atomic.
type NonceStorage struct {
	db *gorm.DB
}

// Insert stores the nonce unless it is already known and reports whether it
// was stored. Expired nonces are purged first.
func (s *NonceStorage) Insert(consumerKey, nonce string, expires time.Time) (bool, error) {
	var inserted bool
	err := s.db.Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Where("expires <= ?", time.Now()).Delete(&model.Nonce{}).Error; err != nil {
				return err
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(
				&model.Nonce{
					ConsumerKey: consumerKey,
					Value:       nonce,
					Expires:     expires,
				},
			)
			if res.Error != nil {
				return res.Error
			}
			inserted = res.RowsAffected == 1
			return nil
		},
	)
	return inserted, err
}
