package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-lti/ltiprovider/storage/model"
)

// ShareKeyStorage implements model.ShareKeyStore using GORM
type ShareKeyStorage struct {
	db *gorm.DB
}

// Get returns the share key or (nil, nil) if there is none; expired keys are
// deleted before the lookup
func (s *ShareKeyStorage) Get(id string) (*model.ShareKey, error) {
	if err := s.db.Where("expires <= ?", time.Now()).Delete(&model.ShareKey{}).Error; err != nil {
		return nil, err
	}
	var k model.ShareKey
	if err := s.db.Where("id = ?", id).First(&k).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &k, nil
}

// Save creates or replaces the share key
func (s *ShareKeyStorage) Save(k *model.ShareKey) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(k).Error
}

// Delete removes the share key; no error if it is missing
func (s *ShareKeyStorage) Delete(id string) error {
	return s.db.Where("id = ?", id).Delete(&model.ShareKey{}).Error
}

// Consume deletes the unexpired share key and reports whether a row was
// deleted
func (s *ShareKeyStorage) Consume(id string, now time.Time) (bool, error) {
	res := s.db.Where("id = ? AND expires > ?", id, now).Delete(&model.ShareKey{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
