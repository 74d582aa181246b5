package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-lti/ltiprovider/storage/model"
)

// ConsumerStorage implements model.ConsumerStore using GORM
type ConsumerStorage struct {
	db *gorm.DB
}

// Get returns the consumer for key or (nil, nil) if there is none
func (s *ConsumerStorage) Get(key string) (*model.Consumer, error) {
	var c model.Consumer
	if err := s.db.Where(&model.Consumer{Key: key}).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// List returns all consumers ordered by name
func (s *ConsumerStorage) List() ([]model.Consumer, error) {
	var consumers []model.Consumer
	if err := s.db.Order("name").Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&consumers).Error; err != nil {
		return nil, err
	}
	return consumers, nil
}

// Save creates or replaces the consumer
func (s *ConsumerStorage) Save(c *model.Consumer) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(c).Error
}

// Delete removes the consumer together with everything that belongs to it
func (s *ConsumerStorage) Delete(key string) error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			var linkIDs []string
			if err := tx.Model(&model.ResourceLink{}).
				Where("consumer_key = ?", key).
				Pluck("resource_link_id", &linkIDs).Error; err != nil {
				return err
			}
			for _, id := range linkIDs {
				if err := deleteResourceLink(tx, key, id); err != nil {
					return err
				}
			}
			if err := tx.Where("primary_consumer_key = ?", key).Delete(&model.ShareKey{}).Error; err != nil {
				return err
			}
			if err := tx.Where("consumer_key = ?", key).Delete(&model.Nonce{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.AdminUser{}).
				Where("consumer_key = ?", key).
				Update("disabled", true).Error; err != nil {
				return err
			}
			if key != model.ProviderScope {
				if err := tx.Where("scope = ?", key).Delete(&model.LaunchSetting{}).Error; err != nil {
					return err
				}
			}
			res := tx.Where(&model.Consumer{Key: key}).Delete(&model.Consumer{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return model.NotFoundErrorFmt("consumer not found: %s", key)
			}
			return nil
		},
	)
}
