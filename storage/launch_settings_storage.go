package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-lti/ltiprovider/storage/model"
)

// LaunchSettingsStorage implements model.LaunchSettingsStore using GORM
type LaunchSettingsStorage struct {
	db *gorm.DB
}

func (s *LaunchSettingsStorage) load(scopes ...string) (model.LaunchSettings, error) {
	var settings model.LaunchSettings
	var rows []model.LaunchSetting
	if err := s.db.Where("scope IN ?", scopes).Find(&rows).Error; err != nil {
		return settings, err
	}
	// later scopes take precedence
	for _, scope := range scopes {
		for _, row := range rows {
			if row.Scope != scope {
				continue
			}
			if err := settings.Apply(row); err != nil {
				return settings, errors.Wrapf(err, "invalid value of setting %s", row.Name)
			}
		}
	}
	return settings, nil
}

// Get returns the settings stored for scope
func (s *LaunchSettingsStorage) Get(scope string) (model.LaunchSettings, error) {
	return s.load(scope)
}

// Effective returns the settings of the consumer over the provider-wide
// settings
func (s *LaunchSettingsStorage) Effective(consumerKey string) (model.LaunchSettings, error) {
	if consumerKey == model.ProviderScope {
		return s.load(model.ProviderScope)
	}
	return s.load(model.ProviderScope, consumerKey)
}

// Update upserts the set fields of settings for scope
func (s *LaunchSettingsStorage) Update(scope string, settings model.LaunchSettings) error {
	rows, err := settings.Rows(scope)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return s.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "scope"},
				{Name: "name"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		},
	).Create(&rows).Error
}

// Unset removes one setting of scope
func (s *LaunchSettingsStorage) Unset(scope, name string) error {
	return s.db.Where("scope = ? AND name = ?", scope, name).Delete(&model.LaunchSetting{}).Error
}
