package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Names of the stored launch settings
const (
	SettingAllowSharing = "allow_sharing"
	SettingDefaultEmail = "default_email"
)

// ProviderScope is the scope of settings that apply to every consumer; any
// other scope is the key of the consumer the setting overrides
const ProviderScope = ""

// IsLaunchSetting reports whether name is a known setting
func IsLaunchSetting(name string) bool {
	return name == SettingAllowSharing || name == SettingDefaultEmail
}

// LaunchSetting is a single stored setting
type LaunchSetting struct {
	Scope     string         `gorm:"primaryKey;size:255"`
	Name      string         `gorm:"primaryKey;size:64"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

// LaunchSettings override the configured launch options; nil fields are not
// set
type LaunchSettings struct {
	AllowSharing *bool   `json:"allow_sharing"`
	DefaultEmail *string `json:"default_email"`
}

// Over returns s with its unset fields taken from fallback
func (s LaunchSettings) Over(fallback LaunchSettings) LaunchSettings {
	if s.AllowSharing == nil {
		s.AllowSharing = fallback.AllowSharing
	}
	if s.DefaultEmail == nil {
		s.DefaultEmail = fallback.DefaultEmail
	}
	return s
}

// Rows returns the set fields of s as rows of scope
func (s LaunchSettings) Rows(scope string) ([]LaunchSetting, error) {
	values := map[string]any{}
	if s.AllowSharing != nil {
		values[SettingAllowSharing] = *s.AllowSharing
	}
	if s.DefaultEmail != nil {
		values[SettingDefaultEmail] = *s.DefaultEmail
	}
	rows := make([]LaunchSetting, 0, len(values))
	for name, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		rows = append(
			rows, LaunchSetting{
				Scope: scope,
				Name:  name,
				Value: raw,
			},
		)
	}
	return rows, nil
}

// Apply sets the field named by row; unknown names are ignored
func (s *LaunchSettings) Apply(row LaunchSetting) error {
	switch row.Name {
	case SettingAllowSharing:
		var v bool
		if err := json.Unmarshal(row.Value, &v); err != nil {
			return err
		}
		s.AllowSharing = &v
	case SettingDefaultEmail:
		var v string
		if err := json.Unmarshal(row.Value, &v); err != nil {
			return err
		}
		s.DefaultEmail = &v
	}
	return nil
}

// LaunchSettingsStore persists LaunchSettings per scope
type LaunchSettingsStore interface {
	// Get returns the settings stored for scope
	Get(scope string) (LaunchSettings, error)
	// Effective returns the settings of the consumer over the provider-wide
	// settings
	Effective(consumerKey string) (LaunchSettings, error)
	// Update stores the set fields of s for scope; unset fields are kept
	Update(scope string, s LaunchSettings) error
	// Unset removes one setting of scope; no error if it is missing
	Unset(scope, name string) error
}
