package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/go-lti/ltiprovider/storage/model"
)

// Storage is a GORM-based storage implementation
type Storage struct {
	db     *gorm.DB
	hasher passwordHasher
}

var models = []any{
	&model.Consumer{},
	&model.ResourceLink{},
	&model.User{},
	&model.Nonce{},
	&model.ShareKey{},
	&model.LaunchSetting{},
	&model.AdminUser{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStorageFromDB(db, config.UsersHash)
}

func newStorageFromDB(db *gorm.DB, params Argon2idParams) (*Storage, error) {
	// Auto migrate the schemas
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{
		db:     db,
		hasher: newPasswordHasher(params),
	}, nil
}

// ConsumerStorage returns a ConsumerStorage
func (s *Storage) ConsumerStorage() *ConsumerStorage {
	return &ConsumerStorage{db: s.db}
}

// ResourceLinkStorage returns a ResourceLinkStorage
func (s *Storage) ResourceLinkStorage() *ResourceLinkStorage {
	return &ResourceLinkStorage{db: s.db}
}

// UserStorage returns a UserStorage
func (s *Storage) UserStorage() *UserStorage {
	return &UserStorage{db: s.db}
}

// NonceStorage returns a NonceStorage
func (s *Storage) NonceStorage() *NonceStorage {
	return &NonceStorage{db: s.db}
}

// ShareKeyStorage returns a ShareKeyStorage
func (s *Storage) ShareKeyStorage() *ShareKeyStorage {
	return &ShareKeyStorage{db: s.db}
}

// LaunchSettingsStorage returns a LaunchSettingsStorage
func (s *Storage) LaunchSettingsStorage() *LaunchSettingsStorage {
	return &LaunchSettingsStorage{db: s.db}
}

// AdminUsersStorage returns an AdminUsersStorage
func (s *Storage) AdminUsersStorage() *AdminUsersStorage {
	return &AdminUsersStorage{
		db:     s.db,
		hasher: s.hasher,
		now:    time.Now,
	}
}
