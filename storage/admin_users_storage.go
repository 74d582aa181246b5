package storage

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/go-lti/ltiprovider/storage/model"
)

// ErrInvalidCredentials is returned by Authenticate for unknown users, wrong
// passwords and disabled users alike
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminUsersStorage implements model.AdminUsersStore using GORM
type AdminUsersStorage struct {
	db     *gorm.DB
	hasher passwordHasher
	now    func() time.Time
}

func findAdminUser(tx *gorm.DB, username string) (*model.AdminUser, error) {
	var u model.AdminUser
	err := tx.Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NotFoundErrorFmt("admin user %s not found", username)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func checkConsumerExists(tx *gorm.DB, key string) error {
	if key == "" {
		return nil
	}
	var n int64
	if err := tx.Model(&model.Consumer{}).Where(&model.Consumer{Key: key}).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundErrorFmt("consumer %s not found", key)
	}
	return nil
}

func withoutHash(u *model.AdminUser) *model.AdminUser {
	u.PasswordHash = ""
	return u
}

// Count returns the number of users
func (s *AdminUsersStorage) Count() (int64, error) {
	var n int64
	err := s.db.Model(&model.AdminUser{}).Count(&n).Error
	return n, err
}

// List returns all users ordered by username
func (s *AdminUsersStorage) List() ([]model.AdminUser, error) {
	var users []model.AdminUser
	if err := s.db.Omit("password_hash").Order("username").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns the user or a model.NotFoundError
func (s *AdminUsersStorage) Get(username string) (*model.AdminUser, error) {
	u, err := findAdminUser(s.db, username)
	if err != nil {
		return nil, err
	}
	return withoutHash(u), nil
}

// Create stores u with the argon2id hash of password
func (s *AdminUsersStorage) Create(u model.AdminUser, password string) (*model.AdminUser, error) {
	if u.Username == "" {
		return nil, errors.New("username must not be empty")
	}
	hash, err := s.hasher.hash(password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	u.LastLogin = nil
	err = s.db.Transaction(
		func(tx *gorm.DB) error {
			if _, err := findAdminUser(tx, u.Username); err == nil {
				return model.AlreadyExistsErrorFmt("admin user %s already exists", u.Username)
			} else if !errors.As(err, new(model.NotFoundError)) {
				return err
			}
			if err := checkConsumerExists(tx, u.ConsumerKey); err != nil {
				return err
			}
			return tx.Create(&u).Error
		},
	)
	if err != nil {
		return nil, err
	}
	return withoutHash(&u), nil
}

// Update applies change to the user
func (s *AdminUsersStorage) Update(username string, change model.AdminUserUpdate) (*model.AdminUser, error) {
	var u *model.AdminUser
	err := s.db.Transaction(
		func(tx *gorm.DB) error {
			var err error
			if u, err = findAdminUser(tx, username); err != nil {
				return err
			}
			if change.DisplayName != nil {
				u.DisplayName = *change.DisplayName
			}
			if change.Disabled != nil {
				u.Disabled = *change.Disabled
			}
			if change.ConsumerKey != nil {
				if err = checkConsumerExists(tx, *change.ConsumerKey); err != nil {
					return err
				}
				u.ConsumerKey = *change.ConsumerKey
			}
			if change.Password != nil {
				if u.PasswordHash, err = s.hasher.hash(*change.Password); err != nil {
					return err
				}
			}
			return tx.Save(u).Error
		},
	)
	if err != nil {
		return nil, err
	}
	return withoutHash(u), nil
}

// Delete removes the user
func (s *AdminUsersStorage) Delete(username string) error {
	res := s.db.Where("username = ?", username).Delete(&model.AdminUser{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("admin user %s not found", username)
	}
	return nil
}

// Authenticate checks the credentials, records the login and rehashes the
// password if the hashing parameters changed
func (s *AdminUsersStorage) Authenticate(username, password string) (*model.AdminUser, error) {
	u, err := findAdminUser(s.db, username)
	if err != nil {
		if errors.As(err, new(model.NotFoundError)) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Disabled {
		return nil, ErrInvalidCredentials
	}
	ok, outdated, err := s.hasher.verify(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	now := s.now()
	columns := map[string]any{"last_login": now}
	if outdated {
		if hash, err := s.hasher.hash(password); err == nil {
			columns["password_hash"] = hash
		}
	}
	if err = s.db.Model(&model.AdminUser{}).Where("username = ?", username).UpdateColumns(columns).Error; err != nil {
		return nil, err
	}
	u.LastLogin = &now
	return withoutHash(u), nil
}
