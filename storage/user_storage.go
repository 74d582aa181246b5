package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-lti/ltiprovider/storage/model"
)

// UserStorage implements model.UserStore using GORM
type UserStorage struct {
	db *gorm.DB
}

// Get returns the user or (nil, nil) if there is none
func (s *UserStorage) Get(consumerKey, resourceLinkID, userID string) (*model.User, error) {
	var u model.User
	err := s.db.Where(linkCondition, consumerKey, resourceLinkID).
		Where("user_id = ?", userID).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Save creates or replaces the user
func (s *UserStorage) Save(u *model.User) error {
	return s.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "consumer_key"},
				{Name: "resource_link_id"},
				{Name: "user_id"},
			},
			DoUpdates: clause.AssignmentColumns(
				[]string{
					"result_sourced_id",
					"updated_at",
				},
			),
		},
	).Create(u).Error
}

// Delete removes the user; no error if it is missing
func (s *UserStorage) Delete(consumerKey, resourceLinkID, userID string) error {
	return s.db.Where(linkCondition, consumerKey, resourceLinkID).
		Where("user_id = ?", userID).
		Delete(&model.User{}).Error
}
