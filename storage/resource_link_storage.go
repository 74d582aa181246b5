package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-lti/ltiprovider/storage/model"
)

// ResourceLinkStorage implements model.ResourceLinkStore using GORM
type ResourceLinkStorage struct {
	db *gorm.DB
}

const linkCondition = "consumer_key = ? AND resource_link_id = ?"
const primaryCondition = "primary_consumer_key = ? AND primary_resource_link_id = ?"

// Get returns the resource link or (nil, nil) if there is none
func (s *ResourceLinkStorage) Get(consumerKey, resourceLinkID string) (*model.ResourceLink, error) {
	return getResourceLink(s.db, consumerKey, resourceLinkID)
}

func getResourceLink(tx *gorm.DB, consumerKey, resourceLinkID string) (*model.ResourceLink, error) {
	var l model.ResourceLink
	if err := tx.Where(linkCondition, consumerKey, resourceLinkID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// Save creates or replaces the resource link, renaming a stored link with
// previousID first
func (s *ResourceLinkStorage) Save(link *model.ResourceLink, previousID string) error {
	if link.HasPrimary() && *link.PrimaryConsumerKey == link.ConsumerKey &&
		*link.PrimaryResourceLinkID == link.ResourceLinkID {
		return errors.New("a resource link cannot be its own primary")
	}
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			if previousID != "" && previousID != link.ResourceLinkID {
				if err := renameResourceLink(tx, link.ConsumerKey, previousID, link.ResourceLinkID); err != nil {
					return err
				}
			}
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(link).Error
		},
	)
}

func renameResourceLink(tx *gorm.DB, consumerKey, from, to string) error {
	if err := tx.Model(&model.ResourceLink{}).
		Where(linkCondition, consumerKey, from).
		Update("resource_link_id", to).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.User{}).
		Where(linkCondition, consumerKey, from).
		Update("resource_link_id", to).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.ResourceLink{}).
		Where(primaryCondition, consumerKey, from).
		Update("primary_resource_link_id", to).Error; err != nil {
		return err
	}
	return tx.Model(&model.ShareKey{}).
		Where("primary_consumer_key = ? AND primary_resource_link_id = ?", consumerKey, from).
		Update("primary_resource_link_id", to).Error
}

// Delete removes the resource link and its users
func (s *ResourceLinkStorage) Delete(consumerKey, resourceLinkID string) error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			return deleteResourceLink(tx, consumerKey, resourceLinkID)
		},
	)
}

func deleteResourceLink(tx *gorm.DB, consumerKey, resourceLinkID string) error {
	if err := tx.Where(linkCondition, consumerKey, resourceLinkID).Delete(&model.User{}).Error; err != nil {
		return err
	}
	if err := tx.Where(
		"primary_consumer_key = ? AND primary_resource_link_id = ?", consumerKey, resourceLinkID,
	).Delete(&model.ShareKey{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.ResourceLink{}).
		Where(primaryCondition, consumerKey, resourceLinkID).
		Updates(
			map[string]any{
				"primary_consumer_key":     nil,
				"primary_resource_link_id": nil,
				"share_status":             model.ShareStatusNone,
			},
		).Error; err != nil {
		return err
	}
	return tx.Where(linkCondition, consumerKey, resourceLinkID).Delete(&model.ResourceLink{}).Error
}

// Shares returns the links that use the passed link as their primary
func (s *ResourceLinkStorage) Shares(consumerKey, resourceLinkID string) ([]model.ResourceLink, error) {
	var links []model.ResourceLink
	if err := s.db.Where(primaryCondition, consumerKey, resourceLinkID).
		Order("consumer_key").Order("resource_link_id").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// ResultUsers returns the users holding a result sourcedid for the link and,
// unless localOnly is set, for the links approved to share it
func (s *ResourceLinkStorage) ResultUsers(consumerKey, resourceLinkID string, localOnly bool) (
	[]model.LinkedUser, error,
) {
	link, err := getResourceLink(s.db, consumerKey, resourceLinkID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, model.NotFoundErrorFmt("resource link not found: %s/%s", consumerKey, resourceLinkID)
	}
	links := []model.ResourceLink{*link}
	if !localOnly {
		shares, err := s.Shares(consumerKey, resourceLinkID)
		if err != nil {
			return nil, err
		}
		for _, share := range shares {
			if share.ShareStatus == model.ShareStatusApproved {
				links = append(links, share)
			}
		}
	}
	scopes := make(map[string]model.IDScope)
	var out []model.LinkedUser
	for _, l := range links {
		scope, ok := scopes[l.ConsumerKey]
		if !ok {
			var c model.Consumer
			if err = s.db.Select("id_scope").Where(&model.Consumer{Key: l.ConsumerKey}).First(&c).Error; err != nil &&
				!errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			scope = c.IDScope
			scopes[l.ConsumerKey] = scope
		}
		var users []model.User
		if err = s.db.Where(linkCondition, l.ConsumerKey, l.ResourceLinkID).
			Where("result_sourced_id <> ''").
			Order("user_id").
			Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			out = append(
				out, model.LinkedUser{
					User:          u,
					ContextID:     l.ContextID,
					LTIResourceID: l.LTIResourceID,
					IDScope:       scope,
				},
			)
		}
	}
	return out, nil
}
