package lti

import (
	"maps"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/go-lti/ltiprovider/storage/model"
)

// Names of the resource link settings holding service endpoints and values
const (
	SettingOutcomeServiceURL      = "lis_outcome_service_url"
	SettingResultSourcedID        = "lis_result_sourcedid"
	SettingBasicOutcomeURL        = "ext_ims_lis_basic_outcome_url"
	SettingResultValueSourcedIDs  = "ext_ims_lis_resultvalue_sourcedids"
	SettingMembershipsID          = "ext_ims_lis_memberships_id"
	SettingMembershipsURL         = "ext_ims_lis_memberships_url"
	SettingToolSetting            = "ext_ims_lti_tool_setting"
	SettingToolSettingID          = "ext_ims_lti_tool_setting_id"
	SettingToolSettingURL         = "ext_ims_lti_tool_setting_url"
	SettingResourceLinkContent    = "ext_resource_link_content"
	SettingResourceLinkContentSig = "ext_resource_link_content_signature"
)

// LaunchSettings are the launch parameters copied into the settings of a
// resource link on every launch
var LaunchSettings = []string{
	SettingResourceLinkContent,
	SettingResourceLinkContentSig,
	SettingResultSourcedID,
	SettingOutcomeServiceURL,
	SettingBasicOutcomeURL,
	SettingResultValueSourcedIDs,
	SettingMembershipsID,
	SettingMembershipsURL,
	SettingToolSetting,
	SettingToolSettingID,
	SettingToolSettingURL,
}

// ResourceLink is a placement of the tool inside a consumer's context
type ResourceLink struct {
	ContextID             string
	LTIResourceID         string
	Title                 string
	PrimaryConsumerKey    string
	PrimaryResourceLinkID string
	ShareStatus           model.ShareStatus
	Created               time.Time
	Updated               time.Time

	consumer        *ToolConsumer
	id              string
	previousID      string
	settings        map[string]string
	settingsChanged bool
}

// NewResourceLink returns an unsaved resource link of consumer
func NewResourceLink(consumer *ToolConsumer, id string) *ResourceLink {
	return &ResourceLink{
		consumer:   consumer,
		id:         id,
		previousID: id,
		settings:   make(map[string]string),
	}
}

// LoadResourceLink loads the resource link id of consumer. If it does not
// exist but a link with currentID does, that link is loaded and will be
// renamed to id when saved.
func LoadResourceLink(consumer *ToolConsumer, id, currentID string) (*ResourceLink, error) {
	l := NewResourceLink(consumer, id)
	row, err := consumer.backends.ResourceLinks.Get(consumer.Key(), id)
	if err != nil {
		return nil, errors.Wrap(err, "could not load resource link")
	}
	if row == nil && currentID != "" && currentID != id {
		row, err = consumer.backends.ResourceLinks.Get(consumer.Key(), currentID)
		if err != nil {
			return nil, errors.Wrap(err, "could not load resource link")
		}
		if row != nil {
			l.previousID = currentID
		}
	}
	if row != nil {
		l.fromRow(row)
	}
	return l, nil
}

func (l *ResourceLink) fromRow(row *model.ResourceLink) {
	l.ContextID = row.ContextID
	l.LTIResourceID = row.LTIResourceID
	l.Title = row.Title
	l.PrimaryConsumerKey = ""
	l.PrimaryResourceLinkID = ""
	if row.HasPrimary() {
		l.PrimaryConsumerKey = *row.PrimaryConsumerKey
		l.PrimaryResourceLinkID = *row.PrimaryResourceLinkID
	}
	l.ShareStatus = row.ShareStatus
	l.Created = row.CreatedAt
	l.Updated = row.UpdatedAt
	l.settings = maps.Clone(row.Settings.Data())
	if l.settings == nil {
		l.settings = make(map[string]string)
	}
}

func (l *ResourceLink) toRow() *model.ResourceLink {
	row := &model.ResourceLink{
		ConsumerKey:    l.consumer.Key(),
		ResourceLinkID: l.id,
		ContextID:      l.ContextID,
		LTIResourceID:  l.LTIResourceID,
		Title:          l.Title,
		Settings:       datatypes.NewJSONType(maps.Clone(l.settings)),
		ShareStatus:    l.ShareStatus,
		CreatedAt:      l.Created,
	}
	if l.HasPrimary() {
		key, id := l.PrimaryConsumerKey, l.PrimaryResourceLinkID
		row.PrimaryConsumerKey = &key
		row.PrimaryResourceLinkID = &id
	}
	return row
}

// ID returns the resource link id
func (l *ResourceLink) ID() string {
	return l.id
}

// PreviousID returns the id the link is stored under until it is saved
func (l *ResourceLink) PreviousID() string {
	return l.previousID
}

// Key returns the key of the link's consumer
func (l *ResourceLink) Key() string {
	return l.consumer.Key()
}

// Consumer returns the consumer of the link
func (l *ResourceLink) Consumer() *ToolConsumer {
	return l.consumer
}

// Exists reports whether the link was loaded from storage
func (l *ResourceLink) Exists() bool {
	return !l.Created.IsZero()
}

// HasPrimary reports whether the link shares another resource link
func (l *ResourceLink) HasPrimary() bool {
	return l.PrimaryConsumerKey != "" && l.PrimaryResourceLinkID != ""
}

// IsSelf reports whether consumerKey and id identify this link
func (l *ResourceLink) IsSelf(consumerKey, id string) bool {
	return consumerKey == l.Key() && id == l.id
}

// Setting returns the value of a setting or def if it is not set
func (l *ResourceLink) Setting(name, def string) string {
	if v, ok := l.settings[name]; ok {
		return v
	}
	return def
}

// SetSetting sets a setting; an empty value removes it
func (l *ResourceLink) SetSetting(name, value string) {
	old, ok := l.settings[name]
	if ok && old == value || !ok && value == "" {
		return
	}
	if value == "" {
		delete(l.settings, name)
	} else {
		l.settings[name] = value
	}
	l.settingsChanged = true
}

// Settings returns a copy of all settings
func (l *ResourceLink) Settings() map[string]string {
	return maps.Clone(l.settings)
}

// SettingNames returns the sorted names of all settings
func (l *ResourceLink) SettingNames() []string {
	names := make([]string, 0, len(l.settings))
	for k := range l.settings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SettingsChanged reports whether settings were changed since the last save
func (l *ResourceLink) SettingsChanged() bool {
	return l.settingsChanged
}

// Save stores the resource link, renaming it if it was loaded under a
// previous id
func (l *ResourceLink) Save() error {
	if l.IsSelf(l.PrimaryConsumerKey, l.PrimaryResourceLinkID) {
		return errors.New("a resource link cannot be its own primary")
	}
	row := l.toRow()
	if err := l.consumer.backends.ResourceLinks.Save(row, l.previousID); err != nil {
		return errors.Wrap(err, "could not save resource link")
	}
	l.previousID = l.id
	l.Created = row.CreatedAt
	l.Updated = row.UpdatedAt
	l.settingsChanged = false
	return nil
}

// SaveSettings saves the link if its settings changed
func (l *ResourceLink) SaveSettings() error {
	if !l.settingsChanged {
		return nil
	}
	return l.Save()
}

// Delete removes the link together with its users
func (l *ResourceLink) Delete() error {
	return l.consumer.backends.ResourceLinks.Delete(l.Key(), l.id)
}

// HasOutcomesService reports whether the consumer offers an outcomes service
// for the link
func (l *ResourceLink) HasOutcomesService() bool {
	return l.Setting(SettingOutcomeServiceURL, "") != "" || l.Setting(SettingBasicOutcomeURL, "") != ""
}

// HasMembershipsService reports whether the consumer offers a memberships
// service for the link
func (l *ResourceLink) HasMembershipsService() bool {
	return l.Setting(SettingMembershipsURL, "") != ""
}

// HasSettingService reports whether the consumer offers a setting service for
// the link
func (l *ResourceLink) HasSettingService() bool {
	return l.Setting(SettingToolSettingURL, "") != ""
}

// Shares returns the resource links sharing this link
func (l *ResourceLink) Shares() ([]model.ResourceLink, error) {
	return l.consumer.backends.ResourceLinks.Shares(l.Key(), l.id)
}

// SetShareStatus approves or rejects the share of a resource link of another
// consumer that points at this link
func (l *ResourceLink) SetShareStatus(consumerKey, resourceLinkID string, status model.ShareStatus) error {
	links := l.consumer.backends.ResourceLinks
	row, err := links.Get(consumerKey, resourceLinkID)
	if err != nil {
		return err
	}
	if row == nil || !row.HasPrimary() ||
		*row.PrimaryConsumerKey != l.Key() || *row.PrimaryResourceLinkID != l.id {
		return model.NotFoundErrorFmt("no share of %s/%s by %s/%s", l.Key(), l.id, consumerKey, resourceLinkID)
	}
	row.ShareStatus = status
	return links.Save(row, "")
}

// UserResultSourcedIDs returns the users of the link (and, unless localOnly
// is set, of approved shares) holding a result sourcedid, keyed by their id
// in scope
func (l *ResourceLink) UserResultSourcedIDs(localOnly bool, scope model.IDScope) (map[string]*User, error) {
	rows, err := l.consumer.backends.ResourceLinks.ResultUsers(l.Key(), l.id, localOnly)
	if err != nil {
		return nil, err
	}
	users := make(map[string]*User, len(rows))
	for _, r := range rows {
		u := &User{
			ResultSourcedID: r.ResultSourcedID,
			Created:         r.CreatedAt,
			Updated:         r.UpdatedAt,
			id:              r.UserID,
			scopeKey:        r.ConsumerKey,
			linkID:          r.ResourceLinkID,
			contextID:       r.ContextID,
			resourceID:      r.LTIResourceID,
			defaultScope:    r.IDScope,
			backends:        l.consumer.backends,
		}
		if r.ConsumerKey == l.Key() && r.ResourceLinkID == l.id {
			u.link = l
		}
		users[u.ScopedID(scope)] = u
	}
	return users, nil
}
