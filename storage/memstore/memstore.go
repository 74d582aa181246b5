// Package memstore provides in-memory implementations of the storage
// interfaces. They are safe for concurrent use and meant for tests and
// single-process deployments.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/go-lti/ltiprovider/storage/model"
)

type linkKey struct {
	consumerKey, resourceLinkID string
}

type userKey struct {
	linkKey
	userID string
}

// Store holds all data; its accessors return views implementing the model
// interfaces
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	consumers map[string]model.Consumer
	links     map[linkKey]model.ResourceLink
	users     map[userKey]model.User
	nonces    map[string]time.Time
	shareKeys map[string]model.ShareKey
	settings  map[string]model.LaunchSettings
}

// New returns an empty Store
func New() *Store {
	return &Store{
		now:       time.Now,
		consumers: make(map[string]model.Consumer),
		links:     make(map[linkKey]model.ResourceLink),
		users:     make(map[userKey]model.User),
		nonces:    make(map[string]time.Time),
		shareKeys: make(map[string]model.ShareKey),
		settings:  make(map[string]model.LaunchSettings),
	}
}

// SetClock replaces the time source used for expiry checks
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Backends returns the model.Backends view of the store. Admin users are not
// supported in memory.
func (s *Store) Backends() model.Backends {
	return model.Backends{
		Consumers:     (*consumers)(s),
		ResourceLinks: (*resourceLinks)(s),
		Users:         (*users)(s),
		Nonces:        (*nonces)(s),
		ShareKeys:     (*shareKeys)(s),
		Settings:      (*launchSettings)(s),
	}
}

type consumers Store

func (c *consumers) Get(key string) (*model.Consumer, error) {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.consumers[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *consumers) List() ([]model.Consumer, error) {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Consumer, 0, len(s.consumers))
	for _, v := range s.consumers {
		out = append(out, v)
	}
	sort.Slice(
		out, func(i, j int) bool {
			if out[i].Name != out[j].Name {
				return out[i].Name < out[j].Name
			}
			return out[i].Key < out[j].Key
		},
	)
	return out, nil
}

func (c *consumers) Save(v *model.Consumer) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	s.consumers[v.Key] = *v
	return nil
}

func (c *consumers) Delete(key string) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consumers[key]; !ok {
		return model.NotFoundErrorFmt("consumer not found: %s", key)
	}
	for k := range s.links {
		if k.consumerKey == key {
			s.deleteLink(k)
		}
	}
	for id, sk := range s.shareKeys {
		if sk.PrimaryConsumerKey == key {
			delete(s.shareKeys, id)
		}
	}
	for n := range s.nonces {
		if len(n) > len(key) && n[:len(key)+1] == key+"\x00" {
			delete(s.nonces, n)
		}
	}
	delete(s.settings, key)
	delete(s.consumers, key)
	return nil
}

func (s *Store) deleteLink(k linkKey) {
	for uk := range s.users {
		if uk.linkKey == k {
			delete(s.users, uk)
		}
	}
	for id, sk := range s.shareKeys {
		if sk.PrimaryConsumerKey == k.consumerKey && sk.PrimaryResourceLinkID == k.resourceLinkID {
			delete(s.shareKeys, id)
		}
	}
	for lk, l := range s.links {
		if isPrimary(l, k) {
			l.PrimaryConsumerKey = nil
			l.PrimaryResourceLinkID = nil
			l.ShareStatus = model.ShareStatusNone
			s.links[lk] = l
		}
	}
	delete(s.links, k)
}

func isPrimary(l model.ResourceLink, k linkKey) bool {
	return l.HasPrimary() && *l.PrimaryConsumerKey == k.consumerKey && *l.PrimaryResourceLinkID == k.resourceLinkID
}

type resourceLinks Store

func (r *resourceLinks) Get(consumerKey, resourceLinkID string) (*model.ResourceLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.links[linkKey{consumerKey, resourceLinkID}]
	if !ok {
		return nil, nil
	}
	return copyLink(v), nil
}

func copyLink(l model.ResourceLink) *model.ResourceLink {
	settings := make(map[string]string, len(l.Settings.Data()))
	for k, v := range l.Settings.Data() {
		settings[k] = v
	}
	l.Settings = datatypes.NewJSONType(settings)
	return &l
}

func (r *resourceLinks) Save(link *model.ResourceLink, previousID string) error {
	s := (*Store)(r)
	k := linkKey{link.ConsumerKey, link.ResourceLinkID}
	if isPrimary(*link, k) {
		return errors.New("a resource link cannot be its own primary")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if previousID != "" && previousID != link.ResourceLinkID {
		s.renameLink(linkKey{link.ConsumerKey, previousID}, link.ResourceLinkID)
	}
	now := s.now()
	if existing, ok := s.links[k]; ok && link.CreatedAt.IsZero() {
		link.CreatedAt = existing.CreatedAt
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	s.links[k] = *copyLink(*link)
	return nil
}

func (s *Store) renameLink(from linkKey, to string) {
	l, ok := s.links[from]
	if !ok {
		return
	}
	delete(s.links, from)
	l.ResourceLinkID = to
	s.links[linkKey{from.consumerKey, to}] = l
	for uk, u := range s.users {
		if uk.linkKey == from {
			delete(s.users, uk)
			u.ResourceLinkID = to
			s.users[userKey{linkKey{from.consumerKey, to}, uk.userID}] = u
		}
	}
	for lk, sl := range s.links {
		if isPrimary(sl, from) {
			id := to
			sl.PrimaryResourceLinkID = &id
			s.links[lk] = sl
		}
	}
	for id, sk := range s.shareKeys {
		if sk.PrimaryConsumerKey == from.consumerKey && sk.PrimaryResourceLinkID == from.resourceLinkID {
			sk.PrimaryResourceLinkID = to
			s.shareKeys[id] = sk
		}
	}
}

func (r *resourceLinks) Delete(consumerKey, resourceLinkID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLink(linkKey{consumerKey, resourceLinkID})
	return nil
}

func (r *resourceLinks) Shares(consumerKey, resourceLinkID string) ([]model.ResourceLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shares(linkKey{consumerKey, resourceLinkID}), nil
}

func (s *Store) shares(k linkKey) []model.ResourceLink {
	var out []model.ResourceLink
	for _, l := range s.links {
		if isPrimary(l, k) {
			out = append(out, *copyLink(l))
		}
	}
	sort.Slice(
		out, func(i, j int) bool {
			if out[i].ConsumerKey != out[j].ConsumerKey {
				return out[i].ConsumerKey < out[j].ConsumerKey
			}
			return out[i].ResourceLinkID < out[j].ResourceLinkID
		},
	)
	return out
}

func (r *resourceLinks) ResultUsers(consumerKey, resourceLinkID string, localOnly bool) ([]model.LinkedUser, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	k := linkKey{consumerKey, resourceLinkID}
	link, ok := s.links[k]
	if !ok {
		return nil, model.NotFoundErrorFmt("resource link not found: %s/%s", consumerKey, resourceLinkID)
	}
	links := []model.ResourceLink{link}
	if !localOnly {
		for _, share := range s.shares(k) {
			if share.ShareStatus == model.ShareStatusApproved {
				links = append(links, share)
			}
		}
	}
	var out []model.LinkedUser
	for _, l := range links {
		lk := linkKey{l.ConsumerKey, l.ResourceLinkID}
		var linkUsers []model.LinkedUser
		for uk, u := range s.users {
			if uk.linkKey != lk || u.ResultSourcedID == "" {
				continue
			}
			linkUsers = append(
				linkUsers, model.LinkedUser{
					User:          u,
					ContextID:     l.ContextID,
					LTIResourceID: l.LTIResourceID,
					IDScope:       s.consumers[l.ConsumerKey].IDScope,
				},
			)
		}
		sort.Slice(linkUsers, func(i, j int) bool { return linkUsers[i].UserID < linkUsers[j].UserID })
		out = append(out, linkUsers...)
	}
	return out, nil
}

type users Store

func (u *users) Get(consumerKey, resourceLinkID, userID string) (*model.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.users[userKey{linkKey{consumerKey, resourceLinkID}, userID}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (u *users) Save(v *model.User) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userKey{linkKey{v.ConsumerKey, v.ResourceLinkID}, v.UserID}
	now := s.now()
	if existing, ok := s.users[k]; ok {
		v.CreatedAt = existing.CreatedAt
	} else {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	s.users[k] = *v
	return nil
}

func (u *users) Delete(consumerKey, resourceLinkID, userID string) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userKey{linkKey{consumerKey, resourceLinkID}, userID})
	return nil
}

type nonces Store

func (n *nonces) Insert(consumerKey, nonce string, expires time.Time) (bool, error) {
	s := (*Store)(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	k := consumerKey + "\x00" + nonce
	if exp, ok := s.nonces[k]; ok && exp.After(now) {
		return false, nil
	}
	s.nonces[k] = expires
	return true, nil
}

type shareKeys Store

func (k *shareKeys) Get(id string) (*model.ShareKey, error) {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for kid, sk := range s.shareKeys {
		if !sk.Expires.After(now) {
			delete(s.shareKeys, kid)
		}
	}
	v, ok := s.shareKeys[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (k *shareKeys) Save(v *model.ShareKey) error {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareKeys[v.ID] = *v
	return nil
}

func (k *shareKeys) Delete(id string) error {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shareKeys, id)
	return nil
}

func (k *shareKeys) Consume(id string, now time.Time) (bool, error) {
	s := (*Store)(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.shareKeys[id]
	if !ok {
		return false, nil
	}
	delete(s.shareKeys, id)
	return v.Expires.After(now), nil
}

type launchSettings Store

func copySettings(v model.LaunchSettings) model.LaunchSettings {
	var out model.LaunchSettings
	if v.AllowSharing != nil {
		b := *v.AllowSharing
		out.AllowSharing = &b
	}
	if v.DefaultEmail != nil {
		e := *v.DefaultEmail
		out.DefaultEmail = &e
	}
	return out
}

func (ls *launchSettings) Get(scope string) (model.LaunchSettings, error) {
	s := (*Store)(ls)
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySettings(s.settings[scope]), nil
}

func (ls *launchSettings) Effective(consumerKey string) (model.LaunchSettings, error) {
	s := (*Store)(ls)
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySettings(s.settings[consumerKey].Over(s.settings[model.ProviderScope])), nil
}

func (ls *launchSettings) Update(scope string, v model.LaunchSettings) error {
	s := (*Store)(ls)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[scope] = copySettings(v.Over(s.settings[scope]))
	return nil
}

func (ls *launchSettings) Unset(scope, name string) error {
	s := (*Store)(ls)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[scope]
	if !ok {
		return nil
	}
	switch name {
	case model.SettingAllowSharing:
		v.AllowSharing = nil
	case model.SettingDefaultEmail:
		v.DefaultEmail = nil
	}
	s.settings[scope] = v
	return nil
}
