package lti

import (
	"slices"
	"strings"
	"time"

	arrays "github.com/adam-hanna/arrayOperations"
	"github.com/pkg/errors"
	slices2 "tideland.dev/go/slices"

	"github.com/go-lti/ltiprovider/storage/model"
)

// RolePrefix is prepended to role names that are not URNs
const RolePrefix = "urn:lti:role:ims/lis/"

var (
	adminRoles = normalizeRoles(
		[]string{
			"Administrator",
			"urn:lti:sysrole:ims/lis/SysAdmin",
			"urn:lti:sysrole:ims/lis/Administrator",
			"urn:lti:instrole:ims/lis/Administrator",
		},
	)
	staffRoles   = normalizeRoles([]string{"Instructor", "ContentDeveloper", "TeachingAssistant"})
	learnerRoles = normalizeRoles([]string{"Learner"})
)

// User is a user of a resource link
type User struct {
	FirstName       string
	LastName        string
	FullName        string
	Email           string
	Roles           []string
	Groups          []string
	ResultSourcedID string
	Created         time.Time
	Updated         time.Time

	id   string
	link *ResourceLink

	// used for users of other links returned by the roster query
	scopeKey     string
	linkID       string
	contextID    string
	resourceID   string
	defaultScope model.IDScope
	backends     model.Backends
}

// NewUser returns a user of link that has not been loaded from storage
func NewUser(link *ResourceLink, id string) *User {
	return &User{
		id:   id,
		link: link,
	}
}

// LoadUser loads the stored result sourcedid of user id in link
func LoadUser(link *ResourceLink, id string) (*User, error) {
	u := NewUser(link, id)
	if link == nil {
		return u, nil
	}
	row, err := link.consumer.backends.Users.Get(link.Key(), link.ID(), id)
	if err != nil {
		return nil, errors.Wrap(err, "could not load user")
	}
	if row != nil {
		u.ResultSourcedID = row.ResultSourcedID
		u.Created = row.CreatedAt
		u.Updated = row.UpdatedAt
	}
	return u, nil
}

// ResourceLink returns the link the user was launched from
func (u *User) ResourceLink() *ResourceLink {
	return u.link
}

// LoadResourceLink returns the link the user was launched from, loading it
// for users of sharing links returned by UserResultSourcedIDs
func (u *User) LoadResourceLink() (*ResourceLink, error) {
	if u.link != nil {
		return u.link, nil
	}
	if u.backends.ResourceLinks == nil || u.linkID == "" {
		return nil, errors.New("user has no resource link")
	}
	consumer, err := LoadToolConsumer(u.backends, u.scopeKey)
	if err != nil {
		return nil, err
	}
	if !consumer.Exists() {
		return nil, model.NotFoundErrorFmt("consumer %s not found", u.scopeKey)
	}
	link, err := LoadResourceLink(consumer, u.linkID, "")
	if err != nil {
		return nil, err
	}
	if !link.Exists() {
		return nil, model.NotFoundErrorFmt("resource link %s/%s not found", u.scopeKey, u.linkID)
	}
	u.link = link
	return link, nil
}

// ID returns the user id in the id scope of the consumer
func (u *User) ID() string {
	if u.link != nil {
		return u.ScopedID(u.link.consumer.IDScope())
	}
	return u.ScopedID(u.defaultScope)
}

// RawID returns the id as sent by the consumer
func (u *User) RawID() string {
	return u.id
}

// ScopedID returns the user id in scope
func (u *User) ScopedID(scope model.IDScope) string {
	key, contextID, resourceID := u.scopeKey, u.contextID, u.resourceID
	if u.link != nil {
		key, contextID, resourceID = u.link.Key(), u.link.ContextID, u.link.LTIResourceID
	}
	var parts []string
	switch scope {
	case model.IDScopeGlobal:
		parts = []string{key}
	case model.IDScopeContext:
		parts = []string{key, contextID}
	case model.IDScopeResource:
		parts = []string{key, resourceID}
	default:
		return u.id
	}
	var id strings.Builder
	for _, p := range parts {
		if p != "" {
			id.WriteString(p)
			id.WriteString(model.IDScopeSeparator)
		}
	}
	id.WriteString(u.id)
	return id.String()
}

// SetNames sets the name fields. Missing given or family names are taken from
// the full name, then default to "User" and the user id.
func (u *User) SetNames(first, last, full string) {
	var names []string
	u.FullName = strings.TrimSpace(full)
	if u.FullName != "" {
		names = strings.Fields(u.FullName)
		if len(names) > 2 {
			names = []string{names[0], strings.Join(names[1:], " ")}
		}
	}
	nameAt := func(i int) string {
		if i < len(names) {
			return names[i]
		}
		return ""
	}
	switch first = strings.TrimSpace(first); {
	case first != "":
		u.FirstName = first
	case nameAt(0) != "":
		u.FirstName = nameAt(0)
	default:
		u.FirstName = "User"
	}
	switch last = strings.TrimSpace(last); {
	case last != "":
		u.LastName = last
	case nameAt(1) != "":
		u.LastName = nameAt(1)
	default:
		u.LastName = u.id
	}
	if u.FullName == "" {
		u.FullName = u.FirstName + " " + u.LastName
	}
}

// SetEmail sets the email address. Without an address defaultEmail is used;
// a default starting with '@' is appended to the user id.
func (u *User) SetEmail(email, defaultEmail string) {
	switch {
	case email != "":
		u.Email = email
	case strings.HasPrefix(defaultEmail, "@"):
		u.Email = u.ID() + defaultEmail
	default:
		u.Email = defaultEmail
	}
}

// Save stores the user if a result sourcedid is set
func (u *User) Save() error {
	if u.ResultSourcedID == "" || u.link == nil {
		return nil
	}
	row := &model.User{
		ConsumerKey:     u.link.Key(),
		ResourceLinkID:  u.link.ID(),
		UserID:          u.id,
		ResultSourcedID: u.ResultSourcedID,
	}
	if err := u.link.consumer.backends.Users.Save(row); err != nil {
		return errors.Wrap(err, "could not save user")
	}
	u.Created = row.CreatedAt
	u.Updated = row.UpdatedAt
	return nil
}

// Delete removes the stored user
func (u *User) Delete() error {
	if u.link == nil {
		return nil
	}
	return u.link.consumer.backends.Users.Delete(u.link.Key(), u.link.ID(), u.id)
}

// HasRole reports whether the user has role; role names without a URN prefix
// are taken from the LIS role vocabulary
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, normalizeRole(role))
}

// IsAdmin reports whether the user has an administrator role
func (u *User) IsAdmin() bool {
	return len(arrays.Intersect(u.Roles, adminRoles)) > 0
}

// IsStaff reports whether the user is an instructor, content developer or
// teaching assistant
func (u *User) IsStaff() bool {
	return len(arrays.Intersect(u.Roles, staffRoles)) > 0
}

// IsLearner reports whether the user is a learner
func (u *User) IsLearner() bool {
	return len(arrays.Intersect(u.Roles, learnerRoles)) > 0
}

// ParseRoles parses a comma separated list of roles
func ParseRoles(roles string) []string {
	var out []string
	for _, r := range strings.Split(roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, normalizeRole(r))
		}
	}
	return slices2.Unique(out)
}

func normalizeRole(role string) string {
	if strings.HasPrefix(role, "urn:") {
		return role
	}
	return RolePrefix + role
}

func normalizeRoles(roles []string) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = normalizeRole(r)
	}
	return out
}
