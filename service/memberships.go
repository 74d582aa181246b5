package service

import (
	"context"
	"net/url"
	"slices"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider/internal/xmltree"
	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/storage/model"
)

// GroupSet is a set of groups reported by the memberships service
type GroupSet struct {
	ID          string
	Title       string
	Groups      []string
	NumMembers  int
	NumStaff    int
	NumLearners int
}

// Group is a group reported by the memberships service; SetID is empty for
// groups outside a set
type Group struct {
	ID    string
	Title string
	SetID string
}

// ReadMemberships reads the members of the context of a resource link
type ReadMemberships struct {
	form
	Link       *lti.ResourceLink
	WithGroups bool

	Users     []*lti.User
	GroupSets map[string]*GroupSet
	Groups    map[string]*Group
}

func (op *ReadMemberships) ServiceName() string {
	if op.WithGroups {
		return "basic-lis-readmembershipsforcontextwithgroups"
	}
	return "basic-lis-readmembershipsforcontext"
}

func (op *ReadMemberships) params() url.Values {
	return url.Values{"id": {op.Link.Setting(lti.SettingMembershipsID, "")}}
}

// HandleResponse builds the users of the response. Members holding a result
// sourcedid are saved; stored users of the link missing from the response are
// deleted.
func (op *ReadMemberships) HandleResponse(root *xmltree.Node) error {
	old, err := op.Link.UserResultSourcedIDs(true, model.IDScopeResource)
	if err != nil {
		return errors.Wrap(err, "could not load current users")
	}
	op.Users = nil
	op.GroupSets = make(map[string]*GroupSet)
	op.Groups = make(map[string]*Group)
	defaultEmail := op.Link.Consumer().DefaultEmail()

	for _, m := range root.FindAll("memberships.member") {
		user := lti.NewUser(op.Link, m.ValueOr("user_id", ""))
		user.SetNames(
			m.ValueOr("person_name_given", ""),
			m.ValueOr("person_name_family", ""),
			m.ValueOr("person_name_full", ""),
		)
		user.SetEmail(m.ValueOr("person_contact_email_primary", ""), defaultEmail)
		if roles, ok := m.Value("roles"); ok {
			user.Roles = lti.ParseRoles(roles)
		}
		for _, g := range m.FindAll("groups.group") {
			op.addGroup(user, g)
		}
		if sourcedID, ok := m.Value("lis_result_sourcedid"); ok {
			user.ResultSourcedID = sourcedID
			if err = user.Save(); err != nil {
				return err
			}
		}
		op.Users = append(op.Users, user)
		delete(old, user.ScopedID(model.IDScopeResource))
	}

	for id, u := range old {
		if err = u.Delete(); err != nil {
			return err
		}
		log.WithField("user", id).Debug("removed user no longer in memberships")
	}
	return nil
}

func (op *ReadMemberships) addGroup(user *lti.User, g *xmltree.Node) {
	id := g.ValueOr("id", "")
	group := &Group{
		ID:    id,
		Title: g.ValueOr("title", ""),
	}
	if set, ok := g.Child("set"); ok {
		setID := set.ValueOr("id", "")
		gs, ok := op.GroupSets[setID]
		if !ok {
			gs = &GroupSet{
				ID:    setID,
				Title: set.ValueOr("title", ""),
			}
			op.GroupSets[setID] = gs
		}
		gs.NumMembers++
		if user.IsStaff() {
			gs.NumStaff++
		}
		if user.IsLearner() {
			gs.NumLearners++
		}
		if !slices.Contains(gs.Groups, id) {
			gs.Groups = append(gs.Groups, id)
		}
		group.SetID = setID
	}
	op.Groups[id] = group
	user.Groups = append(user.Groups, id)
}

// Memberships reads the members of the context of link. Group sets and
// groups are only reported if withGroups is set.
func (c *Client) Memberships(ctx context.Context, link *lti.ResourceLink, withGroups bool) (*ReadMemberships, error) {
	op := &ReadMemberships{
		Link:       link,
		WithGroups: withGroups,
	}
	if err := c.Do(ctx, link.Consumer(), link.Setting(lti.SettingMembershipsURL, ""), op); err != nil {
		return nil, err
	}
	return op, nil
}
