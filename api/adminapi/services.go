package adminapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider/events"
	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/service"
	"github.com/go-lti/ltiprovider/storage/model"
)

// outcomeReq is the body of outcome writes
type outcomeReq struct {
	Value      string          `json:"value"`
	Type       lti.OutcomeType `json:"type"`
	Language   string          `json:"language"`
	Status     string          `json:"status"`
	DataSource string          `json:"data_source"`
}

type outcomeView struct {
	UserID string          `json:"user_id"`
	Value  string          `json:"value"`
	Type   lti.OutcomeType `json:"type"`
	Found  bool            `json:"found"`
}

type groupSetView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Groups      []string `json:"groups"`
	NumMembers  int      `json:"num_members"`
	NumStaff    int      `json:"num_staff"`
	NumLearners int      `json:"num_learners"`
}

type groupView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	SetID string `json:"set_id,omitempty"`
}

type membershipsView struct {
	Members   []userView     `json:"members"`
	GroupSets []groupSetView `json:"group_sets,omitempty"`
	Groups    []groupView    `json:"groups,omitempty"`
}

// serviceError maps service.Error kinds to a response
func serviceError(c *fiber.Ctx, err error) error {
	var sErr *service.Error
	if !errors.As(err, &sErr) {
		return storageError(c, err, "resource link")
	}
	switch sErr.Kind {
	case service.ErrUnsupported:
		return c.Status(fiber.StatusNotImplemented).JSON(ErrorServiceError(err.Error()))
	case service.ErrInvalidValue:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest(err.Error()))
	default:
		body := ErrorServiceError(err.Error())
		body.ConsumerResponse = sErr.Response
		return c.Status(fiber.StatusBadGateway).JSON(body)
	}
}

func registerServices(r fiber.Router, storages model.Backends, services *service.Client, publisher events.Publisher) {
	g := r.Group("/links/:key/:id")

	userOf := func(c *fiber.Ctx) (*lti.User, error) {
		link, err := loadLink(storages, c.Params("key"), c.Params("id"))
		if err != nil {
			return nil, err
		}
		user, err := lti.LoadUser(link, c.Params("user"))
		if err != nil {
			return nil, err
		}
		if user.ResultSourcedID == "" {
			return nil, model.NotFoundErrorFmt("no result sourcedid for user %s", c.Params("user"))
		}
		return user, nil
	}

	g.Get(
		"/outcomes/:user", func(c *fiber.Ctx) error {
			user, err := userOf(c)
			if err != nil {
				return storageError(c, err, "user")
			}
			o := lti.NewOutcome("", services.Now())
			found, err := services.ReadOutcome(c.UserContext(), o, user)
			if err != nil {
				return serviceError(c, err)
			}
			return c.JSON(
				outcomeView{
					UserID: user.ID(),
					Value:  o.Value,
					Type:   o.Type,
					Found:  found,
				},
			)
		},
	)

	g.Put(
		"/outcomes/:user", func(c *fiber.Ctx) error {
			var req outcomeReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
			}
			user, err := userOf(c)
			if err != nil {
				return storageError(c, err, "user")
			}
			o := lti.NewOutcome(req.Value, services.Now())
			if req.Type != "" {
				o.Type = req.Type
			}
			if req.Language != "" {
				o.Language = req.Language
			}
			o.Status = req.Status
			o.DataSource = req.DataSource
			if err = services.DoOutcome(c.UserContext(), service.OutcomeWrite, o, user); err != nil {
				return serviceError(c, err)
			}
			e := events.Event{
				Type:           events.OutcomeWritten,
				Time:           time.Now().UTC(),
				ConsumerKey:    c.Params("key"),
				ResourceLinkID: c.Params("id"),
				UserID:         user.ID(),
				Value:          o.Value,
			}
			if err = publisher.Publish(c.UserContext(), e); err != nil {
				log.WithError(err).Warn("could not publish outcome event")
			}
			return c.JSON(
				outcomeView{
					UserID: user.ID(),
					Value:  o.Value,
					Type:   o.Type,
					Found:  true,
				},
			)
		},
	)

	g.Delete(
		"/outcomes/:user", func(c *fiber.Ctx) error {
			user, err := userOf(c)
			if err != nil {
				return storageError(c, err, "user")
			}
			o := lti.NewOutcome("", services.Now())
			if err = services.DoOutcome(c.UserContext(), service.OutcomeDelete, o, user); err != nil {
				return serviceError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)

	g.Get(
		"/memberships", func(c *fiber.Ctx) error {
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			op, err := services.Memberships(c.UserContext(), link, c.QueryBool("groups"))
			if err != nil {
				return serviceError(c, err)
			}
			view := membershipsView{Members: make([]userView, 0, len(op.Users))}
			for _, u := range op.Users {
				view.Members = append(view.Members, newUserView(u.ID(), u))
			}
			for _, s := range op.GroupSets {
				view.GroupSets = append(
					view.GroupSets, groupSetView{
						ID:          s.ID,
						Title:       s.Title,
						Groups:      s.Groups,
						NumMembers:  s.NumMembers,
						NumStaff:    s.NumStaff,
						NumLearners: s.NumLearners,
					},
				)
			}
			for _, gr := range op.Groups {
				view.Groups = append(
					view.Groups, groupView{
						ID:    gr.ID,
						Title: gr.Title,
						SetID: gr.SetID,
					},
				)
			}
			return c.JSON(view)
		},
	)

	g.Get(
		"/setting", func(c *fiber.Ctx) error {
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			v, err := services.ReadToolSetting(c.UserContext(), link)
			if err != nil {
				return serviceError(c, err)
			}
			return c.JSON(fiber.Map{"value": v})
		},
	)

	type settingReq struct {
		Value string `json:"value"`
	}
	g.Put(
		"/setting", func(c *fiber.Ctx) error {
			var req settingReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
			}
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			if err = services.WriteToolSetting(c.UserContext(), link, req.Value); err != nil {
				return serviceError(c, err)
			}
			return c.JSON(fiber.Map{"value": req.Value})
		},
	)

	g.Delete(
		"/setting", func(c *fiber.Ctx) error {
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			if err = services.DeleteToolSetting(c.UserContext(), link); err != nil {
				return serviceError(c, err)
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
