package adminapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/storage/model"
)

// userView is the JSON view of a user holding a result sourcedid
type userView struct {
	ID              string    `json:"id"`
	ResultSourcedID string    `json:"lis_result_sourcedid"`
	FirstName       string    `json:"given_name,omitempty"`
	LastName        string    `json:"family_name,omitempty"`
	FullName        string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	Roles           []string  `json:"roles,omitempty"`
	Groups          []string  `json:"groups,omitempty"`
	Created         time.Time `json:"created,omitzero"`
}

func newUserView(id string, u *lti.User) userView {
	return userView{
		ID:              id,
		ResultSourcedID: u.ResultSourcedID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName,
		Email:           u.Email,
		Roles:           u.Roles,
		Groups:          u.Groups,
		Created:         u.Created,
	}
}

func registerResourceLinks(r fiber.Router, storages model.Backends) {
	g := r.Group("/links/:key/:id")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			row, err := storages.ResourceLinks.Get(c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			if row == nil {
				return c.Status(fiber.StatusNotFound).JSON(ErrorNotFound("resource link not found"))
			}
			return c.JSON(row)
		},
	)

	g.Delete(
		"/", func(c *fiber.Ctx) error {
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			if err = link.Delete(); err != nil {
				return storageError(c, err, "resource link")
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)

	g.Get(
		"/users", func(c *fiber.Ctx) error {
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			scope := link.Consumer().IDScope()
			if s := c.Query("scope"); s != "" {
				if scope, err = model.ParseIDScope(s); err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest(err.Error()))
				}
			}
			users, err := link.UserResultSourcedIDs(c.QueryBool("local_only"), scope)
			if err != nil {
				return storageError(c, err, "resource link")
			}
			views := make([]userView, 0, len(users))
			for id, u := range users {
				views = append(views, newUserView(id, u))
			}
			return c.JSON(views)
		},
	)

	g.Get(
		"/shares", func(c *fiber.Ctx) error {
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			shares, err := link.Shares()
			if err != nil {
				return storageError(c, err, "resource link")
			}
			return c.JSON(shares)
		},
	)

	type shareStatusReq struct {
		Status model.ShareStatus `json:"status"`
	}
	g.Put(
		"/shares/:shareKey/:shareID", func(c *fiber.Ctx) error {
			var req shareStatusReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
			}
			if req.Status != model.ShareStatusApproved && req.Status != model.ShareStatusRejected &&
				req.Status != model.ShareStatusPending {
				return c.Status(fiber.StatusBadRequest).JSON(
					ErrorInvalidRequest("status must be approved, rejected or pending"),
				)
			}
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			if err = link.SetShareStatus(c.Params("shareKey"), c.Params("shareID"), req.Status); err != nil {
				return storageError(c, err, "share")
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)

	type shareKeyReq struct {
		AutoApprove bool `json:"auto_approve"`
		Life        int  `json:"life"`
		Length      int  `json:"length"`
	}
	g.Post(
		"/share-keys", func(c *fiber.Ctx) error {
			var req shareKeyReq
			if len(c.Body()) > 0 {
				if err := c.BodyParser(&req); err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
				}
			}
			link, err := loadLink(storages, c.Params("key"), c.Params("id"))
			if err != nil {
				return storageError(c, err, "resource link")
			}
			key := lti.NewShareKey(link)
			key.AutoApprove = req.AutoApprove
			key.Life = req.Life
			key.Length = req.Length
			if err = key.Save(storages.ShareKeys, time.Now()); err != nil {
				return storageError(c, err, "share key")
			}
			return c.Status(fiber.StatusCreated).JSON(
				model.ShareKey{
					ID:                    key.ID,
					PrimaryConsumerKey:    key.PrimaryConsumerKey,
					PrimaryResourceLinkID: key.PrimaryResourceLinkID,
					AutoApprove:           key.AutoApprove,
					Expires:               key.Expires,
				},
			)
		},
	)
}
