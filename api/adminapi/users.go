package adminapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider/storage/model"
)

type adminUserReq struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	ConsumerKey string `json:"consumer_key"`
}

// registerUsers wires the admin user handlers
func registerUsers(r fiber.Router, users model.AdminUsersStore) {
	g := r.Group("/users")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			list, err := users.List()
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
			}
			return c.JSON(list)
		},
	)

	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req adminUserReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
			}
			if req.Username == "" || req.Password == "" {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("username and password are required"))
			}
			u, err := users.Create(
				model.AdminUser{
					Username:    req.Username,
					DisplayName: req.DisplayName,
					ConsumerKey: req.ConsumerKey,
				}, req.Password,
			)
			if errors.As(err, new(model.NotFoundError)) {
				return c.Status(fiber.StatusNotFound).JSON(ErrorNotFound("consumer not found"))
			}
			if err != nil {
				return storageError(c, err, "user")
			}
			return c.Status(fiber.StatusCreated).JSON(u)
		},
	)

	g.Put(
		"/:username", func(c *fiber.Ctx) error {
			var req model.AdminUserUpdate
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
			}
			if req.Password != nil && *req.Password == "" {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("password must not be empty"))
			}
			u, err := users.Update(c.Params("username"), req)
			if err != nil {
				return storageError(c, err, "user")
			}
			return c.JSON(u)
		},
	)

	g.Get(
		"/:username", func(c *fiber.Ctx) error {
			u, err := users.Get(c.Params("username"))
			if err != nil {
				return storageError(c, err, "user")
			}
			return c.JSON(u)
		},
	)

	g.Delete(
		"/:username", func(c *fiber.Ctx) error {
			if err := users.Delete(c.Params("username")); err != nil {
				return storageError(c, err, "user")
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
