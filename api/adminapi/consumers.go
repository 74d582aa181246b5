package adminapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/go-lti/ltiprovider/internal/utils"
	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/storage/model"
)

// consumerReq is the body of consumer create and update requests; nil fields
// are left unchanged on update
type consumerReq struct {
	Key          string         `json:"key"`
	Name         *string        `json:"name"`
	Secret       *string        `json:"secret"`
	Enabled      *bool          `json:"enabled"`
	Protected    *bool          `json:"protected"`
	EnableFrom   *time.Time     `json:"enable_from"`
	EnableUntil  *time.Time     `json:"enable_until"`
	IDScope      *model.IDScope `json:"id_scope"`
	DefaultEmail *string        `json:"default_email"`
}

func (req consumerReq) apply(row *model.Consumer) {
	if req.Name != nil {
		row.Name = *req.Name
	}
	if req.Secret != nil {
		row.Secret = *req.Secret
	}
	if req.Enabled != nil {
		row.Enabled = *req.Enabled
	}
	if req.Protected != nil {
		row.Protected = *req.Protected
	}
	if req.EnableFrom != nil {
		row.EnableFrom = req.EnableFrom
	}
	if req.EnableUntil != nil {
		row.EnableUntil = req.EnableUntil
	}
	if req.IDScope != nil {
		row.IDScope = *req.IDScope
	}
	if req.DefaultEmail != nil {
		row.DefaultEmail = *req.DefaultEmail
	}
}

// consumerCreated includes the secret, which is only returned once
type consumerCreated struct {
	model.Consumer
	Secret string `json:"secret"`
}

// consumerSecretLength is the length of generated consumer secrets
const consumerSecretLength = 32

func registerConsumers(r fiber.Router, storages model.Backends) {
	consumers := storages.Consumers
	g := r.Group("/consumers")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			list, err := consumers.List()
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
			}
			return c.JSON(list)
		},
	)

	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req consumerReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
			}
			if req.Key == "" {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("key is required"))
			}
			existing, err := consumers.Get(req.Key)
			if err != nil {
				return storageError(c, err, "consumer")
			}
			if existing != nil {
				return c.Status(fiber.StatusConflict).JSON(ErrorInvalidRequest("consumer already exists"))
			}
			row := model.Consumer{
				Key:     req.Key,
				Name:    req.Key,
				Enabled: true,
			}
			req.apply(&row)
			if row.Secret == "" {
				if row.Secret, err = utils.RandomString(consumerSecretLength); err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
				}
			}
			if err = consumers.Save(&row); err != nil {
				return storageError(c, err, "consumer")
			}
			return c.Status(fiber.StatusCreated).JSON(
				consumerCreated{
					Consumer: row,
					Secret:   row.Secret,
				},
			)
		},
	)

	g.Get(
		"/:key", func(c *fiber.Ctx) error {
			row, err := getConsumer(consumers, c.Params("key"))
			if err != nil {
				return storageError(c, err, "consumer")
			}
			return c.JSON(row)
		},
	)

	g.Put(
		"/:key", func(c *fiber.Ctx) error {
			var req consumerReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
			}
			row, err := getConsumer(consumers, c.Params("key"))
			if err != nil {
				return storageError(c, err, "consumer")
			}
			req.apply(row)
			if err = consumers.Save(row); err != nil {
				return storageError(c, err, "consumer")
			}
			return c.JSON(row)
		},
	)

	g.Delete(
		"/:key", func(c *fiber.Ctx) error {
			if _, err := getConsumer(consumers, c.Params("key")); err != nil {
				return storageError(c, err, "consumer")
			}
			if err := consumers.Delete(c.Params("key")); err != nil {
				return storageError(c, err, "consumer")
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}

func getConsumer(consumers model.ConsumerStore, key string) (*model.Consumer, error) {
	row, err := consumers.Get(key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, model.NotFoundErrorFmt("consumer %s not found", key)
	}
	return row, nil
}

// loadLink loads an existing resource link of an existing consumer
func loadLink(storages model.Backends, key, id string) (*lti.ResourceLink, error) {
	consumer, err := lti.LoadToolConsumer(storages, key)
	if err != nil {
		return nil, err
	}
	if !consumer.Exists() {
		return nil, model.NotFoundErrorFmt("consumer %s not found", key)
	}
	link, err := lti.LoadResourceLink(consumer, id, "")
	if err != nil {
		return nil, err
	}
	if !link.Exists() {
		return nil, model.NotFoundErrorFmt("resource link %s/%s not found", key, id)
	}
	return link, nil
}
