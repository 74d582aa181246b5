package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/go-lti/ltiprovider/storage/model"
)

// settingsHandlers serves the launch settings of one scope; scope returns
// the scope of the request or an error for an unknown consumer
type settingsHandlers struct {
	settings model.LaunchSettingsStore
	scope    func(c *fiber.Ctx) (string, error)
}

func (h settingsHandlers) register(g fiber.Router) {
	g.Get("/", h.get)
	g.Put("/", h.put)
	g.Delete("/:name", h.unset)
}

func (h settingsHandlers) get(c *fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return storageError(c, err, "consumer")
	}
	s, err := h.settings.Get(scope)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
	}
	return c.JSON(s)
}

func (h settingsHandlers) put(c *fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return storageError(c, err, "consumer")
	}
	var req model.LaunchSettings
	if err = c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorInvalidRequest("invalid body"))
	}
	if err = h.settings.Update(scope, req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
	}
	s, err := h.settings.Get(scope)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
	}
	return c.JSON(s)
}

func (h settingsHandlers) unset(c *fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return storageError(c, err, "consumer")
	}
	name := c.Params("name")
	if !model.IsLaunchSetting(name) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorNotFound("unknown setting"))
	}
	if err = h.settings.Unset(scope, name); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func registerSettings(r fiber.Router, storages model.Backends) {
	if storages.Settings == nil {
		return
	}
	settingsHandlers{
		settings: storages.Settings,
		scope: func(*fiber.Ctx) (string, error) {
			return model.ProviderScope, nil
		},
	}.register(r.Group("/settings"))

	settingsHandlers{
		settings: storages.Settings,
		scope: func(c *fiber.Ctx) (string, error) {
			row, err := getConsumer(storages.Consumers, c.Params("key"))
			if err != nil {
				return "", err
			}
			return row.Key, nil
		},
	}.register(r.Group("/consumers/:key/settings"))
}
