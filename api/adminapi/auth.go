package adminapi

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/go-lti/ltiprovider/storage/model"
)

// authMiddleware enforces optional authentication for admin API routes.
// If there are no users in storage, all requests are allowed.
// If there is at least one user, it requires HTTP Basic authentication
// and validates credentials using AdminUsersStore. Users restricted to a
// consumer only pass for routes of that consumer.
func authMiddleware(users model.AdminUsersStore, prefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if users == nil {
			return c.Next()
		}
		// If no users are configured, allow access
		count, err := users.Count()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
		}
		if count == 0 {
			return c.Next()
		}

		// Require Basic auth
		username, password, ok := parseBasicAuth(c)
		if !ok {
			c.Set("WWW-Authenticate", "Basic realm=admin")
			return c.Status(fiber.StatusUnauthorized).JSON(errorInvalidClient("missing credentials"))
		}
		// Validate credentials
		u, err := users.Authenticate(username, password)
		if err != nil {
			c.Set("WWW-Authenticate", "Basic realm=admin")
			return c.Status(fiber.StatusUnauthorized).JSON(errorInvalidClient("invalid credentials"))
		}
		if u.ConsumerKey != "" {
			key, owned := routeConsumer(c.Method(), strings.TrimPrefix(c.Path(), prefix))
			if !owned || !u.CanManage(key) {
				return c.Status(fiber.StatusForbidden).JSON(errorAccessDenied(u.ConsumerKey))
			}
		}
		c.Locals(localsUsername, username)
		return c.Next()
	}
}

// routeConsumer returns the consumer a route relative to the admin root
// belongs to. Listing, creating and deleting consumers, the provider settings
// and the user management belong to no consumer.
func routeConsumer(method, path string) (string, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[1] == "" {
		return "", false
	}
	switch segments[0] {
	case "consumers":
		if len(segments) == 2 && method == fiber.MethodDelete {
			return "", false
		}
	case "links":
	default:
		return "", false
	}
	key, err := url.PathUnescape(segments[1])
	if err != nil {
		return "", false
	}
	return key, true
}

const localsUsername = "admin_username"

func errorAccessDenied(consumerKey string) Error {
	return Error{
		Error:            "access_denied",
		ErrorDescription: "user is restricted to consumer " + consumerKey,
	}
}

func errorInvalidClient(description string) Error {
	return Error{
		Error:            "invalid_client",
		ErrorDescription: description,
	}
}

// parseBasicAuth extracts Basic auth credentials from request headers
func parseBasicAuth(c *fiber.Ctx) (username, password string, ok bool) {
	auth := string(c.Request().Header.Peek("Authorization"))
	if auth == "" {
		return "", "", false
	}
	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		return "", "", false
	}
	b, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	creds := string(b)
	i := strings.IndexByte(creds, ':')
	if i < 0 {
		return "", "", false
	}
	return creds[:i], creds[i+1:], true
}
