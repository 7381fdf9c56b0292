package auth

import (
	"strings"

	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxUserNameKey = "user_name"
)

// Identity is the authenticated caller as carried by the token.
type Identity struct {
	ID   uint
	Name string
	Role models.UserRole
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxUserNameKey, claims.FullName)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Missing role")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
	}
}

// CurrentUser reads the identity JWTMiddleware stored on the context.
func CurrentUser(c *fiber.Ctx) (Identity, error) {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || id == 0 {
		return Identity{}, fiber.NewError(fiber.StatusUnauthorized, "Missing user identity")
	}
	role, _ := c.Locals(CtxUserRoleKey).(models.UserRole)
	name, _ := c.Locals(CtxUserNameKey).(string)
	return Identity{ID: id, Name: name, Role: role}, nil
}
