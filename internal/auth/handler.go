package auth

import (
	"context"
	"errors"
	"strings"

	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID       uint            `json:"id"`
	Username string          `json:"username"`
	FullName string          `json:"full_name"`
	Role     models.UserRole `json:"role"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}

func LoginHandler(users UserStore, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Username = strings.TrimSpace(strings.ToLower(body.Username))
		if body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username and password are required")
		}

		user, err := users.FindByUsername(c.UserContext(), body.Username)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}

		token, err := GenerateToken(secret, user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not issue token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  NewUserResponse(user),
		})
	}
}

func MeHandler(users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := CurrentUser(c)
		if err != nil {
			return err
		}

		user, err := users.FindByID(c.UserContext(), me.ID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "User no longer exists")
			}
			return err
		}

		return c.JSON(NewUserResponse(user))
	}
}
