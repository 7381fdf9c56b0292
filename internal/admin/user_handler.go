package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

type UserStore interface {
	auth.UserStore
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id uint, changes map[string]interface{}) (*models.User, error)
	Delete(ctx context.Context, id uint) error
}

type CreateUserRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	FullName string          `json:"full_name"`
	Role     models.UserRole `json:"role"`
}

type UpdateUserRequest struct {
	Password *string          `json:"password"`
	FullName *string          `json:"full_name"`
	Role     *models.UserRole `json:"role"`
}

type UserHandlers struct {
	users    UserStore
	recorder audit.Recorder
	logger   *zap.Logger
	cost     int
}

func NewUserHandlers(users UserStore, recorder audit.Recorder, logger *zap.Logger) *UserHandlers {
	return &UserHandlers{users: users, recorder: recorder, logger: logger, cost: bcrypt.DefaultCost}
}

// GET /api/users
func (h *UserHandlers) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := h.users.List(c.UserContext())
		if err != nil {
			h.logger.Error("List users failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list users")
		}

		resp := make([]auth.UserResponse, 0, len(users))
		for i := range users {
			resp = append(resp, auth.NewUserResponse(&users[i]))
		}
		return c.JSON(resp)
	}
}

// POST /api/users
func (h *UserHandlers) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Username = strings.TrimSpace(strings.ToLower(body.Username))
		body.FullName = strings.TrimSpace(body.FullName)
		if body.Role == "" {
			body.Role = models.RoleStaff
		}

		switch {
		case body.Username == "" || body.FullName == "":
			return fiber.NewError(fiber.StatusBadRequest, "Name and username are required")
		case len(body.Password) < minPasswordLen:
			return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 6 characters")
		case !body.Role.Valid():
			return fiber.NewError(fiber.StatusBadRequest, "Role must be admin or staff")
		}

		if _, err := h.users.FindByUsername(c.UserContext(), body.Username); err == nil {
			return fiber.NewError(fiber.StatusConflict, "Username already exists")
		} else if !errors.Is(err, auth.ErrUserNotFound) {
			return h.serverError("Find user failed", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), h.cost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
		}

		user := &models.User{
			Username:     body.Username,
			PasswordHash: string(hash),
			FullName:     body.FullName,
			Role:         body.Role,
		}
		if err := h.users.Create(c.UserContext(), user); err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				return fiber.NewError(fiber.StatusConflict, "Username already exists")
			}
			return h.serverError("Create user failed", err)
		}

		h.record(c, user.ID, models.AuditActionCreate, fmt.Sprintf("User %s created", user.Username), nil, auth.NewUserResponse(user))
		return c.Status(fiber.StatusCreated).JSON(auth.NewUserResponse(user))
	}
}

// PUT /api/users/:id
func (h *UserHandlers) Update() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := userID(c)
		if err != nil {
			return err
		}
		me, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var body UpdateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		changes := map[string]interface{}{}
		if body.FullName != nil {
			name := strings.TrimSpace(*body.FullName)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			changes["full_name"] = name
		}
		if body.Role != nil {
			if !body.Role.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Role must be admin or staff")
			}
			if id == me.ID && *body.Role != models.RoleAdmin {
				return fiber.NewError(fiber.StatusBadRequest, "You cannot remove your own admin role")
			}
			changes["role"] = *body.Role
		}
		if body.Password != nil {
			if len(*body.Password) < minPasswordLen {
				return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 6 characters")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), h.cost)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
			}
			changes["password_hash"] = string(hash)
		}
		if len(changes) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "No fields to update")
		}

		before, err := h.users.FindByID(c.UserContext(), id)
		if err != nil {
			return h.notFoundOr(err, "Find user failed")
		}
		after, err := h.users.Update(c.UserContext(), id, changes)
		if err != nil {
			return h.notFoundOr(err, "Update user failed")
		}

		h.record(c, id, models.AuditActionUpdate, fmt.Sprintf("User %s updated", after.Username),
			auth.NewUserResponse(before), auth.NewUserResponse(after))
		return c.JSON(auth.NewUserResponse(after))
	}
}

// DELETE /api/users/:id
func (h *UserHandlers) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := userID(c)
		if err != nil {
			return err
		}
		me, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		if id == me.ID {
			return fiber.NewError(fiber.StatusBadRequest, "You cannot delete your own account")
		}

		before, err := h.users.FindByID(c.UserContext(), id)
		if err != nil {
			return h.notFoundOr(err, "Find user failed")
		}
		if err := h.users.Delete(c.UserContext(), id); err != nil {
			return h.notFoundOr(err, "Delete user failed")
		}

		h.record(c, id, models.AuditActionDelete, fmt.Sprintf("User %s deleted", before.Username), auth.NewUserResponse(before), nil)
		return c.JSON(fiber.Map{"message": "User deleted successfully"})
	}
}

func (h *UserHandlers) notFoundOr(err error, logMsg string) error {
	if errors.Is(err, auth.ErrUserNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	return h.serverError(logMsg, err)
}

func (h *UserHandlers) serverError(logMsg string, err error) error {
	h.logger.Error(logMsg, zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Server error")
}

func (h *UserHandlers) record(c *fiber.Ctx, id uint, action models.AuditAction, desc string, before, after any) {
	entry := audit.Entry{EntityType: "user", EntityID: id, Action: action, Description: desc, Before: before, After: after}
	if me, err := auth.CurrentUser(c); err == nil {
		entry.UserID = me.ID
		entry.UserName = me.Name
	}
	if err := h.recorder.Record(c.UserContext(), entry); err != nil {
		h.logger.Warn("Audit log failed", zap.Uint("user_id", id), zap.Error(err))
	}
}

func userID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid user ID")
	}
	return uint(id), nil
}
