package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	byID   map[uint]*models.User
	lastID uint
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{byID: map[uint]*models.User{}}
	for i := range users {
		u := users[i]
		m.byID[u.ID] = &u
		if u.ID > m.lastID {
			m.lastID = u.ID
		}
	}
	return m
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) List(context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(m.byID))
	for id := uint(1); id <= m.lastID; id++ {
		if u, ok := m.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.lastID++
	u.ID = m.lastID
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) Update(_ context.Context, id uint, changes map[string]interface{}) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	if v, ok := changes["full_name"]; ok {
		u.FullName = v.(string)
	}
	if v, ok := changes["role"]; ok {
		u.Role = v.(models.UserRole)
	}
	if v, ok := changes["password_hash"]; ok {
		u.PasswordHash = v.(string)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Delete(_ context.Context, id uint) error {
	if _, ok := m.byID[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

func newUsersApp(store UserStore) *fiber.App {
	h := NewUserHandlers(store, audit.Nop{}, zap.NewNop())
	h.cost = bcrypt.MinCost

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(1))
		c.Locals(auth.CtxUserRoleKey, models.RoleAdmin)
		c.Locals(auth.CtxUserNameKey, "Admin User")
		return c.Next()
	})
	app.Get("/users", h.List())
	app.Post("/users", h.Create())
	app.Put("/users/:id", h.Update())
	app.Delete("/users/:id", h.Delete())
	return app
}

func request(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(raw)
}

func seedUsers() *memUsers {
	return newMemUsers(
		models.User{ID: 1, Username: "admin", FullName: "Admin User", Role: models.RoleAdmin},
		models.User{ID: 2, Username: "staff", FullName: "Staff User", Role: models.RoleStaff},
	)
}

func TestCreateUser(t *testing.T) {
	store := seedUsers()
	app := newUsersApp(store)

	status, body := request(t, app, "POST", "/users", `{"username":"Cashier2","password":"secret1","full_name":"Second Cashier"}`)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.NotContains(t, body, "password")

	created, err := store.FindByUsername(context.Background(), "cashier2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, created.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret1")))

	status, _ = request(t, app, "POST", "/users", `{"username":"staff","password":"secret1","full_name":"Dup"}`)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = request(t, app, "POST", "/users", `{"username":"x","password":"123","full_name":"Short"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = request(t, app, "POST", "/users", `{"username":"y","password":"123456","full_name":"Boss","role":"owner"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestListUsers(t *testing.T) {
	app := newUsersApp(seedUsers())

	status, body := request(t, app, "GET", "/users", "")
	require.Equal(t, fiber.StatusOK, status)

	var users []auth.UserResponse
	require.NoError(t, json.Unmarshal([]byte(body), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
}

func TestUpdateUser(t *testing.T) {
	store := seedUsers()
	app := newUsersApp(store)

	status, _ := request(t, app, "PUT", "/users/2", `{"full_name":"Senior Staff","role":"admin"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.RoleAdmin, store.byID[2].Role)

	status, _ = request(t, app, "PUT", "/users/1", `{"role":"staff"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = request(t, app, "PUT", "/users/2", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = request(t, app, "PUT", "/users/8", `{"full_name":"Ghost"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestDeleteUser(t *testing.T) {
	store := seedUsers()
	app := newUsersApp(store)

	status, _ := request(t, app, "DELETE", "/users/1", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, store.byID, uint(1))

	status, _ = request(t, app, "DELETE", "/users/2", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, store.byID, uint(2))

	status, _ = request(t, app, "DELETE", "/users/2", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}
