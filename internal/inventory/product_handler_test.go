package inventory

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/changefeed"
	"pos-backend/internal/changefeed/mocks"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	products map[uint]models.Product
	used     map[uint]bool
	lastID   uint
	active   int // ListActive calls
}

func newFakeRepo(products ...models.Product) *fakeRepo {
	r := &fakeRepo{products: map[uint]models.Product{}, used: map[uint]bool{}}
	for _, p := range products {
		r.products[p.ID] = p
		if p.ID > r.lastID {
			r.lastID = p.ID
		}
	}
	return r
}

func (r *fakeRepo) Get(_ context.Context, id uint) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *fakeRepo) ListActive(ctx context.Context) ([]models.Product, error) {
	r.active++
	return r.List(ctx, Filter{Status: models.ProductStatusActive})
}

func (r *fakeRepo) List(_ context.Context, f Filter) ([]models.Product, error) {
	var out []models.Product
	for _, p := range r.products {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Category), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) Create(_ context.Context, p *models.Product) error {
	r.lastID++
	p.ID = r.lastID
	r.products[p.ID] = *p
	return nil
}

func (r *fakeRepo) Update(_ context.Context, id uint, changes map[string]interface{}) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range changes {
		switch k {
		case "name":
			p.Name = v.(string)
		case "category":
			p.Category = v.(string)
		case "sale_price":
			p.SalePrice = v.(decimal.Decimal)
		case "stock_quantity":
			p.StockQuantity = v.(int)
		case "status":
			p.Status = v.(models.ProductStatus)
		}
	}
	r.products[id] = p
	return &p, nil
}

func (r *fakeRepo) Delete(_ context.Context, id uint) error {
	if r.used[id] {
		return ErrInUse
	}
	if _, ok := r.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *fakeRepo) LowStock(_ context.Context, threshold int) ([]models.Product, error) {
	var out []models.Product
	for _, p := range r.products {
		if p.StockQuantity <= threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockQuantity < out[j].StockQuantity })
	return out, nil
}

func seedProducts() []models.Product {
	return []models.Product{
		{ID: 1, Name: "Chicken Shawarma", Category: "Main Course", SalePrice: decimal.RequireFromString("8.99"), StockQuantity: 50, Status: models.ProductStatusActive},
		{ID: 2, Name: "Hummus", Category: "Appetizer", SalePrice: decimal.RequireFromString("4.99"), StockQuantity: 5, Status: models.ProductStatusActive},
		{ID: 3, Name: "Old Soda", Category: "Beverage", SalePrice: decimal.RequireFromString("1.50"), StockQuantity: 0, Status: models.ProductStatusInactive},
	}
}

func newProductApp(repo Repository, notifier changefeed.Notifier) *fiber.App {
	h := NewHandlers(repo, notifier, audit.Nop{}, zap.NewNop())
	app := fiber.New()
	app.Get("/products/alert/low-stock", h.LowStock())
	app.Get("/products", h.List())
	app.Get("/products/:id", h.Get())
	app.Post("/products", h.Create())
	app.Put("/products/:id", h.Update())
	app.Delete("/products/:id", h.Delete())
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func TestListProducts(t *testing.T) {
	app := newProductApp(newFakeRepo(seedProducts()...), changefeed.NewFeed())

	status, raw := call(t, app, "GET", "/products?status=active&search=hum", "")
	assert.Equal(t, fiber.StatusOK, status)
	var products []models.Product
	require.NoError(t, json.Unmarshal(raw, &products))
	require.Len(t, products, 1)
	assert.Equal(t, "Hummus", products[0].Name)

	status, _ = call(t, app, "GET", "/products?status=deleted", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestListProducts_StaffSeeOnlyActive(t *testing.T) {
	repo := newFakeRepo(seedProducts()...)
	h := NewHandlers(repo, changefeed.NewFeed(), audit.Nop{}, zap.NewNop())
	app := fiber.New()
	app.Get("/products", func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(2))
		c.Locals(auth.CtxUserRoleKey, models.RoleStaff)
		return c.Next()
	}, h.List())

	for _, path := range []string{"/products", "/products?status=inactive"} {
		status, raw := call(t, app, "GET", path, "")
		assert.Equal(t, fiber.StatusOK, status)
		var products []models.Product
		require.NoError(t, json.Unmarshal(raw, &products))
		require.NotEmpty(t, products)
		for _, p := range products {
			assert.Equal(t, models.ProductStatusActive, p.Status, path)
		}
	}
	assert.Equal(t, 2, repo.active)

	status, raw := call(t, app, "GET", "/products?search=soda", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, "[]", string(raw))
	assert.Equal(t, 2, repo.active)
}

func TestGetProduct(t *testing.T) {
	app := newProductApp(newFakeRepo(seedProducts()...), changefeed.NewFeed())

	status, raw := call(t, app, "GET", "/products/1", "")
	assert.Equal(t, fiber.StatusOK, status)
	var p models.Product
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "8.99", p.SalePrice.StringFixed(2))

	status, _ = call(t, app, "GET", "/products/99", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = call(t, app, "GET", "/products/abc", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCreateProduct(t *testing.T) {
	notifier := new(mocks.MockNotifier)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(ch changefeed.Change) bool {
		return ch.Topic == changefeed.TopicProductChanged && ch.EntityID == 4
	})).Return(nil).Once()

	repo := newFakeRepo(seedProducts()...)
	app := newProductApp(repo, notifier)

	status, raw := call(t, app, "POST", "/products",
		`{"name":" Falafel Wrap ","category":"Main Course","sale_price":"7.49","stock_quantity":30}`)
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	var p models.Product
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "Falafel Wrap", p.Name)
	assert.Equal(t, models.ProductStatusActive, p.Status)
	notifier.AssertExpectations(t)

	bad := []string{
		`{"category":"x","sale_price":1,"stock_quantity":1}`,
		`{"name":"x","sale_price":1,"stock_quantity":1}`,
		`{"name":"x","category":"x","sale_price":-1,"stock_quantity":1}`,
		`{"name":"x","category":"x","sale_price":1}`,
		`{"name":"x","category":"x","sale_price":1,"stock_quantity":1,"status":"gone"}`,
	}
	for _, body := range bad {
		status, _ := call(t, app, "POST", "/products", body)
		assert.Equal(t, fiber.StatusBadRequest, status, body)
	}
}

func TestUpdateProduct(t *testing.T) {
	repo := newFakeRepo(seedProducts()...)
	app := newProductApp(repo, changefeed.NewFeed())

	status, raw := call(t, app, "PUT", "/products/2", `{"stock_quantity":40,"status":"inactive"}`)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, 40, repo.products[2].StockQuantity)
	assert.Equal(t, models.ProductStatusInactive, repo.products[2].Status)

	status, raw = call(t, app, "PUT", "/products/2", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(raw), "No fields to update")

	status, _ = call(t, app, "PUT", "/products/2", `{"stock_quantity":-1}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, app, "PUT", "/products/42", `{"name":"Ghost"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestDeleteProduct(t *testing.T) {
	repo := newFakeRepo(seedProducts()...)
	repo.used[1] = true
	feed := changefeed.NewFeed()
	app := newProductApp(repo, feed)

	status, _ := call(t, app, "DELETE", "/products/1", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, repo.products, uint(1))

	status, _ = call(t, app, "DELETE", "/products/3", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, repo.products, uint(3))
	assert.Equal(t, uint64(1), feed.Version())
}

func TestLowStock(t *testing.T) {
	app := newProductApp(newFakeRepo(seedProducts()...), changefeed.NewFeed())

	status, raw := call(t, app, "GET", "/products/alert/low-stock?threshold=10", "")
	require.Equal(t, fiber.StatusOK, status)
	var products []models.Product
	require.NoError(t, json.Unmarshal(raw, &products))
	require.Len(t, products, 2)
	assert.Equal(t, uint(3), products[0].ID)
}
