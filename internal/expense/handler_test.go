package expense

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pos-backend/internal/audit"
	"pos-backend/internal/changefeed"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	items  map[uint]models.Expense
	lastID uint
	got    Filter
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[uint]models.Expense{}}
}

func (r *fakeRepo) List(_ context.Context, f Filter) ([]models.Expense, Summary, error) {
	r.got = f
	sum := Summary{TotalAmount: decimal.Zero}
	var out []models.Expense
	for _, e := range r.items {
		out = append(out, e)
		sum.Total++
		sum.TotalAmount = sum.TotalAmount.Add(e.Amount)
	}
	return out, sum, nil
}

func (r *fakeRepo) Get(_ context.Context, id uint) (*models.Expense, error) {
	e, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *fakeRepo) Create(_ context.Context, e *models.Expense) error {
	r.lastID++
	e.ID = r.lastID
	r.items[e.ID] = *e
	return nil
}

func (r *fakeRepo) Update(_ context.Context, id uint, changes map[string]interface{}) (*models.Expense, error) {
	e, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if v, ok := changes["title"]; ok {
		e.Title = v.(string)
	}
	if v, ok := changes["amount"]; ok {
		e.Amount = v.(decimal.Decimal)
	}
	if v, ok := changes["date"]; ok {
		e.Date = v.(time.Time)
	}
	if v, ok := changes["notes"]; ok {
		e.Notes = v.(string)
	}
	r.items[id] = e
	return &e, nil
}

func (r *fakeRepo) Delete(_ context.Context, id uint) error {
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) Totals(_ context.Context, from, to time.Time) (Summary, error) {
	sum := Summary{TotalAmount: decimal.Zero}
	for _, e := range r.items {
		d := e.Date.Format(dateLayout)
		if d >= from.Format(dateLayout) && d <= to.Format(dateLayout) {
			sum.Total++
			sum.TotalAmount = sum.TotalAmount.Add(e.Amount)
		}
	}
	return sum, nil
}

func newExpenseApp(repo Repository, feed *changefeed.Feed, now time.Time) *fiber.App {
	h := NewHandlers(repo, feed, audit.Nop{}, zap.NewNop())
	h.now = func() time.Time { return now }

	app := fiber.New()
	app.Get("/expenses/stats/today", h.TodayStats())
	app.Get("/expenses", h.List())
	app.Get("/expenses/:id", h.Get())
	app.Post("/expenses", h.Create())
	app.Put("/expenses/:id", h.Update())
	app.Delete("/expenses/:id", h.Delete())
	return app
}

func send(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestExpenseLifecycle(t *testing.T) {
	repo := newFakeRepo()
	feed := changefeed.NewFeed()
	app := newExpenseApp(repo, feed, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))

	status, body := send(t, app, "POST", "/expenses", `{"title":"Rent","amount":"1200.50","date":"2024-05-10","notes":"May"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "2024-05-10", body["date"])
	assert.Equal(t, "1200.5", body["amount"])

	status, body = send(t, app, "PUT", "/expenses/1", `{"amount":99.99}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "99.99", body["amount"])
	assert.Equal(t, "Rent", body["title"])

	status, body = send(t, app, "GET", "/expenses/stats/today", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "99.99", body["total"])

	status, _ = send(t, app, "DELETE", "/expenses/1", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = send(t, app, "GET", "/expenses/1", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	assert.Equal(t, uint64(3), feed.Version())
}

func TestCreateExpense_Validation(t *testing.T) {
	app := newExpenseApp(newFakeRepo(), changefeed.NewFeed(), time.Now())

	bad := []string{
		`{"amount":10,"date":"2024-05-10"}`,
		`{"title":"Gas","amount":0,"date":"2024-05-10"}`,
		`{"title":"Gas","amount":"0.001","date":"2024-05-10"}`,
		`{"title":"Gas","amount":10,"date":"10/05/2024"}`,
		`{"title":"Gas","amount":10}`,
	}
	for _, b := range bad {
		status, _ := send(t, app, "POST", "/expenses", b)
		assert.Equal(t, fiber.StatusBadRequest, status, b)
	}
}

func TestUpdateExpense_NoFields(t *testing.T) {
	repo := newFakeRepo()
	app := newExpenseApp(repo, changefeed.NewFeed(), time.Now())
	send(t, app, "POST", "/expenses", `{"title":"Rent","amount":100,"date":"2024-05-10"}`)

	status, body := send(t, app, "PUT", "/expenses/1", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Nil(t, body)

	status, _ = send(t, app, "PUT", "/expenses/9", `{"title":"x"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestListExpenses(t *testing.T) {
	repo := newFakeRepo()
	app := newExpenseApp(repo, changefeed.NewFeed(), time.Now())
	send(t, app, "POST", "/expenses", `{"title":"Rent","amount":100,"date":"2024-05-10"}`)
	send(t, app, "POST", "/expenses", `{"title":"Power","amount":"20.25","date":"2024-05-11"}`)

	status, body := send(t, app, "GET", "/expenses?from=2024-05-01&to=2024-05-31&limit=500", "")
	require.Equal(t, fiber.StatusOK, status)

	require.NotNil(t, repo.got.From)
	assert.Equal(t, "2024-05-01", repo.got.From.Format(dateLayout))
	assert.Equal(t, 20, repo.got.Limit)

	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["total"])
	assert.Equal(t, "120.25", summary["total_amount"])
	assert.Len(t, body["expenses"], 2)

	status, _ = send(t, app, "GET", "/expenses?from=May", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
