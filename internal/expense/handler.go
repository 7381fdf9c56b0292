package expense

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/changefeed"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var minAmount = decimal.RequireFromString("0.01")

type CreateExpenseRequest struct {
	Title  string           `json:"title"`
	Amount *decimal.Decimal `json:"amount"`
	Date   string           `json:"date"` // "2025-12-09"
	Notes  string           `json:"notes"`
}

type UpdateExpenseRequest struct {
	Title  *string          `json:"title"`
	Amount *decimal.Decimal `json:"amount"`
	Date   *string          `json:"date"`
	Notes  *string          `json:"notes"`
}

type ExpenseResponse struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
}

type ListResponse struct {
	Expenses   []ExpenseResponse `json:"expenses"`
	Summary    Summary           `json:"summary"`
	Pagination fiber.Map         `json:"pagination"`
}

type TodayStats struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type Handlers struct {
	repo     Repository
	notifier changefeed.Notifier
	recorder audit.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandlers(repo Repository, notifier changefeed.Notifier, recorder audit.Recorder, logger *zap.Logger) *Handlers {
	return &Handlers{repo: repo, notifier: notifier, recorder: recorder, logger: logger, now: time.Now}
}

func toResponse(e *models.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:        e.ID,
		Title:     e.Title,
		Amount:    e.Amount,
		Date:      e.Date.Format(dateLayout),
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
	}
}

// GET /api/expenses?from=2024-01-01&to=2024-01-31&page=1&limit=20
func (h *Handlers) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", 20)}
		if f.Page < 1 {
			f.Page = 1
		}
		if f.Limit < 1 || f.Limit > 100 {
			f.Limit = 20
		}

		var err error
		if f.From, err = optionalDate(c.Query("from")); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		if f.To, err = optionalDate(c.Query("to")); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "to must be YYYY-MM-DD")
		}

		expenses, sum, err := h.repo.List(c.UserContext(), f)
		if err != nil {
			return h.mapError(err, "List expenses failed")
		}

		resp := ListResponse{
			Expenses: make([]ExpenseResponse, 0, len(expenses)),
			Summary:  sum,
			Pagination: fiber.Map{
				"page":  f.Page,
				"limit": f.Limit,
				"total": sum.Total,
				"pages": int(math.Ceil(float64(sum.Total) / float64(f.Limit))),
			},
		}
		for i := range expenses {
			resp.Expenses = append(resp.Expenses, toResponse(&expenses[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/expenses/:id
func (h *Handlers) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := expenseID(c)
		if err != nil {
			return err
		}
		e, err := h.repo.Get(c.UserContext(), id)
		if err != nil {
			return h.mapError(err, "Get expense failed")
		}
		return c.JSON(toResponse(e))
	}
}

// POST /api/expenses
func (h *Handlers) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Title = strings.TrimSpace(body.Title)
		if body.Title == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Title is required")
		}
		if body.Amount == nil || body.Amount.LessThan(minAmount) {
			return fiber.NewError(fiber.StatusBadRequest, "Valid amount is required")
		}
		date, err := time.Parse(dateLayout, body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Valid date is required")
		}

		e := &models.Expense{
			Title:  body.Title,
			Amount: body.Amount.Round(2),
			Date:   date,
			Notes:  strings.TrimSpace(body.Notes),
		}
		if err := h.repo.Create(c.UserContext(), e); err != nil {
			return h.mapError(err, "Create expense failed")
		}

		h.changed(c, e.ID, models.AuditActionCreate, fmt.Sprintf("Expense %s created", e.Title), nil, e)
		return c.Status(fiber.StatusCreated).JSON(toResponse(e))
	}
}

// PUT /api/expenses/:id
func (h *Handlers) Update() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := expenseID(c)
		if err != nil {
			return err
		}

		var body UpdateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		changes := map[string]interface{}{}
		if body.Title != nil {
			title := strings.TrimSpace(*body.Title)
			if title == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Title cannot be empty")
			}
			changes["title"] = title
		}
		if body.Amount != nil {
			if body.Amount.LessThan(minAmount) {
				return fiber.NewError(fiber.StatusBadRequest, "Valid amount is required")
			}
			changes["amount"] = body.Amount.Round(2)
		}
		if body.Date != nil {
			date, err := time.Parse(dateLayout, *body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Valid date is required")
			}
			changes["date"] = date
		}
		if body.Notes != nil {
			changes["notes"] = strings.TrimSpace(*body.Notes)
		}
		if len(changes) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "No fields to update")
		}

		before, err := h.repo.Get(c.UserContext(), id)
		if err != nil {
			return h.mapError(err, "Get expense failed")
		}
		after, err := h.repo.Update(c.UserContext(), id, changes)
		if err != nil {
			return h.mapError(err, "Update expense failed")
		}

		h.changed(c, id, models.AuditActionUpdate, fmt.Sprintf("Expense %s updated", after.Title), before, after)
		return c.JSON(toResponse(after))
	}
}

// DELETE /api/expenses/:id
func (h *Handlers) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := expenseID(c)
		if err != nil {
			return err
		}

		before, err := h.repo.Get(c.UserContext(), id)
		if err != nil {
			return h.mapError(err, "Get expense failed")
		}
		if err := h.repo.Delete(c.UserContext(), id); err != nil {
			return h.mapError(err, "Delete expense failed")
		}

		h.changed(c, id, models.AuditActionDelete, fmt.Sprintf("Expense %s deleted", before.Title), before, nil)
		return c.JSON(fiber.Map{"message": "Expense deleted successfully"})
	}
}

// GET /api/expenses/stats/today
func (h *Handlers) TodayStats() fiber.Handler {
	return func(c *fiber.Ctx) error {
		today := h.now()
		sum, err := h.repo.Totals(c.UserContext(), today, today)
		if err != nil {
			return h.mapError(err, "Expense stats failed")
		}
		return c.JSON(TodayStats{Count: sum.Total, Total: sum.TotalAmount})
	}
}

func (h *Handlers) mapError(err error, logMsg string) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Expense not found")
	}
	h.logger.Error(logMsg, zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Server error")
}

func (h *Handlers) changed(c *fiber.Ctx, id uint, action models.AuditAction, desc string, before, after any) {
	ctx := c.UserContext()
	if err := h.notifier.Notify(ctx, changefeed.Change{Topic: changefeed.TopicExpenseChanged, EntityID: id}); err != nil {
		h.logger.Warn("Change feed notify failed", zap.Uint("expense_id", id), zap.Error(err))
	}

	entry := audit.Entry{
		EntityType:  "expense",
		EntityID:    id,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	}
	if me, err := auth.CurrentUser(c); err == nil {
		entry.UserID = me.ID
		entry.UserName = me.Name
	}
	if err := h.recorder.Record(ctx, entry); err != nil {
		h.logger.Warn("Audit log failed", zap.Uint("expense_id", id), zap.Error(err))
	}
}

func expenseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid expense ID")
	}
	return uint(id), nil
}

func optionalDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
