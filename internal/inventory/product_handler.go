package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/changefeed"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultLowStockThreshold = 20

type CreateProductRequest struct {
	Name          string               `json:"name"`
	Category      string               `json:"category"`
	SalePrice     *decimal.Decimal     `json:"sale_price"`
	StockQuantity *int                 `json:"stock_quantity"`
	Status        models.ProductStatus `json:"status"` // optional, defaults to active
}

type UpdateProductRequest struct {
	Name          *string               `json:"name"`
	Category      *string               `json:"category"`
	SalePrice     *decimal.Decimal      `json:"sale_price"`
	StockQuantity *int                  `json:"stock_quantity"`
	Status        *models.ProductStatus `json:"status"`
}

type Handlers struct {
	repo     Repository
	notifier changefeed.Notifier
	recorder audit.Recorder
	logger   *zap.Logger
}

func NewHandlers(repo Repository, notifier changefeed.Notifier, recorder audit.Recorder, logger *zap.Logger) *Handlers {
	return &Handlers{repo: repo, notifier: notifier, recorder: recorder, logger: logger}
}

// GET /api/products?search=&category=&status=
func (h *Handlers) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			Search:   c.Query("search"),
			Category: c.Query("category"),
			Status:   models.ProductStatus(c.Query("status")),
		}
		if f.Status != "" && !f.Status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Status must be active or inactive")
		}
		// staff sell from the active menu only
		if me, err := auth.CurrentUser(c); err == nil && me.Role != models.RoleAdmin {
			f.Status = models.ProductStatusActive
		}

		var (
			products []models.Product
			err      error
		)
		if f == (Filter{Status: models.ProductStatusActive}) {
			products, err = h.repo.ListActive(c.UserContext())
		} else {
			products, err = h.repo.List(c.UserContext(), f)
		}
		if err != nil {
			h.logger.Error("List products failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list products")
		}
		if products == nil {
			products = []models.Product{}
		}
		return c.JSON(products)
	}
}

// GET /api/products/:id
func (h *Handlers) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		p, err := h.repo.Get(c.UserContext(), id)
		if err != nil {
			return h.mapError(err, "Get product failed")
		}
		return c.JSON(p)
	}
}

// GET /api/products/alert/low-stock?threshold=20 (admin)
func (h *Handlers) LowStock() fiber.Handler {
	return func(c *fiber.Ctx) error {
		threshold := c.QueryInt("threshold", defaultLowStockThreshold)
		if threshold < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Threshold must not be negative")
		}

		products, err := h.repo.LowStock(c.UserContext(), threshold)
		if err != nil {
			return h.mapError(err, "Low stock query failed")
		}
		if products == nil {
			products = []models.Product{}
		}
		return c.JSON(products)
	}
}

// POST /api/products (admin)
func (h *Handlers) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Category = strings.TrimSpace(body.Category)
		if body.Status == "" {
			body.Status = models.ProductStatusActive
		}

		switch {
		case body.Name == "":
			return fiber.NewError(fiber.StatusBadRequest, "Product name is required")
		case body.Category == "":
			return fiber.NewError(fiber.StatusBadRequest, "Category is required")
		case body.SalePrice == nil || body.SalePrice.IsNegative():
			return fiber.NewError(fiber.StatusBadRequest, "Valid sale price is required")
		case body.StockQuantity == nil || *body.StockQuantity < 0:
			return fiber.NewError(fiber.StatusBadRequest, "Valid stock quantity is required")
		case !body.Status.Valid():
			return fiber.NewError(fiber.StatusBadRequest, "Status must be active or inactive")
		}

		p := &models.Product{
			Name:          body.Name,
			Category:      body.Category,
			SalePrice:     body.SalePrice.Round(2),
			StockQuantity: *body.StockQuantity,
			Status:        body.Status,
		}
		if err := h.repo.Create(c.UserContext(), p); err != nil {
			return h.mapError(err, "Create product failed")
		}

		h.changed(c, p.ID, models.AuditActionCreate, fmt.Sprintf("Product %s created", p.Name), nil, p)
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// PUT /api/products/:id (admin)
func (h *Handlers) Update() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		changes := map[string]interface{}{}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Product name cannot be empty")
			}
			changes["name"] = name
		}
		if body.Category != nil {
			category := strings.TrimSpace(*body.Category)
			if category == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Category cannot be empty")
			}
			changes["category"] = category
		}
		if body.SalePrice != nil {
			if body.SalePrice.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "Valid sale price is required")
			}
			changes["sale_price"] = body.SalePrice.Round(2)
		}
		if body.StockQuantity != nil {
			if *body.StockQuantity < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Valid stock quantity is required")
			}
			changes["stock_quantity"] = *body.StockQuantity
		}
		if body.Status != nil {
			if !body.Status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Status must be active or inactive")
			}
			changes["status"] = *body.Status
		}
		if len(changes) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "No fields to update")
		}

		before, err := h.repo.Get(c.UserContext(), id)
		if err != nil {
			return h.mapError(err, "Get product failed")
		}

		after, err := h.repo.Update(c.UserContext(), id, changes)
		if err != nil {
			return h.mapError(err, "Update product failed")
		}

		h.changed(c, id, models.AuditActionUpdate, fmt.Sprintf("Product %s updated", after.Name), before, after)
		return c.JSON(after)
	}
}

// DELETE /api/products/:id (admin)
func (h *Handlers) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		before, err := h.repo.Get(c.UserContext(), id)
		if err != nil {
			return h.mapError(err, "Get product failed")
		}

		if err := h.repo.Delete(c.UserContext(), id); err != nil {
			return h.mapError(err, "Delete product failed")
		}

		h.changed(c, id, models.AuditActionDelete, fmt.Sprintf("Product %s deleted", before.Name), before, nil)
		return c.JSON(fiber.Map{"message": "Product deleted successfully"})
	}
}

func (h *Handlers) mapError(err error, logMsg string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Product not found")
	case errors.Is(err, ErrInUse):
		return fiber.NewError(fiber.StatusConflict, "Product is used by existing invoices; set it inactive instead")
	default:
		h.logger.Error(logMsg, zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Server error")
	}
}

// changed publishes a committed catalog write. Failures are logged only.
func (h *Handlers) changed(c *fiber.Ctx, id uint, action models.AuditAction, desc string, before, after any) {
	ctx := c.UserContext()
	if err := h.notifier.Notify(ctx, changefeed.Change{Topic: changefeed.TopicProductChanged, EntityID: id}); err != nil {
		h.logger.Warn("Change feed notify failed", zap.Uint("product_id", id), zap.Error(err))
	}
	h.record(ctx, c, audit.Entry{
		EntityType:  "product",
		EntityID:    id,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	})
}

func (h *Handlers) record(ctx context.Context, c *fiber.Ctx, e audit.Entry) {
	if me, err := auth.CurrentUser(c); err == nil {
		e.UserID = me.ID
		e.UserName = me.Name
	}
	if err := h.recorder.Record(ctx, e); err != nil {
		h.logger.Warn("Audit log failed", zap.String("entity", e.EntityType), zap.Uint("entity_id", e.EntityID), zap.Error(err))
	}
}

func productID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid product ID")
	}
	return uint(id), nil
}
