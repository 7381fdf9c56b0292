package invoice

import (
	"errors"
	"time"

	"pos-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

func StatusCode(k Kind) int {
	switch k {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindProductNotFound, KindInvoiceNotFound:
		return fiber.StatusNotFound
	case KindProductInactive:
		return fiber.StatusUnprocessableEntity
	case KindInsufficientStock:
		return fiber.StatusConflict
	case KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders a Service error as {"error", "kind"}. Persistence
// failures never leak their cause.
func writeError(c *fiber.Ctx, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		e = persistenceError(err)
	}
	msg := e.Message
	if e.Kind == KindPersistence {
		msg = "Server error"
	}
	return c.Status(StatusCode(e.Kind)).JSON(fiber.Map{
		"error": msg,
		"kind":  e.Kind,
	})
}

func viewer(c *fiber.Ctx) (Staff, error) {
	me, err := auth.CurrentUser(c)
	if err != nil {
		return Staff{}, err
	}
	return Staff{ID: me.ID, Name: me.Name, Role: me.Role}, nil
}

// POST /api/invoices
func CreateInvoiceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staff, err := viewer(c)
		if err != nil {
			return err
		}

		var body CreateInvoiceRequest
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, validationError("Invalid request body"))
		}

		inv, err := svc.CreateInvoice(c.UserContext(), body, staff)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(inv)
	}
}

// GET /api/invoices/:id
func GetInvoiceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staff, err := viewer(c)
		if err != nil {
			return err
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return writeError(c, validationError("Invalid invoice ID"))
		}

		inv, err := svc.GetInvoice(c.UserContext(), uint(id), staff)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(inv)
	}
}

// GET /api/invoices?from=2024-01-01&to=2024-01-31&page=1&limit=20
// to is inclusive of the whole day.
func ListInvoicesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staff, err := viewer(c)
		if err != nil {
			return err
		}

		f := ListFilter{
			Page:  c.QueryInt("page", 1),
			Limit: c.QueryInt("limit", defaultPageSize),
		}
		if v := c.Query("from"); v != "" {
			from, err := time.ParseInLocation(dateLayout, v, time.Local)
			if err != nil {
				return writeError(c, validationError("from must be YYYY-MM-DD"))
			}
			f.From = &from
		}
		if v := c.Query("to"); v != "" {
			to, err := time.ParseInLocation(dateLayout, v, time.Local)
			if err != nil {
				return writeError(c, validationError("to must be YYYY-MM-DD"))
			}
			to = to.AddDate(0, 0, 1)
			f.To = &to
		}

		page, err := svc.ListInvoices(c.UserContext(), f, staff)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(page)
	}
}

// GET /api/invoices/stats/today
func TodayStatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staff, err := viewer(c)
		if err != nil {
			return err
		}

		stats, err := svc.TodayStats(c.UserContext(), staff)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(stats)
	}
}
