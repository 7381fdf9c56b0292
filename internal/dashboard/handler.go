package dashboard

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handlers struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandlers(svc *Service, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

func (h *Handlers) fail(err error, logMsg string) error {
	switch {
	case errors.Is(err, ErrInvalidPeriod):
		return fiber.NewError(fiber.StatusBadRequest, "period must be daily, weekly or monthly")
	case errors.Is(err, ErrInvalidRange):
		return fiber.NewError(fiber.StatusBadRequest, "Invalid date range")
	}
	h.logger.Error(logMsg, zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Server error")
}

// GET /api/dashboard/stats
func (h *Handlers) Stats() fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := h.svc.DashboardStats(c.UserContext())
		if err != nil {
			return h.fail(err, "Dashboard stats failed")
		}
		return c.JSON(stats)
	}
}

// GET /api/dashboard/sales-chart?days=7
// GET /api/dashboard/sales-chart?period=weekly&count=8
func (h *Handlers) SalesChart() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period := c.Query("period", PeriodDaily)
		count := c.QueryInt("count", c.QueryInt("days", 0))

		chart, err := h.svc.SalesChart(c.UserContext(), period, count)
		if err != nil {
			return h.fail(err, "Sales chart failed")
		}
		return c.JSON(chart)
	}
}

// GET /api/dashboard/best-sellers?limit=5
func (h *Handlers) BestSellers() fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := h.svc.BestSellers(c.UserContext(), c.QueryInt("limit", DefaultBestSellers))
		if err != nil {
			return h.fail(err, "Best sellers failed")
		}
		return c.JSON(fiber.Map{"products": products})
	}
}

// GET /api/dashboard/low-stock?threshold=20
func (h *Handlers) LowStock() fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := h.svc.LowStock(c.UserContext(), c.QueryInt("threshold", DefaultLowStock))
		if err != nil {
			return h.fail(err, "Low stock failed")
		}
		return c.JSON(res)
	}
}

// GET /api/dashboard/recent-activity?limit=10
func (h *Handlers) RecentActivity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		activity, err := h.svc.RecentActivity(c.UserContext(), c.QueryInt("limit", DefaultRecentActivity))
		if err != nil {
			return h.fail(err, "Recent activity failed")
		}
		return c.JSON(fiber.Map{"activity": activity})
	}
}

// GET /api/reports?from=2024-01-01&to=2024-01-31
// Both bounds default to today.
func (h *Handlers) Report() fiber.Handler {
	return func(c *fiber.Ctx) error {
		today := h.svc.now()
		from, err := dayParam(c, "from", today)
		if err != nil {
			return err
		}
		to, err := dayParam(c, "to", today)
		if err != nil {
			return err
		}

		report, err := h.svc.Report(c.UserContext(), from, to)
		if err != nil {
			return h.fail(err, "Report failed")
		}
		return c.JSON(report)
	}
}

func dayParam(c *fiber.Ctx, key string, def time.Time) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(dayLayout, v, def.Location())
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, key+" must be YYYY-MM-DD")
	}
	return t, nil
}
