package audit

import (
	"context"

	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Lister interface {
	List(ctx context.Context, f Filter) ([]models.AuditLog, error)
}

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
}

// GET /api/audit-logs?entity_type=expense&entity_id=1&user_id=2&limit=100
func ListAuditLogsHandler(store Lister) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType: c.Query("entity_type"),
			EntityID:   uint(c.QueryInt("entity_id", 0)),
			UserID:     uint(c.QueryInt("user_id", 0)),
			Limit:      c.QueryInt("limit", 200),
		}
		if f.Limit <= 0 || f.Limit > 1000 {
			f.Limit = 200
		}

		logs, err := store.List(c.UserContext(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
			})
		}

		return c.JSON(resp)
	}
}
