package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	got  Filter
	logs []models.AuditLog
	err  error
}

func (f *fakeLister) List(_ context.Context, filter Filter) ([]models.AuditLog, error) {
	f.got = filter
	return f.logs, f.err
}

func TestToModel_NullJSONDefaults(t *testing.T) {
	log := toModel(Entry{EntityType: "expense", EntityID: 3, Action: models.AuditActionDelete})
	assert.Equal(t, "null", log.BeforeData)
	assert.Equal(t, "null", log.AfterData)

	log = toModel(Entry{After: map[string]int{"stock_quantity": 4}})
	assert.JSONEq(t, `{"stock_quantity":4}`, log.AfterData)
}

func TestListAuditLogsHandler(t *testing.T) {
	store := &fakeLister{logs: []models.AuditLog{{
		ID:          1,
		CreatedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UserName:    "Admin",
		EntityType:  "product",
		EntityID:    9,
		Action:      models.AuditActionUpdate,
		Description: "Product updated",
	}}}

	app := fiber.New()
	app.Get("/audit-logs", ListAuditLogsHandler(store))

	resp, err := app.Test(httptest.NewRequest("GET", "/audit-logs?entity_type=product&entity_id=9&limit=5000", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "product", store.got.EntityType)
	assert.Equal(t, uint(9), store.got.EntityID)
	assert.Equal(t, 200, store.got.Limit)

	body, _ := io.ReadAll(resp.Body)
	var out []AuditLogResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "2024-03-01 10:00:00", out[0].CreatedAt)
	assert.Equal(t, models.AuditActionUpdate, out[0].Action)
}
