package controller

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/models"
)

func newWebhookTestApp(db *gorm.DB, user *models.User) *fiber.App {
	wc := NewWebhookController(db, testLogger())

	app := fiber.New()
	api := app.Group("/api/v1", authAs(user))
	api.Post("/webhooks", wc.CreateWebhook)
	api.Get("/webhooks", wc.GetWebhooks)
	api.Get("/webhooks/:id", wc.GetWebhook)
	api.Put("/webhooks/:id", wc.UpdateWebhook)
	api.Delete("/webhooks/:id", wc.DeleteWebhook)
	return app
}

func TestCreateWebhookReturnsSecretOnce(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newWebhookTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/webhooks", fiber.Map{
		"name":   "CRM sync",
		"url":    "https://crm.example.com/hooks/emailforge",
		"events": []string{"opened", "replied"},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	secret, _ := data["secret"].(string)
	assert.Len(t, secret, 64)

	// Listing never exposes the secret
	resp, err = app.Test(jsonRequest(t, "GET", "/api/v1/webhooks", nil))
	require.NoError(t, err)
	body = decodeBody(t, resp)
	listed := body["data"].([]interface{})[0].(map[string]interface{})
	_, present := listed["secret"]
	assert.False(t, present)
}

func TestCreateWebhookRejectsUnknownEvent(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newWebhookTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/webhooks", fiber.Map{
		"name":   "Broken",
		"url":    "https://crm.example.com/hooks",
		"events": []string{"teleported"},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateWebhookEvents(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	webhook := models.Webhook{
		UserID: user.ID, Name: "Hook", URL: "https://a.example.com",
		Secret: "s", Events: []string{"opened"}, IsActive: true,
	}
	require.NoError(t, db.Create(&webhook).Error)

	app := newWebhookTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "PUT", "/api/v1/webhooks/1", fiber.Map{
		"events":    []string{"bounced"},
		"is_active": false,
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fresh models.Webhook
	require.NoError(t, db.First(&fresh, webhook.ID).Error)
	assert.Equal(t, []string{"bounced"}, []string(fresh.Events))
	assert.False(t, fresh.IsActive)
}

func TestDeleteWebhookRemovesDeliveries(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	webhook := models.Webhook{
		UserID: user.ID, Name: "Hook", URL: "https://a.example.com",
		Secret: "s", Events: []string{"opened"}, IsActive: true,
	}
	require.NoError(t, db.Create(&webhook).Error)
	require.NoError(t, db.Create(&models.WebhookDelivery{
		WebhookID: webhook.ID, Event: "opened", Payload: "{}",
	}).Error)

	app := newWebhookTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "DELETE", "/api/v1/webhooks/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var deliveries int64
	db.Model(&models.WebhookDelivery{}).Count(&deliveries)
	assert.Zero(t, deliveries)
}
