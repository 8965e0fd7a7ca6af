package controller

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/models"
)

func newDashboardTestApp(db *gorm.DB, user *models.User) *fiber.App {
	dc := NewDashboardController(db, testLogger())

	app := fiber.New()
	api := app.Group("/api/v1", authAs(user))
	api.Get("/dashboard/metrics", dc.GetMetrics)
	return app
}

func TestDashboardMetricsEmptyAccount(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newDashboardTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/dashboard/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["emails_sent"])
	assert.Equal(t, float64(0), data["open_rate"])
	assert.Equal(t, float64(0), data["reply_rate"])
	assert.Equal(t, float64(0), data["active_campaigns"])
}

func TestDashboardMetricsRates(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")

	sequence := models.Sequence{UserID: user.ID, Name: "Seq"}
	require.NoError(t, db.Create(&sequence).Error)
	step := models.SequenceStep{SequenceID: sequence.ID, StepNumber: 1, Subject: "s", Body: "b"}
	require.NoError(t, db.Create(&step).Error)
	campaign := models.Campaign{UserID: user.ID, SequenceID: sequence.ID, Name: "C", Status: "active"}
	require.NoError(t, db.Create(&campaign).Error)
	lead := models.Lead{UserID: user.ID, Name: "A", Email: "a@x.com", Status: "active"}
	require.NoError(t, db.Create(&lead).Error)

	now := time.Now()
	for i := 0; i < 3; i++ {
		email := models.CampaignEmail{
			CampaignID: campaign.ID, LeadID: lead.ID, SequenceStepID: step.ID,
			Status: "sent", SentAt: &now,
		}
		if i < 1 {
			email.OpenedAt = &now
		}
		require.NoError(t, db.Create(&email).Error)
	}

	require.NoError(t, db.Create(&models.EmailAccount{
		UserID: user.ID, Name: "Main", FromEmail: "me@x.com", FromName: "Me",
		SMTPHost: "smtp.x.com", SMTPPort: 587, SMTPUsername: "me",
		Status: "active",
	}).Error)

	app := newDashboardTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/dashboard/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["emails_sent"])
	assert.Equal(t, 33.3, data["open_rate"])
	assert.Equal(t, float64(1), data["active_accounts"])
	assert.Equal(t, float64(1), data["active_campaigns"])
}

func TestDashboardMetricsScopedToUser(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	sequence := models.Sequence{UserID: other.ID, Name: "Seq"}
	require.NoError(t, db.Create(&sequence).Error)
	require.NoError(t, db.Create(&models.Campaign{
		UserID: other.ID, SequenceID: sequence.ID, Name: "Theirs", Status: "active",
	}).Error)

	app := newDashboardTestApp(db, owner)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/dashboard/metrics", nil))
	require.NoError(t, err)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["active_campaigns"])
}
