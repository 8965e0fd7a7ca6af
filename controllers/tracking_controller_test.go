package controller

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

func newTrackingTestApp(db *gorm.DB) *fiber.App {
	tc := NewTrackingController(db, testLogger())

	app := fiber.New()
	app.Get("/track/open/:messageID/:token", tc.TrackOpen)
	app.Get("/track/click/:messageID/:token", tc.TrackClick)
	app.Post("/api/v1/webhooks/events", tc.IngestProviderEvent)
	return app
}

func seedSentEmail(t *testing.T, db *gorm.DB) (*models.User, *models.Campaign, *models.CampaignEmail) {
	t.Helper()

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
	email := models.CampaignEmail{
		CampaignID: campaign.ID, LeadID: lead.ID, SequenceStepID: step.ID,
		Status: "sent", MessageID: "msg1@x.com", SentAt: &now,
	}
	require.NoError(t, db.Create(&email).Error)
	return user, &campaign, &email
}

func TestTrackOpenRecordsOpen(t *testing.T) {
	db := setupTestDB(t)
	_, campaign, email := seedSentEmail(t, db)

	app := newTrackingTestApp(db)
	token := utils.TrackingToken(email.MessageID)

	resp, err := app.Test(jsonRequest(t, "GET", "/track/open/"+email.MessageID+"/"+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))

	var fresh models.CampaignEmail
	require.NoError(t, db.First(&fresh, email.ID).Error)
	assert.Equal(t, "opened", fresh.Status)
	assert.NotNil(t, fresh.OpenedAt)

	var freshCampaign models.Campaign
	require.NoError(t, db.First(&freshCampaign, campaign.ID).Error)
	assert.Equal(t, 1, freshCampaign.OpenCount)
}

func TestTrackOpenInvalidTokenStillServesPixel(t *testing.T) {
	db := setupTestDB(t)
	_, campaign, email := seedSentEmail(t, db)

	app := newTrackingTestApp(db)
	resp, err := app.Test(jsonRequest(t, "GET", "/track/open/"+email.MessageID+"/badtoken", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fresh models.CampaignEmail
	require.NoError(t, db.First(&fresh, email.ID).Error)
	assert.Nil(t, fresh.OpenedAt)

	var freshCampaign models.Campaign
	require.NoError(t, db.First(&freshCampaign, campaign.ID).Error)
	assert.Zero(t, freshCampaign.OpenCount)
}

func TestTrackOpenIdempotent(t *testing.T) {
	db := setupTestDB(t)
	_, campaign, email := seedSentEmail(t, db)

	app := newTrackingTestApp(db)
	token := utils.TrackingToken(email.MessageID)
	for i := 0; i < 3; i++ {
		_, err := app.Test(jsonRequest(t, "GET", "/track/open/"+email.MessageID+"/"+token, nil))
		require.NoError(t, err)
	}

	var freshCampaign models.Campaign
	require.NoError(t, db.First(&freshCampaign, campaign.ID).Error)
	assert.Equal(t, 1, freshCampaign.OpenCount)
}

func TestTrackClickRedirectsWithValidToken(t *testing.T) {
	db := setupTestDB(t)
	_, _, email := seedSentEmail(t, db)

	app := newTrackingTestApp(db)
	token := utils.TrackingToken(email.MessageID)

	resp, err := app.Test(jsonRequest(t, "GET",
		"/track/click/"+email.MessageID+"/"+token+"?url=https%3A%2F%2Facme.com%2Fpricing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://acme.com/pricing", resp.Header.Get("Location"))

	var fresh models.CampaignEmail
	require.NoError(t, db.First(&fresh, email.ID).Error)
	assert.NotNil(t, fresh.OpenedAt)
}

func TestTrackClickInvalidTokenNeverRedirects(t *testing.T) {
	db := setupTestDB(t)
	_, campaign, email := seedSentEmail(t, db)

	app := newTrackingTestApp(db)
	resp, err := app.Test(jsonRequest(t, "GET",
		"/track/click/"+email.MessageID+"/forged?url=https%3A%2F%2Fevil.example.com%2Fphish", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Location"))

	var fresh models.CampaignEmail
	require.NoError(t, db.First(&fresh, email.ID).Error)
	assert.Nil(t, fresh.OpenedAt)

	var freshCampaign models.Campaign
	require.NoError(t, db.First(&freshCampaign, campaign.ID).Error)
	assert.Zero(t, freshCampaign.OpenCount)
}

func TestIngestBounceEvent(t *testing.T) {
	db := setupTestDB(t)
	user, campaign, email := seedSentEmail(t, db)

	// A pending follow-up for the same lead should be cancelled
	now := time.Now()
	pending := models.CampaignEmail{
		CampaignID: campaign.ID, LeadID: email.LeadID,
		SequenceStepID: email.SequenceStepID,
		Status:         "pending", ScheduledAt: &now,
	}
	require.NoError(t, db.Create(&pending).Error)

	app := newTrackingTestApp(db)
	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/webhooks/events", fiber.Map{
		"event":      "bounce",
		"message_id": email.MessageID,
		"reason":     "mailbox unavailable",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fresh models.CampaignEmail
	require.NoError(t, db.First(&fresh, email.ID).Error)
	assert.Equal(t, "bounced", fresh.Status)

	var lead models.Lead
	require.NoError(t, db.First(&lead, email.LeadID).Error)
	assert.Equal(t, "bounced", lead.Status)

	var pendingCount int64
	db.Model(&models.CampaignEmail{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, "pending").Count(&pendingCount)
	assert.Zero(t, pendingCount)

	var notifications int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", user.ID, "bounce").Count(&notifications)
	assert.Equal(t, int64(1), notifications)
}

func TestIngestUnknownMessage(t *testing.T) {
	db := setupTestDB(t)
	app := newTrackingTestApp(db)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/webhooks/events", fiber.Map{
		"event":      "delivered",
		"message_id": "unknown@x.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
