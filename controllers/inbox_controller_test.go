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

func newInboxTestApp(db *gorm.DB, user *models.User) *fiber.App {
	ic := NewInboxController(db, testLogger())

	app := fiber.New()
	api := app.Group("/api/v1", authAs(user))
	api.Get("/inbox/messages", ic.GetMessages)
	api.Get("/inbox/messages/search", ic.SearchMessages)
	api.Get("/inbox/messages/:id", ic.GetMessage)
	api.Put("/inbox/messages/:id/read", ic.MarkRead)
	api.Put("/inbox/read-all", ic.MarkAllRead)
	return app
}

func seedInboxMessage(t *testing.T, db *gorm.DB, userID, accountID uint, subject, body string) *models.InboxMessage {
	t.Helper()
	msg := &models.InboxMessage{
		UserID:         userID,
		EmailAccountID: accountID,
		MessageID:      subject + "@remote",
		FromEmail:      "sender@remote.com",
		ToEmail:        "me@x.com",
		Subject:        subject,
		Body:           body,
		Date:           time.Now(),
		Sentiment:      "neutral",
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestGetInboxMessagesUnreadFilter(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	seedInboxMessage(t, db, user.ID, 1, "First", "hello")
	read := seedInboxMessage(t, db, user.ID, 1, "Second", "world")
	require.NoError(t, db.Model(read).Update("is_read", true).Error)

	app := newInboxTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/inbox/messages?unread=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	results := body["data"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "First", results[0].(map[string]interface{})["subject"])
}

func TestSearchInboxMessages(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	seedInboxMessage(t, db, user.ID, 1, "Pricing question", "What does the pro plan cost?")
	seedInboxMessage(t, db, user.ID, 1, "Out of office", "Back next week")

	app := newInboxTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/inbox/messages/search?q=pricing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	results := body["data"].([]interface{})
	require.Len(t, results, 1)
}

func TestMarkAllInboxRead(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	seedInboxMessage(t, db, user.ID, 1, "A", "a")
	seedInboxMessage(t, db, user.ID, 1, "B", "b")

	app := newInboxTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "PUT", "/api/v1/inbox/read-all", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var unread int64
	db.Model(&models.InboxMessage{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).Count(&unread)
	assert.Zero(t, unread)
}

func TestGetInboxMessageOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	seedInboxMessage(t, db, owner.ID, 1, "Private", "secret")

	app := newInboxTestApp(db, other)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/inbox/messages/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestReplyMatchingStopsFollowUps(t *testing.T) {
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
	sent := models.CampaignEmail{
		CampaignID: campaign.ID, LeadID: lead.ID, SequenceStepID: step.ID,
		Status: "sent", MessageID: "abc123@x.com", SentAt: &now,
	}
	require.NoError(t, db.Create(&sent).Error)
	pending := models.CampaignEmail{
		CampaignID: campaign.ID, LeadID: lead.ID, SequenceStepID: step.ID,
		Status: "pending", ScheduledAt: &now,
	}
	require.NoError(t, db.Create(&pending).Error)

	message := models.InboxMessage{
		UserID: user.ID, EmailAccountID: 1,
		MessageID: "reply@remote", FromEmail: "a@x.com",
		Subject: "Re: s", Body: "interested",
		Date: now, InReplyTo: "abc123@x.com",
	}
	require.NoError(t, db.Create(&message).Error)

	matchReplyToCampaign(db, testLogger(), &message)

	var fresh models.CampaignEmail
	require.NoError(t, db.First(&fresh, sent.ID).Error)
	assert.Equal(t, "replied", fresh.Status)
	assert.NotNil(t, fresh.RepliedAt)

	var pendingCount int64
	db.Model(&models.CampaignEmail{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, "pending").Count(&pendingCount)
	assert.Zero(t, pendingCount)

	var freshCampaign models.Campaign
	require.NoError(t, db.First(&freshCampaign, campaign.ID).Error)
	assert.Equal(t, 1, freshCampaign.ReplyCount)

	var notifications int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", user.ID, "reply").Count(&notifications)
	assert.Equal(t, int64(1), notifications)
}
