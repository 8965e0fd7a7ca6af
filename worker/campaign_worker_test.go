package worker

import (
	"io"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/config"
	"emailforge/models"
)

func setupWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.EmailAccount{},
		&models.Lead{},
		&models.Sequence{},
		&models.SequenceStep{},
		&models.Campaign{},
		&models.CampaignEmail{},
		&models.Notification{},
		&models.Webhook{},
		&models.WebhookDelivery{},
	))
	return db
}

func newTestWorker(db *gorm.DB) *CampaignWorker {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return NewCampaignWorker(db, logger)
}

func TestRotateAccountPicksMostCapacity(t *testing.T) {
	db := setupWorkerDB(t)
	cw := newTestWorker(db)

	accounts := []models.EmailAccount{
		{UserID: 1, Name: "A", FromEmail: "a@x.com", SMTPHost: "h", SMTPPort: 587,
			SMTPUsername: "a", Status: "active", DailyLimit: 100, SentToday: 90},
		{UserID: 1, Name: "B", FromEmail: "b@x.com", SMTPHost: "h", SMTPPort: 587,
			SMTPUsername: "b", Status: "active", DailyLimit: 100, SentToday: 10},
		{UserID: 1, Name: "C", FromEmail: "c@x.com", SMTPHost: "h", SMTPPort: 587,
			SMTPUsername: "c", Status: "error", DailyLimit: 100, SentToday: 0},
	}
	for i := range accounts {
		require.NoError(t, db.Create(&accounts[i]).Error)
	}

	account, err := cw.rotateAccount(1)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", account.FromEmail)
}

func TestRotateAccountNoCapacity(t *testing.T) {
	db := setupWorkerDB(t)
	cw := newTestWorker(db)

	require.NoError(t, db.Create(&models.EmailAccount{
		UserID: 1, Name: "A", FromEmail: "a@x.com", SMTPHost: "h", SMTPPort: 587,
		SMTPUsername: "a", Status: "active", DailyLimit: 50, SentToday: 50,
	}).Error)

	_, err := cw.rotateAccount(1)
	assert.Error(t, err)
}

func TestRotateAccountNoActiveAccounts(t *testing.T) {
	db := setupWorkerDB(t)
	cw := newTestWorker(db)

	_, err := cw.rotateAccount(1)
	assert.Error(t, err)
}

func TestScheduleNextStepUsesDelay(t *testing.T) {
	db := setupWorkerDB(t)
	cw := newTestWorker(db)

	sequence := models.Sequence{UserID: 1, Name: "Seq"}
	require.NoError(t, db.Create(&sequence).Error)
	first := models.SequenceStep{SequenceID: sequence.ID, StepNumber: 1, Subject: "s", Body: "b"}
	second := models.SequenceStep{SequenceID: sequence.ID, StepNumber: 2, Subject: "f", Body: "u", DelayDays: 3}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)

	campaign := models.Campaign{UserID: 1, SequenceID: sequence.ID, Name: "C", Status: "active"}
	require.NoError(t, db.Create(&campaign).Error)

	email := models.CampaignEmail{
		CampaignID: campaign.ID, LeadID: 7, SequenceStepID: first.ID, Status: "sent",
	}
	require.NoError(t, db.Create(&email).Error)

	require.NoError(t, cw.scheduleNextStep(&campaign, &email, &first))

	var next models.CampaignEmail
	require.NoError(t, db.Where("sequence_step_id = ?", second.ID).First(&next).Error)
	assert.Equal(t, "pending", next.Status)
	assert.Equal(t, uint(7), next.LeadID)

	expected := time.Now().Add(3 * 24 * time.Hour)
	assert.WithinDuration(t, expected, *next.ScheduledAt, time.Minute)
}

func TestScheduleNextStepAtSequenceEnd(t *testing.T) {
	db := setupWorkerDB(t)
	cw := newTestWorker(db)

	sequence := models.Sequence{UserID: 1, Name: "Seq"}
	require.NoError(t, db.Create(&sequence).Error)
	last := models.SequenceStep{SequenceID: sequence.ID, StepNumber: 1, Subject: "s", Body: "b"}
	require.NoError(t, db.Create(&last).Error)

	campaign := models.Campaign{UserID: 1, SequenceID: sequence.ID, Name: "C", Status: "active"}
	require.NoError(t, db.Create(&campaign).Error)
	email := models.CampaignEmail{CampaignID: campaign.ID, LeadID: 1, SequenceStepID: last.ID, Status: "sent"}
	require.NoError(t, db.Create(&email).Error)

	require.NoError(t, cw.scheduleNextStep(&campaign, &email, &last))

	var count int64
	db.Model(&models.CampaignEmail{}).Where("status = ?", "pending").Count(&count)
	assert.Zero(t, count)
}

func TestCompleteIfDrained(t *testing.T) {
	db := setupWorkerDB(t)
	cw := newTestWorker(db)

	campaign := models.Campaign{
		UserID: 1, SequenceID: 1, Name: "Done", Status: "active", TotalLeads: 2,
	}
	require.NoError(t, db.Create(&campaign).Error)

	require.NoError(t, cw.completeIfDrained(&campaign))

	var fresh models.Campaign
	require.NoError(t, db.First(&fresh, campaign.ID).Error)
	assert.Equal(t, "completed", fresh.Status)
	assert.NotNil(t, fresh.CompletedAt)

	var notifications int64
	db.Model(&models.Notification{}).
		Where("type = ? AND campaign_id = ?", "campaign_completed", campaign.ID).
		Count(&notifications)
	assert.Equal(t, int64(1), notifications)
}

func TestCompleteIfDrainedWithPendingLeft(t *testing.T) {
	db := setupWorkerDB(t)
	cw := newTestWorker(db)

	campaign := models.Campaign{UserID: 1, SequenceID: 1, Name: "Busy", Status: "active"}
	require.NoError(t, db.Create(&campaign).Error)
	now := time.Now()
	require.NoError(t, db.Create(&models.CampaignEmail{
		CampaignID: campaign.ID, LeadID: 1, SequenceStepID: 1,
		Status: "pending", ScheduledAt: &now,
	}).Error)

	require.NoError(t, cw.completeIfDrained(&campaign))

	var fresh models.Campaign
	require.NoError(t, db.First(&fresh, campaign.ID).Error)
	assert.Equal(t, "active", fresh.Status)
}

func TestInjectTracking(t *testing.T) {
	config.AppConfig.AppBaseURL = "https://app.example.com"
	config.AppConfig.EncryptionKey = "worker-test-key"

	body := `<p>Check <a href="https://acme.com/pricing">our pricing</a></p>`
	out := injectTracking(body, "msg1@x.com")

	assert.Contains(t, out, "https://app.example.com/track/open/msg1@x.com/")
	assert.Contains(t, out, "https://app.example.com/track/click/msg1@x.com/")
	assert.Contains(t, out, "url=https%3A%2F%2Facme.com%2Fpricing")
	assert.NotContains(t, out, `href="https://acme.com/pricing"`)
}
