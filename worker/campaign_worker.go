package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/config"
	"emailforge/models"
	"emailforge/utils"
)

const (
	sendBatchSize = 50
	sendTimeout   = 30 * time.Second
)

var hrefPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// CampaignWorker drains due campaign emails, rotating sends across the
// owner's connected accounts.
type CampaignWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCampaignWorker(db *gorm.DB, logger *log.Logger) *CampaignWorker {
	return &CampaignWorker{
		DB:     db,
		Logger: logger,
	}
}

func (cw *CampaignWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	cw.Logger.Info("Campaign worker started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Info("Campaign worker shutting down...")
			return
		case <-ticker.C:
			cw.processActiveCampaigns()
		}
	}
}

func (cw *CampaignWorker) processActiveCampaigns() {
	var campaigns []models.Campaign
	if err := cw.DB.Where("status = ?", "active").Find(&campaigns).Error; err != nil {
		utils.LogError(cw.Logger, err, "Failed to fetch active campaigns", nil)
		return
	}

	for i := range campaigns {
		if err := cw.processCampaign(&campaigns[i]); err != nil {
			utils.LogError(cw.Logger, err, "Failed to process campaign", log.Fields{
				"campaign_id": campaigns[i].ID,
			})
		}
	}
}

func (cw *CampaignWorker) processCampaign(campaign *models.Campaign) error {
	var due []models.CampaignEmail
	if err := cw.DB.Preload("Lead").Preload("SequenceStep").
		Where("campaign_id = ? AND status = ? AND scheduled_at <= ?",
			campaign.ID, "pending", time.Now()).
		Order("scheduled_at ASC").Limit(sendBatchSize).
		Find(&due).Error; err != nil {
		return err
	}

	if len(due) == 0 {
		return cw.completeIfDrained(campaign)
	}

	var user models.User
	if err := cw.DB.First(&user, campaign.UserID).Error; err != nil {
		return err
	}

	for i := range due {
		email := &due[i]

		// Unsubscribed and bounced leads fall out of the campaign
		if email.Lead.Status != "active" {
			cw.DB.Delete(email)
			continue
		}

		if user.EmailCredits-user.CreditsConsumed <= 0 {
			cw.Logger.WithFields(log.Fields{
				"user_id":     user.ID,
				"campaign_id": campaign.ID,
			}).Warn("User out of email credits, deferring sends")
			return nil
		}

		account, err := cw.rotateAccount(campaign.UserID)
		if err != nil {
			cw.Logger.WithFields(log.Fields{
				"user_id":     campaign.UserID,
				"campaign_id": campaign.ID,
			}).Warnf("Deferring sends: %v", err)
			return nil
		}

		if err := cw.sendCampaignEmail(campaign, email, account); err != nil {
			cw.markFailed(email, err)
			continue
		}
		user.CreditsConsumed++
	}

	return cw.completeIfDrained(campaign)
}

// rotateAccount picks the active account with the most capacity left
// today.
func (cw *CampaignWorker) rotateAccount(userID uint) (*models.EmailAccount, error) {
	var accounts []models.EmailAccount
	if err := cw.DB.Where("user_id = ? AND status = ?", userID, "active").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, errors.New("no active email accounts available")
	}

	var best *models.EmailAccount
	maxAvailable := 0
	for i := range accounts {
		if available := accounts[i].RemainingToday(); available > maxAvailable {
			maxAvailable = available
			best = &accounts[i]
		}
	}
	if best == nil {
		return nil, errors.New("no accounts with sending capacity left today")
	}
	return best, nil
}

func (cw *CampaignWorker) sendCampaignEmail(campaign *models.Campaign, email *models.CampaignEmail, account *models.EmailAccount) error {
	step := email.SequenceStep
	lead := email.Lead

	messageID := utils.GenerateMessageID(utils.ExtractDomain(account.FromEmail))
	subject := utils.RenderTemplate(step.Subject, &lead)
	body := injectTracking(utils.RenderTemplate(step.Body, &lead), messageID)

	if err := utils.SendAccountEmail(account, utils.OutgoingEmail{
		To:        lead.Email,
		Subject:   subject,
		Body:      body,
		MessageID: messageID,
	}, sendTimeout); err != nil {
		return err
	}

	now := time.Now()
	if err := cw.DB.Model(email).Updates(map[string]interface{}{
		"status":           "sent",
		"sent_at":          now,
		"message_id":       messageID,
		"email_account_id": account.ID,
	}).Error; err != nil {
		return err
	}

	cw.DB.Model(&models.EmailAccount{}).Where("id = ?", account.ID).Updates(map[string]interface{}{
		"sent_today": gorm.Expr("sent_today + ?", 1),
		"total_sent": gorm.Expr("total_sent + ?", 1),
	})
	cw.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1))
	cw.DB.Model(&models.SequenceStep{}).Where("id = ?", step.ID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1))
	cw.DB.Model(&models.User{}).Where("id = ?", campaign.UserID).
		Update("credits_consumed", gorm.Expr("credits_consumed + ?", 1))

	utils.DispatchEvent(cw.DB, cw.Logger, campaign.UserID, utils.WebhookEvent{
		Event:      "sent",
		CampaignID: campaign.ID,
		LeadID:     lead.ID,
		Data: map[string]interface{}{
			"message_id":  messageID,
			"step_number": step.StepNumber,
			"to":          lead.Email,
		},
	})

	return cw.scheduleNextStep(campaign, email, &step)
}

// scheduleNextStep queues the lead for the following sequence step,
// offset by that step's delay.
func (cw *CampaignWorker) scheduleNextStep(campaign *models.Campaign, email *models.CampaignEmail, current *models.SequenceStep) error {
	var next models.SequenceStep
	err := cw.DB.Where("sequence_id = ? AND step_number = ?",
		current.SequenceID, current.StepNumber+1).First(&next).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	scheduledAt := time.Now().Add(time.Duration(next.DelayDays) * 24 * time.Hour)
	return cw.DB.Create(&models.CampaignEmail{
		CampaignID:     campaign.ID,
		LeadID:         email.LeadID,
		SequenceStepID: next.ID,
		Status:         "pending",
		ScheduledAt:    &scheduledAt,
	}).Error
}

func (cw *CampaignWorker) markFailed(email *models.CampaignEmail, sendErr error) {
	now := time.Now()
	if err := cw.DB.Model(email).Updates(map[string]interface{}{
		"status":     "failed",
		"failed_at":  now,
		"last_error": sendErr.Error(),
	}).Error; err != nil {
		utils.LogError(cw.Logger, err, "Failed to record send failure", log.Fields{
			"campaign_email_id": email.ID,
		})
	}
	cw.Logger.WithFields(log.Fields{
		"campaign_email_id": email.ID,
		"lead_id":           email.LeadID,
	}).Warnf("Send failed: %v", sendErr)
}

// completeIfDrained finishes the campaign once no pending emails remain.
func (cw *CampaignWorker) completeIfDrained(campaign *models.Campaign) error {
	var pending int64
	if err := cw.DB.Model(&models.CampaignEmail{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, "pending").
		Count(&pending).Error; err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	now := time.Now()
	if err := cw.DB.Model(campaign).Updates(map[string]interface{}{
		"status":       "completed",
		"completed_at": now,
	}).Error; err != nil {
		return err
	}

	notification := models.Notification{
		UserID:     campaign.UserID,
		Type:       "campaign_completed",
		Title:      "Campaign completed",
		Message:    fmt.Sprintf("Campaign %q finished sending to %d leads", campaign.Name, campaign.TotalLeads),
		CampaignID: &campaign.ID,
	}
	if err := cw.DB.Create(&notification).Error; err != nil {
		utils.LogError(cw.Logger, err, "Failed to create completion notification", log.Fields{
			"campaign_id": campaign.ID,
		})
	}

	utils.DispatchEvent(cw.DB, cw.Logger, campaign.UserID, utils.WebhookEvent{
		Event:      "campaign_completed",
		CampaignID: campaign.ID,
		Data: map[string]interface{}{
			"name":        campaign.Name,
			"total_leads": campaign.TotalLeads,
		},
	})

	utils.LogEvent(cw.Logger, "campaign_completed", log.Fields{
		"campaign_id": campaign.ID,
		"user_id":     campaign.UserID,
	})
	return nil
}

// ResetDailyCounters zeroes per-account send counters at midnight UTC.
func (cw *CampaignWorker) ResetDailyCounters(ctx context.Context) {
	for {
		now := time.Now().UTC()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(nextMidnight)):
		}

		if err := cw.DB.Model(&models.EmailAccount{}).
			Where("sent_today > 0").
			Update("sent_today", 0).Error; err != nil {
			utils.LogError(cw.Logger, err, "Failed to reset daily send counters", nil)
		} else {
			cw.Logger.Info("Daily send counters reset")
		}
	}
}

// injectTracking appends the open pixel and rewrites links through the
// click redirect.
func injectTracking(body, messageID string) string {
	token := utils.TrackingToken(messageID)
	base := config.AppConfig.AppBaseURL

	body = hrefPattern.ReplaceAllStringFunc(body, func(match string) string {
		target := hrefPattern.FindStringSubmatch(match)[1]
		return fmt.Sprintf(`href="%s/track/click/%s/%s?url=%s"`,
			base, messageID, token, url.QueryEscape(target))
	})

	pixel := fmt.Sprintf(`<img src="%s/track/open/%s/%s" width="1" height="1" alt="" />`,
		base, messageID, token)
	return body + pixel
}
