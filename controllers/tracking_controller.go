package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type TrackingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTrackingController(db *gorm.DB, logger *log.Logger) *TrackingController {
	return &TrackingController{
		DB:     db,
		Logger: logger,
	}
}

// 1x1 transparent GIF served from the open-tracking endpoint
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackOpen records an email open. The endpoint is public but token
// guarded; it always serves the pixel so broken tokens do not leave
// broken images in the email body.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	token := c.Params("token")

	if utils.VerifyTrackingToken(messageID, token) {
		tc.recordOpen(messageID)
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(trackingPixel)
}

// TrackClick records a link click and redirects to the target URL.
// A click implies an open. The redirect only fires for a valid token,
// otherwise the endpoint would be an open redirect.
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	token := c.Params("token")
	target := c.Query("url")

	if !utils.VerifyTrackingToken(messageID, token) {
		return c.SendStatus(fiber.StatusNotFound)
	}

	tc.recordOpen(messageID)

	if target == "" {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Redirect(target, fiber.StatusFound)
}

func (tc *TrackingController) recordOpen(messageID string) {
	var email models.CampaignEmail
	if err := tc.DB.Where("message_id = ?", messageID).First(&email).Error; err != nil {
		return
	}

	// Count each message once, repeat opens only touch the timestamp path
	if email.OpenedAt != nil {
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"opened_at": now,
	}
	if email.Status == "sent" || email.Status == "delivered" {
		updates["status"] = "opened"
	}
	if err := tc.DB.Model(&email).Updates(updates).Error; err != nil {
		utils.LogError(tc.Logger, err, "Failed to record open", log.Fields{"message_id": messageID})
		return
	}

	tc.DB.Model(&models.Campaign{}).Where("id = ?", email.CampaignID).
		Update("open_count", gorm.Expr("open_count + ?", 1))

	var campaign models.Campaign
	if err := tc.DB.First(&campaign, email.CampaignID).Error; err == nil {
		utils.DispatchEvent(tc.DB, tc.Logger, campaign.UserID, utils.WebhookEvent{
			Event:      "opened",
			CampaignID: campaign.ID,
			LeadID:     email.LeadID,
			Data:       map[string]interface{}{"message_id": messageID},
		})
	}
}

type providerEvent struct {
	Event     string `json:"event" validate:"required,oneof=bounce reply delivered"`
	MessageID string `json:"message_id" validate:"required"`
	Reason    string `json:"reason"`
}

// IngestProviderEvent accepts bounce/reply/delivery callbacks posted by
// mail providers and folds them into campaign state.
func (tc *TrackingController) IngestProviderEvent(c *fiber.Ctx) error {
	var event providerEvent
	if err := c.BodyParser(&event); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(event); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var email models.CampaignEmail
	if err := tc.DB.Where("message_id = ?", event.MessageID).First(&email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown message", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch message", err)
	}

	var campaign models.Campaign
	if err := tc.DB.First(&campaign, email.CampaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	now := time.Now()
	switch event.Event {
	case "delivered":
		if email.DeliveredAt == nil {
			tc.DB.Model(&email).Updates(map[string]interface{}{
				"delivered_at": now,
				"status":       "delivered",
			})
		}

	case "bounce":
		if email.BouncedAt == nil {
			tc.DB.Model(&email).Updates(map[string]interface{}{
				"bounced_at": now,
				"status":     "bounced",
				"last_error": event.Reason,
			})
			tc.DB.Model(&campaign).Update("bounce_count", gorm.Expr("bounce_count + ?", 1))
			tc.DB.Model(&models.Lead{}).Where("id = ?", email.LeadID).Update("status", "bounced")

			// A hard bounce cancels the rest of the sequence for this lead
			tc.DB.Where("campaign_id = ? AND lead_id = ? AND status = ?",
				campaign.ID, email.LeadID, "pending").Delete(&models.CampaignEmail{})

			tc.notify(campaign.UserID, "bounce", "Email bounced",
				"An email in campaign \""+campaign.Name+"\" bounced: "+event.Reason, &campaign.ID)
			utils.DispatchEvent(tc.DB, tc.Logger, campaign.UserID, utils.WebhookEvent{
				Event:      "bounced",
				CampaignID: campaign.ID,
				LeadID:     email.LeadID,
				Data:       map[string]interface{}{"message_id": event.MessageID, "reason": event.Reason},
			})
		}

	case "reply":
		if email.RepliedAt == nil {
			tc.DB.Model(&email).Updates(map[string]interface{}{
				"replied_at": now,
				"status":     "replied",
			})
			tc.DB.Model(&campaign).Update("reply_count", gorm.Expr("reply_count + ?", 1))

			// A reply stops the remaining follow-ups for this lead
			tc.DB.Where("campaign_id = ? AND lead_id = ? AND status = ?",
				campaign.ID, email.LeadID, "pending").Delete(&models.CampaignEmail{})

			tc.notify(campaign.UserID, "reply", "New reply",
				"A lead replied in campaign \""+campaign.Name+"\"", &campaign.ID)
			utils.DispatchEvent(tc.DB, tc.Logger, campaign.UserID, utils.WebhookEvent{
				Event:      "replied",
				CampaignID: campaign.ID,
				LeadID:     email.LeadID,
				Data:       map[string]interface{}{"message_id": event.MessageID},
			})
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Event processed",
	}))
}

func (tc *TrackingController) notify(userID uint, notifType, title, message string, campaignID *uint) {
	notification := models.Notification{
		UserID:     userID,
		Type:       notifType,
		Title:      title,
		Message:    message,
		CampaignID: campaignID,
	}
	if err := tc.DB.Create(&notification).Error; err != nil {
		tc.Logger.WithFields(log.Fields{"user_id": userID}).Warnf("Failed to create notification: %v", err)
	}
}
