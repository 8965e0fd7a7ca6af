package controller

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

// GetMetrics aggregates account-wide sending metrics for the dashboard
func (dc *DashboardController) GetMetrics(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaignIDs []uint
	if err := dc.DB.Model(&models.Campaign{}).Where("user_id = ?", user.ID).
		Pluck("id", &campaignIDs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load campaigns", err)
	}

	var sent, opened, replied, bounced int64
	if len(campaignIDs) > 0 {
		base := dc.DB.Model(&models.CampaignEmail{}).Where("campaign_id IN ?", campaignIDs)
		base.Session(&gorm.Session{}).Where("sent_at IS NOT NULL").Count(&sent)
		base.Session(&gorm.Session{}).Where("opened_at IS NOT NULL").Count(&opened)
		base.Session(&gorm.Session{}).Where("replied_at IS NOT NULL").Count(&replied)
		base.Session(&gorm.Session{}).Where("bounced_at IS NOT NULL").Count(&bounced)
	}

	var openRate, replyRate float64
	if sent > 0 {
		openRate = utils.Round1(float64(opened) / float64(sent) * 100)
		replyRate = utils.Round1(float64(replied) / float64(sent) * 100)
	}

	var activeAccounts int64
	dc.DB.Model(&models.EmailAccount{}).
		Where("user_id = ? AND status = ?", user.ID, "active").Count(&activeAccounts)

	var activeCampaigns int64
	dc.DB.Model(&models.Campaign{}).
		Where("user_id = ? AND status = ?", user.ID, "active").Count(&activeCampaigns)

	var pendingEmails int64
	if len(campaignIDs) > 0 {
		dc.DB.Model(&models.CampaignEmail{}).
			Where("campaign_id IN ? AND status = ?", campaignIDs, "pending").Count(&pendingEmails)
	}

	var totalLeads int64
	dc.DB.Model(&models.Lead{}).Where("user_id = ?", user.ID).Count(&totalLeads)

	var unreadMessages int64
	dc.DB.Model(&models.InboxMessage{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).Count(&unreadMessages)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"emails_sent":      sent,
		"emails_opened":    opened,
		"emails_replied":   replied,
		"emails_bounced":   bounced,
		"open_rate":        openRate,
		"reply_rate":       replyRate,
		"active_accounts":  activeAccounts,
		"active_campaigns": activeCampaigns,
		"pending_emails":   pendingEmails,
		"total_leads":      totalLeads,
		"unread_messages":  unreadMessages,
	}))
}
