package controller

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
	}
}

// CreateCampaign creates a draft campaign bound to a sequence and a
// lead list
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"max=500"`
		SequenceID  uint   `json:"sequence_id" validate:"required"`
		LeadListID  *uint  `json:"lead_list_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := cc.DB.Where("id = ? AND user_id = ?", input.SequenceID, user.ID).First(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	if input.LeadListID != nil {
		var list models.LeadList
		if err := cc.DB.Where("id = ? AND user_id = ?", *input.LeadListID, user.ID).First(&list).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
		}
	}

	campaign := models.Campaign{
		UserID:      user.ID,
		SequenceID:  sequence.ID,
		LeadListID:  input.LeadListID,
		Name:        input.Name,
		Description: input.Description,
		Status:      "draft",
	}
	if err := cc.DB.Create(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

// GetCampaigns returns the user's campaigns with optional status filter
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := cc.DB.Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if sequenceID := c.Query("sequence_id"); sequenceID != "" {
		query = query.Where("sequence_id = ?", utils.ParseUint(sequenceID))
	}

	var campaigns []models.Campaign
	if err := query.Offset(offset).Limit(limit).Order("id DESC").Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}

	var total int64
	query.Model(&models.Campaign{}).Count(&total)

	return c.JSON(utils.PaginatedResponse{
		Data:  campaigns,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetCampaign returns a single campaign with its sequence
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).
		Preload("Sequence.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

// UpdateCampaign updates metadata of a draft or paused campaign
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var input struct {
		Name        *string `json:"name" validate:"omitempty,max=100"`
		Description *string `json:"description" validate:"omitempty,max=500"`
		SequenceID  *uint   `json:"sequence_id"`
		LeadListID  *uint   `json:"lead_list_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if campaign.Status == "active" || campaign.Status == "completed" {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Only draft or paused campaigns can be edited", nil)
	}

	if input.Name != nil {
		campaign.Name = *input.Name
	}
	if input.Description != nil {
		campaign.Description = *input.Description
	}
	if input.SequenceID != nil {
		var sequence models.Sequence
		if err := cc.DB.Where("id = ? AND user_id = ?", *input.SequenceID, user.ID).First(&sequence).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		campaign.SequenceID = sequence.ID
	}
	if input.LeadListID != nil {
		var list models.LeadList
		if err := cc.DB.Where("id = ? AND user_id = ?", *input.LeadListID, user.ID).First(&list).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead list not found", nil)
		}
		campaign.LeadListID = input.LeadListID
	}

	if err := cc.DB.Save(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", err)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

// DeleteCampaign removes a campaign and its scheduled emails
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	tx := cc.DB.Begin()

	if err := tx.Where("campaign_id = ?", campaignID).Delete(&models.CampaignEmail{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign emails", err)
	}

	result := tx.Where("id = ? AND user_id = ?", campaignID, user.ID).Delete(&models.Campaign{})
	if result.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Campaign deleted successfully",
	}))
}

// StartCampaign moves a draft or paused campaign to active. On the
// first start the step-one email is scheduled for every active lead in
// the campaign's list.
func (cc *CampaignController) StartCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if campaign.Status != "draft" && campaign.Status != "paused" {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be started from status "+campaign.Status, nil)
	}

	var firstStep models.SequenceStep
	if err := cc.DB.Where("sequence_id = ?", campaign.SequenceID).
		Order("step_number ASC").First(&firstStep).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sequence has no steps", nil)
	}

	tx := cc.DB.Begin()

	// First start: snapshot the lead list into scheduled emails
	if campaign.Status == "draft" {
		leadQuery := tx.Where("user_id = ? AND status = ?", user.ID, "active")
		if campaign.LeadListID != nil {
			leadQuery = leadQuery.Where("lead_list_id = ?", *campaign.LeadListID)
		}

		var leads []models.Lead
		if err := leadQuery.Find(&leads).Error; err != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
		}
		if len(leads) == 0 {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Campaign has no active leads", nil)
		}

		now := time.Now()
		emails := make([]models.CampaignEmail, 0, len(leads))
		for _, lead := range leads {
			emails = append(emails, models.CampaignEmail{
				CampaignID:     campaign.ID,
				LeadID:         lead.ID,
				SequenceStepID: firstStep.ID,
				Status:         "pending",
				ScheduledAt:    &now,
			})
		}
		if err := tx.CreateInBatches(&emails, 100).Error; err != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to schedule campaign emails", err)
		}

		campaign.TotalLeads = len(leads)
		campaign.StartedAt = &now
	}

	campaign.Status = "active"
	if err := tx.Save(&campaign).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start campaign", err)
	}

	tx.Commit()

	utils.LogEvent(cc.Logger, "campaign_started", log.Fields{
		"campaign_id": campaign.ID,
		"total_leads": campaign.TotalLeads,
	})

	return c.JSON(utils.SuccessResponse(campaign))
}

// PauseCampaign pauses an active campaign. Pending emails stay queued
// but the worker skips them until the campaign resumes.
func (cc *CampaignController) PauseCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if campaign.Status != "active" {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Only active campaigns can be paused", nil)
	}

	campaign.Status = "paused"
	if err := cc.DB.Save(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to pause campaign", err)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

// CompleteCampaign marks a campaign completed and drops its unsent
// emails from the queue
func (cc *CampaignController) CompleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if campaign.Status == "completed" {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign is already completed", nil)
	}

	tx := cc.DB.Begin()

	if err := tx.Where("campaign_id = ? AND status = ?", campaign.ID, "pending").
		Delete(&models.CampaignEmail{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear pending emails", err)
	}

	now := time.Now()
	campaign.Status = "completed"
	campaign.CompletedAt = &now
	if err := tx.Save(&campaign).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to complete campaign", err)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(campaign))
}

// GetCampaignEmails returns the per-lead send records of a campaign
func (cc *CampaignController) GetCampaignEmails(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit > 200 {
		limit = 200
	}
	offset := (page - 1) * limit

	query := cc.DB.Where("campaign_id = ?", campaign.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var emails []models.CampaignEmail
	if err := query.Preload("Lead").Offset(offset).Limit(limit).Order("id ASC").Find(&emails).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign emails", err)
	}

	var total int64
	query.Model(&models.CampaignEmail{}).Count(&total)

	return c.JSON(utils.PaginatedResponse{
		Data:  emails,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetCampaignStats recomputes campaign statistics from the underlying
// campaign_emails rows and resynchronizes the denormalized counters.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	stats := models.CampaignStats{CampaignID: campaign.ID}

	base := cc.DB.Model(&models.CampaignEmail{}).Where("campaign_id = ?", campaign.ID)
	base.Session(&gorm.Session{}).Distinct("lead_id").Count(&stats.TotalLeads)
	base.Session(&gorm.Session{}).Where("sent_at IS NOT NULL").Count(&stats.SentCount)
	base.Session(&gorm.Session{}).Where("opened_at IS NOT NULL").Count(&stats.OpenCount)
	base.Session(&gorm.Session{}).Where("replied_at IS NOT NULL").Count(&stats.ReplyCount)
	base.Session(&gorm.Session{}).Where("bounced_at IS NOT NULL").Count(&stats.BounceCount)

	if stats.SentCount > 0 {
		stats.OpenRate = utils.Round1(float64(stats.OpenCount) / float64(stats.SentCount) * 100)
		stats.ReplyRate = utils.Round1(float64(stats.ReplyCount) / float64(stats.SentCount) * 100)
	}

	// Repair drift between the denormalized counters and the source rows
	cc.DB.Model(&campaign).Updates(map[string]interface{}{
		"sent_count":   stats.SentCount,
		"open_count":   stats.OpenCount,
		"reply_count":  stats.ReplyCount,
		"bounce_count": stats.BounceCount,
	})

	return c.JSON(utils.SuccessResponse(stats))
}
