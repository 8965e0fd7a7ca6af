package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type WebhookController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewWebhookController(db *gorm.DB, logger *log.Logger) *WebhookController {
	return &WebhookController{
		DB:     db,
		Logger: logger,
	}
}

type CreateWebhookRequest struct {
	Name   string   `json:"name" validate:"required,max=100"`
	URL    string   `json:"url" validate:"required,url"`
	Events []string `json:"events" validate:"required,min=1,dive,oneof=sent delivered opened replied bounced campaign_completed"`
}

type UpdateWebhookRequest struct {
	Name     *string  `json:"name" validate:"omitempty,max=100"`
	URL      *string  `json:"url" validate:"omitempty,url"`
	Events   []string `json:"events" validate:"omitempty,min=1,dive,oneof=sent delivered opened replied bounced campaign_completed"`
	IsActive *bool    `json:"is_active"`
}

// CreateWebhook registers an endpoint and returns its signing secret once
func (wc *WebhookController) CreateWebhook(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	secret, err := utils.GenerateWebhookSecret()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate secret", err)
	}

	webhook := models.Webhook{
		UserID:   user.ID,
		Name:     req.Name,
		URL:      req.URL,
		Secret:   secret,
		Events:   req.Events,
		IsActive: true,
	}
	if err := wc.DB.Create(&webhook).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create webhook", err)
	}

	// The secret is only shown on creation
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"webhook": webhook,
		"secret":  secret,
	}))
}

// GetWebhooks lists the user's webhooks
func (wc *WebhookController) GetWebhooks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var webhooks []models.Webhook
	if err := wc.DB.Where("user_id = ?", user.ID).Order("id DESC").
		Find(&webhooks).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhooks", err)
	}

	return c.JSON(utils.SuccessResponse(webhooks))
}

// GetWebhook returns one webhook with its recent deliveries
func (wc *WebhookController) GetWebhook(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	webhookID := c.Params("id")

	var webhook models.Webhook
	if err := wc.DB.Where("id = ? AND user_id = ?", webhookID, user.ID).
		First(&webhook).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Webhook not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhook", err)
	}

	var deliveries []models.WebhookDelivery
	wc.DB.Where("webhook_id = ?", webhook.ID).Order("id DESC").Limit(20).Find(&deliveries)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"webhook":    webhook,
		"deliveries": deliveries,
	}))
}

// UpdateWebhook modifies a webhook's endpoint, events or active flag
func (wc *WebhookController) UpdateWebhook(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	webhookID := c.Params("id")

	var req UpdateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var webhook models.Webhook
	if err := wc.DB.Where("id = ? AND user_id = ?", webhookID, user.ID).
		First(&webhook).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Webhook not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhook", err)
	}

	if req.Name != nil {
		webhook.Name = *req.Name
	}
	if req.URL != nil {
		webhook.URL = *req.URL
	}
	if req.Events != nil {
		webhook.Events = req.Events
	}
	if req.IsActive != nil {
		webhook.IsActive = *req.IsActive
	}

	if err := wc.DB.Save(&webhook).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update webhook", err)
	}

	return c.JSON(utils.SuccessResponse(webhook))
}

// DeleteWebhook removes a webhook and its delivery history
func (wc *WebhookController) DeleteWebhook(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	webhookID := c.Params("id")

	var webhook models.Webhook
	if err := wc.DB.Where("id = ? AND user_id = ?", webhookID, user.ID).
		First(&webhook).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Webhook not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhook", err)
	}

	tx := wc.DB.Begin()
	if err := tx.Where("webhook_id = ?", webhook.ID).
		Delete(&models.WebhookDelivery{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete webhook", err)
	}
	if err := tx.Delete(&webhook).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete webhook", err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete webhook", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Webhook deleted",
	}))
}

// TestWebhook delivers a synthetic event to the endpoint
func (wc *WebhookController) TestWebhook(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	webhookID := c.Params("id")

	var webhook models.Webhook
	if err := wc.DB.Where("id = ? AND user_id = ?", webhookID, user.ID).
		First(&webhook).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Webhook not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch webhook", err)
	}

	event := utils.WebhookEvent{
		Event:     "test",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": "Test delivery",
		},
	}
	delivery := utils.DeliverWebhook(wc.DB, &webhook, event)

	utils.LogEvent(wc.Logger, "webhook_test_completed", log.Fields{
		"user_id":    user.ID,
		"webhook_id": webhook.ID,
		"success":    delivery.Success,
	})

	return c.JSON(utils.SuccessResponse(delivery))
}
