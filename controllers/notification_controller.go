package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type NotificationController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewNotificationController(db *gorm.DB, logger *log.Logger) *NotificationController {
	return &NotificationController{
		DB:     db,
		Logger: logger,
	}
}

// GetNotifications lists the user's notifications, newest first
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := nc.DB.Where("user_id = ?", user.ID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&notifications).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch notifications", err)
	}

	var total, unread int64
	query.Model(&models.Notification{}).Count(&total)
	nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).Count(&unread)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    notifications,
		"total":   total,
		"unread":  unread,
		"page":    page,
		"limit":   limit,
	})
}

// MarkRead marks one notification as read
func (nc *NotificationController) MarkRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := c.Params("id")

	result := nc.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, user.ID).
		Update("is_read", true)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark notification read", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Notification marked as read",
	}))
}

// MarkAllRead marks every unread notification as read with one UPDATE
func (nc *NotificationController) MarkAllRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark notifications read", result.Error)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "All notifications marked as read",
		"updated": result.RowsAffected,
	}))
}

// DeleteNotification removes a notification
func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := c.Params("id")

	result := nc.DB.Where("id = ? AND user_id = ?", notificationID, user.ID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Notification deleted",
	}))
}
