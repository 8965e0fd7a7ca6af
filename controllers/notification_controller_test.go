package controller

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/models"
)

func newNotificationTestApp(db *gorm.DB, user *models.User) *fiber.App {
	nc := NewNotificationController(db, testLogger())

	app := fiber.New()
	api := app.Group("/api/v1", authAs(user))
	api.Get("/notifications", nc.GetNotifications)
	api.Put("/notifications/read-all", nc.MarkAllRead)
	api.Put("/notifications/:id/read", nc.MarkRead)
	api.Delete("/notifications/:id", nc.DeleteNotification)
	return app
}

func seedNotifications(t *testing.T, db *gorm.DB, userID uint, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&models.Notification{
			UserID: userID, Type: "reply", Title: "New reply", Message: "msg",
		}).Error)
	}
}

func TestGetNotificationsUnreadCount(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	seedNotifications(t, db, user.ID, 3)
	require.NoError(t, db.Model(&models.Notification{}).Where("id = ?", 1).
		Update("is_read", true).Error)

	app := newNotificationTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "GET", "/api/v1/notifications", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["unread"])
}

func TestMarkAllNotificationsRead(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	seedNotifications(t, db, user.ID, 4)
	seedNotifications(t, db, other.ID, 2)

	app := newNotificationTestApp(db, user)
	resp, err := app.Test(jsonRequest(t, "PUT", "/api/v1/notifications/read-all", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["updated"])

	var otherUnread int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", other.ID, false).Count(&otherUnread)
	assert.Equal(t, int64(2), otherUnread)
}

func TestMarkNotificationReadOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	seedNotifications(t, db, owner.ID, 1)

	app := newNotificationTestApp(db, other)
	resp, err := app.Test(jsonRequest(t, "PUT", "/api/v1/notifications/1/read", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
