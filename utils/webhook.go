package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"emailforge/models"
)

// WebhookEvent is the payload shape delivered to registered endpoints.
type WebhookEvent struct {
	Event      string                 `json:"event"` // sent, opened, replied, bounced
	CampaignID uint                   `json:"campaign_id,omitempty"`
	LeadID     uint                   `json:"lead_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// GenerateWebhookSecret creates a random signing secret for a new webhook.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %v", err)
	}
	return hex.EncodeToString(buf), nil
}

// SignPayload computes the hex HMAC-SHA256 signature sent in the
// X-Forge-Signature header.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// DeliverWebhook posts one event to a single endpoint and records the
// attempt. Failures are recorded, never retried.
func DeliverWebhook(db *gorm.DB, webhook *models.Webhook, event WebhookEvent) *models.WebhookDelivery {
	payload, err := json.Marshal(event)
	if err != nil {
		payload = []byte("{}")
	}

	delivery := &models.WebhookDelivery{
		WebhookID: webhook.ID,
		Event:     event.Event,
		Payload:   string(payload),
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(webhook.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Forge-Event", event.Event)
	req.Header.Set("X-Forge-Signature", SignPayload(webhook.Secret, payload))
	req.SetBody(payload)

	if err := fasthttp.DoTimeout(req, resp, 10*time.Second); err != nil {
		delivery.Error = Pointer(err.Error())
	} else {
		delivery.StatusCode = resp.StatusCode()
		if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
			delivery.Success = true
			delivery.DeliveredAt = Pointer(time.Now())
		} else {
			delivery.Error = Pointer(fmt.Sprintf("endpoint returned status %d", resp.StatusCode()))
		}
	}

	db.Create(delivery)
	return delivery
}

// DispatchEvent fans an event out to every active webhook of the user
// that subscribes to it. Deliveries run in the background.
func DispatchEvent(db *gorm.DB, logger *log.Logger, userID uint, event WebhookEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var webhooks []models.Webhook
	if err := db.Where("user_id = ? AND is_active = ?", userID, true).Find(&webhooks).Error; err != nil {
		LogError(logger, err, "Failed to load webhooks for dispatch", log.Fields{"user_id": userID})
		return
	}

	for i := range webhooks {
		webhook := webhooks[i]
		if !subscribesTo(&webhook, event.Event) {
			continue
		}
		go func() {
			delivery := DeliverWebhook(db, &webhook, event)
			if !delivery.Success {
				logger.WithFields(log.Fields{
					"webhook_id": webhook.ID,
					"event":      event.Event,
					"status":     delivery.StatusCode,
				}).Warn("Webhook delivery failed")
			}
		}()
	}
}

func subscribesTo(webhook *models.Webhook, event string) bool {
	for _, e := range webhook.Events {
		if e == event {
			return true
		}
	}
	return false
}
