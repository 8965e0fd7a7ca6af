package controller

import (
	"time"

	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type campaignProgressRequest struct {
	Token      string `json:"token"`
	CampaignID uint   `json:"campaign_id"`
}

type campaignProgress struct {
	CampaignID uint    `json:"campaign_id"`
	Status     string  `json:"status"`
	TotalLeads int     `json:"total_leads"`
	SentCount  int     `json:"sent_count"`
	OpenCount  int     `json:"open_count"`
	ReplyCount int     `json:"reply_count"`
	Percent    float64 `json:"percent"`
}

// HandleCampaignProgressWS streams live sending progress for one
// campaign. The client authenticates with its access token in the
// first message, then receives a snapshot every two seconds until the
// campaign leaves the active state.
func HandleCampaignProgressWS(db *gorm.DB, logger *log.Logger) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		var req campaignProgressRequest
		if err := c.ReadJSON(&req); err != nil {
			return
		}

		claims, err := utils.ParseJWTToken(req.Token)
		if err != nil {
			c.WriteJSON(map[string]string{"error": "Invalid or expired token"})
			return
		}

		var campaign models.Campaign
		if err := db.Where("id = ? AND user_id = ?", req.CampaignID, claims.Subject).
			First(&campaign).Error; err != nil {
			c.WriteJSON(map[string]string{"error": "Campaign not found"})
			return
		}

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			if err := db.First(&campaign, campaign.ID).Error; err != nil {
				return
			}

			progress := campaignProgress{
				CampaignID: campaign.ID,
				Status:     campaign.Status,
				TotalLeads: campaign.TotalLeads,
				SentCount:  campaign.SentCount,
				OpenCount:  campaign.OpenCount,
				ReplyCount: campaign.ReplyCount,
			}
			if campaign.TotalLeads > 0 {
				progress.Percent = utils.Round1(float64(campaign.SentCount) / float64(campaign.TotalLeads) * 100)
			}

			if err := c.WriteJSON(progress); err != nil {
				logger.Debugf("Campaign progress stream closed: %v", err)
				return
			}
			if campaign.Status != "active" {
				return
			}

			<-ticker.C
		}
	}
}
