package worker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "emailforge/controllers"
	"emailforge/models"
	"emailforge/utils"
)

// InboxWorker periodically pulls new mail for every account with IMAP
// configured.
type InboxWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewInboxWorker(db *gorm.DB, logger *log.Logger) *InboxWorker {
	return &InboxWorker{
		DB:     db,
		Logger: logger,
	}
}

func (iw *InboxWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(15 * time.Second)

	iw.Logger.Info("Inbox worker started")

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	iw.fetchAllAccounts()

	for {
		select {
		case <-ctx.Done():
			iw.Logger.Info("Inbox worker shutting down...")
			return
		case <-ticker.C:
			iw.fetchAllAccounts()
		}
	}
}

func (iw *InboxWorker) fetchAllAccounts() {
	var accounts []models.EmailAccount
	if err := iw.DB.Where("imap_host != '' AND status = ?", "active").
		Find(&accounts).Error; err != nil {
		utils.LogError(iw.Logger, err, "Failed to fetch accounts for inbox sync", nil)
		return
	}

	for i := range accounts {
		account := &accounts[i]
		n, err := controller.FetchAccountMessages(iw.DB, iw.Logger, account)
		if err != nil {
			iw.Logger.WithFields(log.Fields{
				"account_id": account.ID,
				"email":      account.FromEmail,
			}).Warnf("Inbox sync failed: %v", err)
			continue
		}
		if n > 0 {
			utils.LogEvent(iw.Logger, "inbox_sync_completed", log.Fields{
				"account_id": account.ID,
				"fetched":    n,
			})
		}
	}
}
