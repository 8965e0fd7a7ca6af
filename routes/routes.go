package routes

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "emailforge/controllers"
	"emailforge/middleware"
	"emailforge/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	logger := log.StandardLogger()

	utils.InitStripe()

	authController := controller.NewAuthController(db, logger)
	accountController := controller.NewAccountController(db, logger)
	leadController := controller.NewLeadController(db, logger)
	sequenceController := controller.NewSequenceController(db, logger)
	campaignController := controller.NewCampaignController(db, logger)
	trackingController := controller.NewTrackingController(db, logger)
	inboxController := controller.NewInboxController(db, logger)
	dashboardController := controller.NewDashboardController(db, logger)
	deliverabilityController := controller.NewDeliverabilityController(db, logger)
	notificationController := controller.NewNotificationController(db, logger)
	webhookController := controller.NewWebhookController(db, logger)
	billingController := controller.NewBillingController(db, logger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Tracking endpoints are hit from recipients' mail clients
	app.Get("/track/open/:messageID/:token", trackingController.TrackOpen)
	app.Get("/track/click/:messageID/:token", trackingController.TrackClick)

	// Auth routes
	auth := app.Group("/auth", fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.Refresh)
	auth.Get("/google", authController.GoogleLogin)
	auth.Get("/google/callback", authController.GoogleCallback)

	protectedAuth := auth.Group("", middleware.Protected(db))
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Get("/profile", authController.GetProfile)
	protectedAuth.Put("/profile", authController.UpdateProfile)
	protectedAuth.Post("/change-password", authController.ChangePassword)

	// Stripe calls this endpoint directly
	app.Post("/billing/webhook", billingController.HandleStripeWebhook)

	// Provider delivery callbacks (bounce, delivery, reply notifications)
	app.Post("/api/v1/webhooks/events", trackingController.IngestProviderEvent)

	// Campaign progress stream authenticates inside the handler
	app.Get("/api/v1/campaigns/progress", websocket.New(
		controller.HandleCampaignProgressWS(db, logger)))

	api := app.Group("/api/v1", middleware.Protected(db), fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Email account routes
	account := api.Group("/email-accounts")
	account.Post("/", accountController.CreateAccount)
	account.Get("/", accountController.GetAccounts)
	account.Get("/:id", accountController.GetAccount)
	account.Put("/:id", accountController.UpdateAccount)
	account.Delete("/:id", accountController.DeleteAccount)
	account.Post("/:id/test", middleware.AccountTestRateLimiter(), accountController.TestAccount)

	// Lead routes
	lead := api.Group("/leads")
	lead.Post("/", leadController.CreateLead)
	lead.Get("/", leadController.GetLeads)
	lead.Get("/search", leadController.SearchLeads)
	lead.Post("/export", leadController.ExportLeads)
	lead.Post("/import", leadController.ImportLeads)
	lead.Post("/bulk", leadController.BulkCreateLeads)
	lead.Delete("/bulk", leadController.BulkDeleteLeads)
	lead.Get("/:id", leadController.GetLead)
	lead.Put("/:id", leadController.UpdateLead)
	lead.Delete("/:id", leadController.DeleteLead)

	// Lead list routes
	leadList := api.Group("/lead-lists")
	leadList.Post("/", leadController.CreateLeadList)
	leadList.Get("/", leadController.GetLeadLists)
	leadList.Get("/:id", leadController.GetLeadList)
	leadList.Put("/:id", leadController.UpdateLeadList)
	leadList.Delete("/:id", leadController.DeleteLeadList)

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.GetSequences)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Put("/:id", sequenceController.UpdateSequence)
	sequence.Delete("/:id", sequenceController.DeleteSequence)
	sequence.Post("/:id/steps", sequenceController.AddStep)
	sequence.Put("/:id/steps/:stepID", sequenceController.UpdateStep)
	sequence.Delete("/:id/steps/:stepID", sequenceController.DeleteStep)

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/filter", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Post("/:id/start", campaignController.StartCampaign)
	campaign.Post("/:id/pause", campaignController.PauseCampaign)
	campaign.Post("/:id/complete", campaignController.CompleteCampaign)
	campaign.Get("/:id/emails", campaignController.GetCampaignEmails)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)

	// Unified inbox routes
	inbox := api.Group("/inbox")
	inbox.Get("/", inboxController.GetMessages)
	inbox.Get("/search", inboxController.SearchMessages)
	inbox.Post("/fetch", inboxController.FetchMessages)
	inbox.Put("/read-all", inboxController.MarkAllRead)
	inbox.Get("/:id", inboxController.GetMessage)
	inbox.Put("/:id/read", inboxController.MarkRead)

	// Dashboard routes
	dashboard := api.Group("/dashboard")
	dashboard.Get("/metrics", dashboardController.GetMetrics)

	// Deliverability routes
	deliverability := api.Group("/deliverability")
	deliverability.Post("/test", deliverabilityController.RunSpamTest)
	deliverability.Get("/domain-reputation", deliverabilityController.CheckDomainReputation)

	// Notification routes
	notification := api.Group("/notifications")
	notification.Get("/", notificationController.GetNotifications)
	notification.Put("/read-all", notificationController.MarkAllRead)
	notification.Put("/:id/read", notificationController.MarkRead)
	notification.Delete("/:id", notificationController.DeleteNotification)

	// Webhook management routes
	webhook := api.Group("/webhooks")
	webhook.Post("/", webhookController.CreateWebhook)
	webhook.Get("/", webhookController.GetWebhooks)
	webhook.Get("/:id", webhookController.GetWebhook)
	webhook.Put("/:id", webhookController.UpdateWebhook)
	webhook.Delete("/:id", webhookController.DeleteWebhook)
	webhook.Post("/:id/test", webhookController.TestWebhook)

	// Billing routes
	billing := api.Group("/billing")
	billing.Get("/plans", billingController.GetPlans)
	billing.Post("/create-intent", billingController.CreateIntent)
	billing.Get("/transactions", billingController.GetTransactions)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	logger.Info("Routes initialized successfully")
}
