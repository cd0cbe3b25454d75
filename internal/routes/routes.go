package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/lendly/internal/config"
	"github.com/example/lendly/internal/handlers"
	"github.com/example/lendly/internal/middleware"
	"github.com/example/lendly/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, bureau *services.BureauService) {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	leadService := services.NewLeadService(db, telegramService)
	reportService := services.NewReportService(db, cfg.ReportTTL)

	retrier := services.NewReportRetrier(
		bureau.FetchReportByTransaction,
		reportService.SaveFromBureau,
		reportService.MarkSessionExpired,
	)
	flow := services.NewCreditCheckFlow(bureau, reportService, retrier, leadService, cfg.FrontendBaseURL+"/login")

	authHandler := handlers.NewAuthHandler(db, cfg)
	creditReportHandler := handlers.NewCreditReportHandler(flow, reportService)
	leadHandler := handlers.NewLeadHandler(db, leadService)
	loanHandler := handlers.NewLoanHandler(db)
	profileHandler := handlers.NewProfileHandler(db)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/verify", authHandler.Verify)

	// Credit report pipeline
	creditReport := api.Group("/credit-report")
	creditReport.Post("/intent", creditReportHandler.CreateIntent)
	creditReport.Get("/entry", middleware.OptionalAuthMiddleware(cfg), creditReportHandler.Entry)
	creditReport.Post("/session", middleware.AuthMiddleware(cfg), creditReportHandler.StartSession)
	creditReport.Get("/status/:transactionId", middleware.AuthMiddleware(cfg), creditReportHandler.RetryStatus)
	creditReport.Get("/cache", middleware.AuthMiddleware(cfg), creditReportHandler.CheckCache)
	creditReport.Get("/me", middleware.AuthMiddleware(cfg), creditReportHandler.GetMyReport)
	creditReport.Get("/pdf", middleware.AuthMiddleware(cfg), creditReportHandler.GetPDFLink)

	// Lead capture stays reachable from marketing pages without a login.
	api.Post("/leads", middleware.OptionalAuthMiddleware(cfg), leadHandler.Capture)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/leads", leadHandler.ListLeads)
	protected.Get("/leads/:id", leadHandler.GetLead)

	protected.Post("/loans", loanHandler.CreateLoan)
	protected.Get("/loans", loanHandler.ListLoans)
	protected.Get("/loans/:id", loanHandler.GetLoan)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
}
