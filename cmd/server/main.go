package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/lendly/internal/config"
	"github.com/example/lendly/internal/database"
	"github.com/example/lendly/internal/routes"
	"github.com/example/lendly/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName: "Lendly Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	bureau := services.NewBureauService(services.BureauConfig{
		BaseURL:   cfg.BureauBaseURL,
		ClientID:  cfg.BureauClientID,
		ClientKey: cfg.BureauClientKey,
	})

	routes.Register(app, db, cfg, bureau)

	if _, err := bureau.Token(context.Background()); err != nil {
		log.Printf("Bureau token warm-up failed: %v", err)
	}

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
