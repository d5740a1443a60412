package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/cache"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/database"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "3000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	mustCheckConfig()
	database.SetupDatabase()
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		AppName: "intelliresume-backend",
	})
	app.Use(recover.New(), logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: allowOrigin,
	}))

	// ROUTER
	router.InstallRouter(app)

	return app
}

// mustCheckConfig fails startup when a required setting is missing. All
// external collaborators (Stripe, OAuth provider, token secrets, database)
// are unusable without these, so a late failure would only surface on the
// first request.
func mustCheckConfig() {
	for _, key := range []string{
		"STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET",
		"STRIPE_PRICE_ID",
		"LINKEDIN_KEY",
		"LINKEDIN_SECRET",
		"AUTH_TOKEN_SECRET",
		"BACKEND_URL",
		"FRONTEND_URL",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
	} {
		env.MustGet(key)
	}
}

// allowOrigin implements the frontend origin whitelist. Entries are matched
// by prefix so deployments behind path-based previews keep working.
func allowOrigin(origin string) bool {
	whitelist := strings.Split(env.GetEnv("CORS_ALLOWED_ORIGINS",
		"http://localhost:3000,http://localhost:8080,https://gabrielluis21.github.io"), ",")
	for _, allowed := range whitelist {
		allowed = strings.TrimSpace(allowed)
		if allowed != "" && strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
