package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gabrielluis21/intelliresume-backend/app/controllers"
	"github.com/gabrielluis21/intelliresume-backend/app/repository"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/constants"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/database"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/oauth"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init oauth providers and handshake session store
	oauth.Setup()

	// Initialize repositories and controllers
	repository.InitializeFactory(database.GetDB())
	controllers.InitializeAuthController()

	app.Get(constants.HealthRoute, controllers.HandleHealth)

	app.Get(constants.AuthBeginRoute, controllers.HandleAuthBegin)
	app.Get(constants.AuthCallbackRoute, controllers.HandleAuthCallback)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
