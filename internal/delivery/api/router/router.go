// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"parkshare/config"
	"parkshare/internal/delivery/api/middleware"
	"parkshare/internal/delivery/api/router/handler"
	"parkshare/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler         *handler.AuthHandler
	AccountHandler      *handler.AccountHandler
	ParkingHandler      *handler.ParkingHandler
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
	Config              *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	accountHandler *handler.AccountHandler
	parkingHandler *handler.ParkingHandler
	auth           *middleware.AuthMiddleware
	rateLimit      *middleware.RateLimitMiddleware
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		accountHandler: params.AccountHandler,
		parkingHandler: params.ParkingHandler,
		auth:           params.AuthMiddleware,
		rateLimit:      params.RateLimitMiddleware,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)
	r.registerMetrics(e)

	// Authentication
	e.POST("/signup", r.authHandler.Signup)
	e.POST("/signin", r.authHandler.Signin, r.rateLimit.Limit("signin"))
	e.POST("/confirm-pin", r.authHandler.ConfirmPin, r.rateLimit.Limit("confirm-pin"))
	e.POST("/logout", r.authHandler.Logout)
	e.GET("/send-confirmation-email", r.authHandler.SendConfirmationEmail, r.auth.Protect)
	e.PATCH("/confirm-email/:token", r.authHandler.ConfirmEmail)
	e.POST("/forgot-password", r.authHandler.ForgotPassword, r.rateLimit.Limit("forgot-password"))
	e.GET("/reset-password/:token", r.authHandler.CheckResetToken)
	e.PATCH("/reset-password/:token", r.authHandler.ResetPassword)
	e.PATCH("/change-password", r.authHandler.ChangePassword, r.auth.Protect)

	// Account
	me := e.Group("/me", r.auth.Protect)
	{
		me.GET("", r.accountHandler.GetMe)
		me.DELETE("", r.accountHandler.DeleteMe)
		me.GET("/earnings.xlsx", r.accountHandler.GetEarningsReport, r.auth.RestrictTo(entity.RoleProvider))
	}
	e.DELETE("/accounts/:accountId", r.accountHandler.DeleteAccount, r.auth.Protect, r.auth.RestrictTo(entity.RoleAdmin))

	// Parkings
	e.POST("/parkings", r.parkingHandler.CreateParking,
		r.auth.Protect, r.auth.RestrictTo(entity.RoleProvider, entity.RoleAdmin))

	// Reservations are addressed by parking id at the root. The group carries no
	// middleware so it does not shadow the static routes above.
	resource := e.Group("/:resourceId")
	{
		resource.PATCH("/start-reservation", r.parkingHandler.StartReservation,
			r.auth.Protect, r.auth.RestrictTo(entity.RoleClient, entity.RoleProvider))
		resource.PATCH("/end-reservation", r.parkingHandler.EndReservation, r.auth.Protect)
		resource.PATCH("/validate", r.parkingHandler.ValidateParking, r.auth.Protect, r.auth.RestrictTo(entity.RoleAdmin))
		resource.PATCH("/confirm-occupancy", r.parkingHandler.ConfirmOccupancy,
			r.auth.Protect, r.auth.RestrictTo(entity.RoleAdmin))
		resource.GET("/qrcode", r.parkingHandler.GetQRCode, r.auth.Protect, r.auth.RestrictTo(entity.RoleProvider, entity.RoleAdmin))
	}
}

func (r *router) registerMetrics(e *echo.Echo) {
	cfg := r.config.Metrics
	if cfg == nil || !cfg.Enabled {
		return
	}

	e.GET(cfg.Path, echo.WrapHandler(promhttp.Handler()))
}
