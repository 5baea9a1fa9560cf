package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/restaurant-voice/backend/internal/config"
	"github.com/restaurant-voice/backend/internal/http/handlers"
	"github.com/restaurant-voice/backend/internal/http/middleware"
	"github.com/restaurant-voice/backend/internal/policy"
	"github.com/restaurant-voice/backend/internal/service"
	"github.com/restaurant-voice/backend/internal/session"

	_ "github.com/restaurant-voice/backend/docs"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Store        handlers.Store
	Bookings     *service.BookingService
	Reservations *service.Validator
	Sessions     *session.Manager
	Menu         *service.Menu
	Policy       policy.Policy
}

func Router(cfg config.Config, deps Deps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:        deps.Store,
		Bookings:     deps.Bookings,
		Reservations: deps.Reservations,
		Sessions:     deps.Sessions,
		Menu:         deps.Menu,
		Policy:       deps.Policy,
		Validator:    validator.New(),
		Logger:       logger,
		Voice: handlers.VoiceConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			OperatorPhone: cfg.OperatorPhone,
			Language:      cfg.VoiceLanguage,
			Voice:         cfg.VoiceName,
		},
	}

	r.GET("/healthz", h.Healthz)

	twilio := r.Group("/twilio")
	{
		twilio.POST("/voice", h.TwilioVoice)
		twilio.POST("/step", h.TwilioStep)
		twilio.POST("/status", h.TwilioStatus)
	}

	api := r.Group("/api")
	api.Use(middleware.AdminKey(cfg.AdminKey))
	{
		api.GET("/reservations", h.ReservationsList)
		api.GET("/reservations/:id", h.ReservationDetails)
		api.POST("/reservations/:id/cancel", h.ReservationCancel)
		api.POST("/reservations/validate", h.ReservationValidate)
		api.GET("/availability", h.Availability)
		api.GET("/calls", h.CallsList)
		api.GET("/calls/active", h.CallsActive)
		api.GET("/menu", h.MenuGet)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
