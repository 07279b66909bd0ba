package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	v1 "github.com/mnuddindev/resourcebase/internal/api/v1"
	"github.com/mnuddindev/resourcebase/internal/auth"
	"github.com/mnuddindev/resourcebase/internal/config"
	"github.com/mnuddindev/resourcebase/internal/metrics"
	"github.com/mnuddindev/resourcebase/internal/realtime"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

func NewRoutes(app *fiber.App, cfg *config.Config, h *v1.Handler, reg *realtime.Registry) {
	log := h.Logger
	expose := !cfg.IsProduction()

	app.Use(
		logger.SetupLogger(log),
		recover.New(),
		cors.New(
			cors.Config{
				AllowOrigins:     cfg.CORSOrigins,
				AllowCredentials: true,
				AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			},
		),
		compress.New(
			compress.Config{
				Level: compress.LevelBestSpeed,
				Next: func(c *fiber.Ctx) bool {
					return c.Path() == "/ws"
				},
			},
		),
		func(c *fiber.Ctx) error {
			c.Locals(utils.ExposeErrorsKey, expose)
			return c.Next()
		},
		metrics.Middleware(),
	)
	if cfg.RateLimit > 0 {
		app.Use(limiter.New(
			limiter.Config{
				Expiration: 1 * time.Minute,
				Max:        cfg.RateLimit,
				KeyGenerator: func(c *fiber.Ctx) string {
					return c.IP()
				},
				Next: func(c *fiber.Ctx) bool {
					return c.Path() == "/metrics" || c.Path() == "/ws"
				},
			},
		))
	}
	app.Use(log.Middleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Use("/ws", realtime.Upgrade(h.Auth.UserID))
	app.Get("/ws", realtime.Handler(reg, log))

	requireAuth := auth.RequireAuth(h.Auth)
	optionalAuth := auth.OptionalAuth(h.Auth)

	api := app.Group("/api")
	api.Get("/status", func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, fiber.Map{
			"status":       "ok",
			"users_online": reg.Users(),
		})
	})

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)
	authRoutes.Post("/logout", requireAuth, h.Logout)

	resources := api.Group("/resources")
	resources.Get("/", h.ListResources)
	resources.Post("/", requireAuth, h.CreateResource)
	resources.Get("/search", h.SearchResources)
	resources.Get("/tags/popular", h.PopularTags)
	resources.Get("/categories", h.Categories)
	resources.Get("/similar", h.SimilarResources)
	resources.Get("/:id", optionalAuth, h.GetResource)
	resources.Put("/:id", requireAuth, h.UpdateResource)
	resources.Get("/:id/comments", h.ListComments)
	resources.Post("/:id/comment", requireAuth, h.Comment)
	resources.Post("/:id/vote", requireAuth, h.Vote)
	resources.Get("/:id/vote", requireAuth, h.GetVote)
	resources.Post("/:id/bookmark", requireAuth, h.Bookmark)
	resources.Get("/:id/bookmark", requireAuth, h.GetBookmark)

	api.Post("/newsletter/subscribe", h.SubscribeNewsletter)

	notifications := api.Group("/notifications", requireAuth)
	notifications.Get("/", h.Notifications)
	notifications.Post("/mark-all-read", h.MarkAllNotificationsRead)
	notifications.Post("/:id/read", h.MarkNotificationRead)

	users := api.Group("/users")
	users.Get("/me", requireAuth, h.Me)
	users.Put("/me", requireAuth, h.UpdateMe)
	users.Put("/me/preferences", requireAuth, h.UpdatePreferences)
	users.Get("/:id/badges", h.UserBadges)
	users.Get("/:id/badges/counts", h.UserBadgeCounts)
	users.Get("/:id/resources", h.UserResources)
	users.Get("/:username", h.PublicProfile)

	app.Use(func(c *fiber.Ctx) error {
		return utils.SendError(c, utils.NewError(utils.ErrNotFound.Code, "Route not found"))
	})
}
