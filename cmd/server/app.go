package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	routes "github.com/mnuddindev/resourcebase/internal/api"
	v1 "github.com/mnuddindev/resourcebase/internal/api/v1"
	"github.com/mnuddindev/resourcebase/internal/auth"
	"github.com/mnuddindev/resourcebase/internal/config"
	database "github.com/mnuddindev/resourcebase/internal/db"
	"github.com/mnuddindev/resourcebase/internal/models"
	posts "github.com/mnuddindev/resourcebase/internal/models/posts"
	"github.com/mnuddindev/resourcebase/internal/notify"
	"github.com/mnuddindev/resourcebase/internal/realtime"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "resourcebase",
	Short:         "Resource sharing API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, _ := cmd.Flags().GetBool("migrate")
		return serve(cmd.Context(), migrate)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and seed categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrate(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "run migrations before serving")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func setup(cfg *config.Config) (*logger.Logger, error) {
	return logger.NewLogger(
		logger.WithLevel(cfg.LogLevel),
		logger.WithJSON(cfg.LogJSON),
	)
}

func openDB(ctx context.Context, cfg *config.Config, log *logger.Logger, tables []interface{}) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return database.Open(ctx, cfg.DatabaseURL, tables,
		database.WithLogger(log.Component("gorm")),
		database.WithPool(cfg.DBMaxOpenConns, cfg.DBMaxIdleConns),
	)
}

func migrate(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log, err := setup(cfg)
	if err != nil {
		return err
	}

	gdb, err := openDB(ctx, cfg, log, models.RegisterModels())
	if err != nil {
		log.Error(ctx).WithError(err).Logs("Migration failed")
		return err
	}
	defer database.CloseDB(gdb, log)

	if err := posts.SeedCategories(ctx, gdb); err != nil {
		log.Error(ctx).WithError(err).Logs("Failed to seed categories")
		return err
	}
	log.Info(ctx).Logs("Migrations applied")
	return nil
}

func serve(parent context.Context, runMigrations bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log, err := setup(cfg)
	if err != nil {
		return err
	}

	var tables []interface{}
	if runMigrations {
		tables = models.RegisterModels()
	}
	gdb, err := openDB(ctx, cfg, log, tables)
	if err != nil {
		log.Error(ctx).WithError(err).Logs("Failed to initialize PostgreSQL database")
		return err
	}
	defer database.CloseDB(gdb, log)
	if runMigrations {
		if err := posts.SeedCategories(ctx, gdb); err != nil {
			return err
		}
	}

	rclient, err := storage.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Error(ctx).WithError(err).Logs("Failed to initialize Redis")
		return err
	}
	defer rclient.Close(log)

	g, gctx := errgroup.WithContext(ctx)

	reg := realtime.NewRegistry(log)
	var pusher notify.Pusher = reg
	if cfg.Broadcast == "redis" {
		b := realtime.NewBroadcaster(rclient, reg, log)
		g.Go(func() error { return b.Run(gctx) })
		pusher = b
	}

	h := &v1.Handler{
		DB:        gdb,
		Redis:     rclient,
		Logger:    log,
		Validator: utils.NewValidator(),
		Auth: auth.Options{
			DB:      gdb,
			Rclient: rclient,
			Tokens:  auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL),
			Logger:  log,
		},
		Notifier:      notify.New(gdb, pusher, log, notify.WithFanoutLimit(cfg.FanoutLimit)),
		SecureCookies: cfg.IsProduction(),
	}
	h.Auth.OnActive = h.TrackActivity

	app := fiber.New(fiber.Config{
		AppName:      "resourcebase",
		ErrorHandler: utils.ErrorHandler(!cfg.IsProduction()),
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
	routes.NewRoutes(app, cfg, h, reg)

	g.Go(func() error {
		log.Info(gctx).WithFields("addr", cfg.ServerAddr, "env", cfg.Env).Logs("Server starting")
		return app.Listen(cfg.ServerAddr)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background()).Logs("Shutting down")
		reg.Close()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error(context.Background()).WithError(err).Logs("Server shutdown failed")
		}
		h.Wait()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(context.Background()).WithError(err).Logs("Server stopped with error")
		return err
	}
	log.Info(context.Background()).Logs("Server stopped")
	return nil
}
