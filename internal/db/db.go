package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type DBOptions func(*gorm.DB) error

// Open connects to PostgreSQL, retrying the initial connection with backoff.
func Open(ctx context.Context, dsn string, models []interface{}, opts ...DBOptions) (*gorm.DB, error) {
	var gdb *gorm.DB
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxElapsedTime(30*time.Second),
	), 5)

	connect := func() error {
		var err error
		gdb, err = NewDB(ctx, postgres.Open(dsn), models, opts...)
		if utils.IsCode(err, utils.ErrBadRequest.Code) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(connect, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return gdb, nil
}

// NewDB opens a gorm handle on the given dialector, applies options and
// migrates the models.
func NewDB(ctx context.Context, dialector gorm.Dialector, models []interface{}, opts ...DBOptions) (*gorm.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "DB initialization canceled")
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, utils.NewError(utils.ErrInternalServerError.Code, "Failed to connect to Database", err.Error())
	}

	for _, opt := range opts {
		if err := opt(db); err != nil {
			return nil, utils.NewError(utils.ErrBadRequest.Code, "Failed to apply DB Options", err.Error())
		}
	}

	if len(models) > 0 {
		if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
			return nil, utils.NewError(utils.ErrInternalServerError.Code, "Failed to Migrate models", err.Error())
		}
	}

	return db, nil
}

// CloseDB closes the pool behind db.
func CloseDB(db *gorm.DB, log *logger.Logger) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error(context.Background()).WithError(err).Logs("Failed to get DB handle for closing")
		return utils.NewError(utils.ErrInternalServerError.Code, "Failed to close database", err.Error())
	}

	if err := sqlDB.Close(); err != nil {
		log.Error(context.Background()).WithError(err).Logs("PostgreSQL database close failed")
		return utils.NewError(utils.ErrInternalServerError.Code, "Failed to close database", err.Error())
	}
	log.Info(context.Background()).Logs("PostgreSQL database connection closed successfully")
	return nil
}
