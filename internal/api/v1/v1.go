// Package v1 holds the HTTP handlers of the public API.
package v1

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/internal/auth"
	"github.com/mnuddindev/resourcebase/internal/metrics"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/internal/notify"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

// Handler carries the dependencies every route needs.
type Handler struct {
	DB            *gorm.DB
	Redis         *storage.RedisClient
	Logger        *logger.Logger
	Validator     *utils.Validator
	Auth          auth.Options
	Notifier      *notify.Notifier
	SecureCookies bool

	wg sync.WaitGroup
}

// Wait blocks until background follow-ups (fan-outs, badge checks) finish.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// background runs fn after the response, detached from request cancellation.
func (h *Handler) background(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(ctx)
	}()
}

// parse reads a strict JSON body into out and validates it.
func (h *Handler) parse(c *fiber.Ctx, out interface{}) error {
	if err := utils.StrictBodyParser(c, out); err != nil {
		h.Logger.Warn(c.UserContext()).WithError(err).Logs("Failed to parse request body")
		return err
	}
	if verr := h.Validator.Validate(out); verr != nil {
		h.Logger.Warn(c.UserContext()).WithFields("errors", verr.Errors).Logs("Validation failed")
		return verr.AsError()
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, utils.NewError(utils.ErrBadRequest.Code, "Invalid "+name)
	}
	return id, nil
}

// awardBadges checks the thresholds of t against count and records any new
// awards. Failures are logged only.
func (h *Handler) awardBadges(ctx context.Context, userID uuid.UUID, t user.BadgeType, count int64) {
	awarded, err := user.CheckBadges(ctx, h.DB, userID, t, count)
	if err != nil {
		h.Logger.Warn(ctx).WithError(err).WithFields("user_id", userID, "badge_type", t).Logs("Badge check failed")
		return
	}
	for _, tier := range awarded {
		metrics.BadgesAwarded.WithLabelValues(string(t), tier.Level).Inc()
		h.Logger.Info(ctx).WithFields("user_id", userID, "badge", tier.Name, "level", tier.Level).Logs("Badge awarded")
	}
}
