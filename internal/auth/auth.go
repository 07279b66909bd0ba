// Package auth issues access tokens and guards routes with them.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"gorm.io/gorm"
)

// Locals keys set by the middleware.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalClaims   = "claims"
	LocalToken    = "access_token"
)

type Options struct {
	DB      *gorm.DB
	Rclient *storage.RedisClient
	Tokens  *Tokens
	Logger  *logger.Logger
	// OnActive runs after a request is authenticated. Failures are logged by
	// the callee and never block the request.
	OnActive func(ctx context.Context, userID uuid.UUID)
}

func blacklistKey(token string) string { return "blacklist:access:" + token }

// Revoke blacklists token until it would have expired anyway.
func Revoke(ctx context.Context, rclient *storage.RedisClient, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return rclient.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

// IsRevoked reports whether token was blacklisted by a logout.
func IsRevoked(ctx context.Context, rclient *storage.RedisClient, token string) (bool, error) {
	if rclient == nil {
		return false, nil
	}
	n, err := rclient.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Authenticate verifies token and checks the blacklist. It returns the user
// the token was issued for.
func (o Options) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := o.Tokens.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := IsRevoked(ctx, o.Rclient, token)
	if err != nil {
		o.Logger.Warn(ctx).WithError(err).Logs("Blacklist lookup failed")
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID is Authenticate for callers that only need the id.
func (o Options) UserID(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := o.Authenticate(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.UserID)
}
