package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

// TokenFromRequest reads a bearer header, falling back to the access_token
// cookie.
func TokenFromRequest(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Cookies("access_token")
}

// RequireAuth rejects requests without a valid, unrevoked access token.
func RequireAuth(opt Options) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c)
		if token == "" {
			return utils.SendError(c, utils.NewError(utils.ErrUnauthorized.Code, "Authentication required"))
		}

		claims, err := opt.Authenticate(c.UserContext(), token)
		if err != nil {
			msg := "Invalid access token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "Access token has expired"
			}
			opt.Logger.Debug(c.UserContext()).WithError(err).Logs("Rejected access token")
			return utils.SendError(c, utils.NewError(utils.ErrUnauthorized.Code, msg))
		}

		setIdentity(c, opt, token, claims)
		return c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(opt Options) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c)
		if token == "" {
			return c.Next()
		}
		if claims, err := opt.Authenticate(c.UserContext(), token); err == nil {
			setIdentity(c, opt, token, claims)
		}
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, opt Options, token string, claims *Claims) {
	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalUsername, claims.Username)
	c.Locals(LocalClaims, claims)
	c.Locals(LocalToken, token)

	if opt.OnActive != nil {
		if id, err := uuid.Parse(claims.UserID); err == nil {
			opt.OnActive(context.WithoutCancel(c.UserContext()), id)
		}
	}
}

// CurrentUser returns the authenticated user id, or uuid.Nil.
func CurrentUser(c *fiber.Ctx) uuid.UUID {
	s, _ := c.Locals(LocalUserID).(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// CurrentToken returns the raw token and claims of the request.
func CurrentToken(c *fiber.Ctx) (string, *Claims) {
	token, _ := c.Locals(LocalToken).(string)
	claims, _ := c.Locals(LocalClaims).(*Claims)
	return token, claims
}
