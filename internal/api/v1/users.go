package v1

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/internal/auth"
	posts "github.com/mnuddindev/resourcebase/internal/models/posts"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

const (
	loginAttempts      = 5
	loginAttemptWindow = 15 * time.Minute
	activeThrottle     = time.Minute
)

type authResponse struct {
	User        *user.User `json:"user"`
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

func (h *Handler) issueToken(c *fiber.Ctx, u *user.User) (*authResponse, error) {
	token, expires, err := h.Auth.Tokens.GenerateAccessToken(u.ID, u.Username)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to issue token")
	}
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: "Strict",
	})
	return &authResponse{User: u, AccessToken: token, ExpiresAt: expires}, nil
}

// Register creates an account and signs the user in.
func (h *Handler) Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
		Email    string `json:"email" validate:"required,email,max=100"`
		Password string `json:"password" validate:"required,min=6,max=100"`
		FullName string `json:"full_name" validate:"omitempty,max=100"`
	}
	var rr RegisterRequest
	if err := h.parse(c, &rr); err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()

	hashed, err := utils.HashPassword(rr.Password)
	if err != nil {
		h.Logger.Error(ctx).WithError(err).Logs("Failed to hash password")
		return utils.SendError(c, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to process password"))
	}

	u, err := user.NewUser(ctx, h.DB, rr.Username, rr.Email, hashed, user.WithFullName(rr.FullName))
	if err != nil {
		return utils.SendError(c, err)
	}

	resp, err := h.issueToken(c, u)
	if err != nil {
		return utils.SendError(c, err)
	}
	h.Logger.Info(ctx).WithFields("user_id", u.ID).Logs("User registered: " + u.Username)
	return utils.Success(c).WithStatus(fiber.StatusCreated).WithMessage("Registration successful").WithData(resp).Send()
}

// Login signs a user in by username or email.
func (h *Handler) Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Login    string `json:"login" validate:"required,max=100"`
		Password string `json:"password" validate:"required,max=100"`
	}
	var lr LoginRequest
	if err := h.parse(c, &lr); err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()

	ipKey := "login:ip:" + c.IP()
	if h.Redis != nil {
		if count, err := h.Redis.Get(ctx, ipKey).Int(); err == nil && count >= loginAttempts {
			h.Logger.Warn(ctx).WithFields("ip", c.IP()).Logs("Login rate limit exceeded")
			return utils.SendError(c, utils.NewError(fiber.StatusTooManyRequests, "Too many login attempts. Try again later."))
		}
	}

	invalid := utils.NewError(utils.ErrUnauthorized.Code, "Invalid login or password")
	u, err := user.GetUserByLogin(ctx, h.DB, lr.Login)
	if err != nil {
		if utils.IsCode(err, utils.ErrNotFound.Code) {
			h.countFailedLogin(ctx, ipKey)
			return utils.SendError(c, invalid)
		}
		return utils.SendError(c, err)
	}
	if err := utils.ComparePasswords(u.Password, lr.Password); err != nil {
		h.countFailedLogin(ctx, ipKey)
		h.Logger.Warn(ctx).WithFields("user_id", u.ID).Logs("Invalid password provided")
		return utils.SendError(c, invalid)
	}
	if h.Redis != nil {
		h.Redis.Del(ctx, ipKey)
	}

	resp, err := h.issueToken(c, u)
	if err != nil {
		return utils.SendError(c, err)
	}
	h.Logger.Info(ctx).WithFields("user_id", u.ID).Logs("User logged in: " + u.Username)
	return utils.Success(c).WithMessage("Login successful").WithData(resp).Send()
}

func (h *Handler) countFailedLogin(ctx context.Context, key string) {
	if h.Redis == nil {
		return
	}
	h.Redis.Incr(ctx, key)
	h.Redis.Expire(ctx, key, loginAttemptWindow)
}

// Logout revokes the current access token for the rest of its lifetime.
func (h *Handler) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	token, claims := auth.CurrentToken(c)
	if token != "" && claims != nil && h.Redis != nil {
		if err := auth.Revoke(ctx, h.Redis, token, claims.Remaining()); err != nil {
			h.Logger.Warn(ctx).WithError(err).Logs("Failed to blacklist access token")
			return utils.SendError(c, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to log out"))
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: "Strict",
	})
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

	h.Logger.Info(ctx).WithFields("user_id", auth.CurrentUser(c)).Logs("User logged out")
	return utils.Success(c).WithMessage("Logout successful").Send()
}

// Me returns the signed-in user with preferences and badge counts.
func (h *Handler) Me(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := auth.CurrentUser(c)

	u, err := user.GetUser(ctx, h.Redis, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	prefs, err := user.GetTagPreferences(ctx, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	badges, err := user.GetUserBadgeCounts(ctx, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	count, err := posts.CountUserPosts(ctx, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, fiber.Map{
		"user":            u,
		"preferences":     prefs,
		"badge_counts":    badges,
		"resources_count": count,
	})
}

// UpdateMe edits the profile of the signed-in user.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	type ProfileRequest struct {
		FullName    *string `json:"full_name" validate:"omitempty,max=100"`
		Photo       *string `json:"photo" validate:"omitempty,max=500"`
		Description *string `json:"description" validate:"omitempty,max=2000"`
	}
	var pr ProfileRequest
	if err := h.parse(c, &pr); err != nil {
		return utils.SendError(c, err)
	}

	u, err := user.UpdateUser(c.UserContext(), h.Redis, h.DB, auth.CurrentUser(c), user.WithProfile(pr.FullName, pr.Photo, pr.Description))
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, u)
}

// UpdatePreferences replaces the tag interests of the signed-in user.
func (h *Handler) UpdatePreferences(c *fiber.Ctx) error {
	type PreferencesRequest struct {
		Tags []string `json:"tags" validate:"max=50,dive,min=1,max=50,tagname"`
	}
	var pr PreferencesRequest
	if err := h.parse(c, &pr); err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()
	id := auth.CurrentUser(c)

	tags := posts.NormalizeTags(pr.Tags)
	if err := user.SetTagPreferences(ctx, h.DB, id, tags); err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, fiber.Map{"tags": tags})
}

// UserBadges lists the badges a user holds.
func (h *Handler) UserBadges(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	badges, err := user.GetUserBadges(c.UserContext(), h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, badges)
}

// UserBadgeCounts returns how many badges of each level a user holds.
func (h *Handler) UserBadgeCounts(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	counts, err := user.GetUserBadgeCounts(c.UserContext(), h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, counts)
}

// PublicProfile shows what anyone may see about a user, looked up by
// username. Email and preferences stay private.
func (h *Handler) PublicProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()

	u, err := user.GetUserBy(ctx, h.DB, "username = ?", strings.TrimSpace(c.Params("username")))
	if err != nil {
		return utils.SendError(c, err)
	}
	badges, err := user.GetUserBadgeCounts(ctx, h.DB, u.ID)
	if err != nil {
		return utils.SendError(c, err)
	}
	count, err := posts.CountUserPosts(ctx, h.DB, u.ID)
	if err != nil {
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, fiber.Map{
		"id":              u.ID,
		"username":        u.Username,
		"full_name":       u.FullName,
		"photo":           u.Photo,
		"description":     u.Description,
		"created_at":      u.CreatedAt,
		"last_active":     u.LastActive,
		"badge_counts":    badges,
		"resources_count": count,
	})
}

// UserResources pages through the posts of one author.
func (h *Handler) UserResources(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	limit, offset := utils.Pagination(c, 20, 100)
	list, err := posts.ListUserPosts(c.UserContext(), h.DB, id, limit, offset)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, list)
}

// TrackActivity stamps last-active and awards visit streak badges. It is
// throttled per user through redis.
func (h *Handler) TrackActivity(ctx context.Context, userID uuid.UUID) {
	if h.Redis != nil {
		ok, err := h.Redis.SetNX(ctx, "active:"+userID.String(), "1", activeThrottle).Result()
		if err != nil {
			h.Logger.Warn(ctx).WithError(err).Logs("Activity throttle lookup failed")
		} else if !ok {
			return
		}
	}

	streak, err := user.TouchLastActive(ctx, h.DB, userID, time.Now())
	if err != nil {
		h.Logger.Warn(ctx).WithError(err).WithFields("user_id", userID).Logs("Failed to update last active")
		return
	}
	h.awardBadges(ctx, userID, user.BadgeVisiting, int64(streak))
}
