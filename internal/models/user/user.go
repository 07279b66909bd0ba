package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	database "github.com/mnuddindev/resourcebase/internal/db"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username    string     `gorm:"size:50;not null;uniqueIndex:idx_user_username" json:"username"`
	Email       string     `gorm:"size:100;not null;uniqueIndex:idx_user_email" json:"email"`
	Password    string     `gorm:"size:255;not null" json:"-"`
	FullName    string     `gorm:"size:100" json:"full_name"`
	Photo       string     `gorm:"size:500" json:"photo"`
	Description string     `gorm:"type:text" json:"description"`
	LastActive  *time.Time `json:"last_active"`
	VisitStreak int        `gorm:"not null;default:0" json:"visit_streak"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// TagPreference is a standing interest of a user in a tag.
type TagPreference struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TagName   string    `gorm:"size:50;primaryKey;index:idx_tag_pref_tag" json:"tag_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserOption configures a User.
type UserOption func(*User)

const userCacheTTL = 10 * time.Minute

func userKey(id uuid.UUID) string { return "user:" + id.String() }

// NewUser stores a user. passwordHash must already be hashed. Taken
// usernames or emails yield a conflict error.
func NewUser(ctx context.Context, db *gorm.DB, username, email, passwordHash string, opts ...UserOption) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "user creation canceled")
	}

	u := &User{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: passwordHash,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.Username == "" || u.Email == "" || u.Password == "" {
		return nil, utils.NewError(utils.ErrBadRequest.Code, "Required fields missing: username, email, password")
	}

	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewError(utils.ErrConflict.Code, "Username or email already exists")
		}
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to create user in database")
	}
	return u, nil
}

// GetUserBy loads the first user matching condition.
func GetUserBy(ctx context.Context, db *gorm.DB, condition string, args ...interface{}) (*User, error) {
	var u User
	err := db.WithContext(ctx).Where(condition, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.ErrNotFound.Code, "User not found")
	}
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to get user")
	}
	return &u, nil
}

// GetUser loads a user by id through the redis cache.
func GetUser(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, id uuid.UUID) (*User, error) {
	var u User
	if rclient != nil {
		if err := rclient.GetJSON(ctx, userKey(id), &u); err == nil {
			return &u, nil
		}
	}

	found, err := GetUserBy(ctx, db, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if rclient != nil {
		_ = rclient.SetJSON(ctx, userKey(id), found, userCacheTTL)
	}
	return found, nil
}

// GetUserByLogin finds a user by username or email.
func GetUserByLogin(ctx context.Context, db *gorm.DB, login string) (*User, error) {
	login = strings.TrimSpace(login)
	return GetUserBy(ctx, db, "username = ? OR email = ?", login, strings.ToLower(login))
}

// UpdateUser applies opts to a stored user and refreshes the cache.
func UpdateUser(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, id uuid.UUID, opts ...UserOption) (*User, error) {
	u, err := GetUserBy(ctx, db, "id = ?", id)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(u)
	}

	err = db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"full_name":   u.FullName,
		"photo":       u.Photo,
		"description": u.Description,
	}).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to update user")
	}

	if rclient != nil {
		rclient.Del(ctx, userKey(id))
	}
	return u, nil
}

// TouchLastActive stamps the user's activity time and advances the daily
// visit streak. It returns the resulting streak.
func TouchLastActive(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) (int, error) {
	streak := 0
	err := database.Transact(ctx, db, func(tx *gorm.DB) error {
		var u User
		if err := tx.Select("id", "last_active", "visit_streak").Where("id = ?", userID).First(&u).Error; err != nil {
			return err
		}
		streak = nextStreak(u.LastActive, u.VisitStreak, now)
		return tx.Model(&User{}).Where("id = ?", userID).UpdateColumns(map[string]interface{}{
			"last_active":  now,
			"visit_streak": streak,
		}).Error
	})
	return streak, err
}

// nextStreak counts consecutive UTC calendar days with activity.
func nextStreak(last *time.Time, streak int, now time.Time) int {
	if last == nil || streak <= 0 {
		return 1
	}
	y1, m1, d1 := last.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	days := int(time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC).Sub(time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)).Hours() / 24)
	switch days {
	case 0:
		return streak
	case 1:
		return streak + 1
	default:
		return 1
	}
}

// SetTagPreferences replaces the standing tag interests of a user.
func SetTagPreferences(ctx context.Context, db *gorm.DB, userID uuid.UUID, tags []string) error {
	return database.Transact(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&TagPreference{}).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to clear preferences")
		}
		if len(tags) == 0 {
			return nil
		}
		prefs := make([]TagPreference, 0, len(tags))
		for _, t := range tags {
			prefs = append(prefs, TagPreference{UserID: userID, TagName: t})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&prefs).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to save preferences")
		}
		return nil
	})
}

// GetTagPreferences lists the tag interests of a user.
func GetTagPreferences(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]string, error) {
	tags := []string{}
	err := db.WithContext(ctx).Model(&TagPreference{}).Where("user_id = ?", userID).Order("tag_name ASC").Pluck("tag_name", &tags).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to load preferences")
	}
	return tags, nil
}
