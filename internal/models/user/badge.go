package models

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeType string

const (
	BadgeResourceCreator BadgeType = "RESOURCE_CREATOR"
	BadgeUpvoted         BadgeType = "UPVOTED"
	BadgeVisiting        BadgeType = "VISITING"
)

var badgeLevels = []string{"bronze", "silver", "gold"}

// BadgeTier is one level of a badge type.
type BadgeTier struct {
	Level       string `yaml:"level" json:"level"`
	Name        string `yaml:"name" json:"name"`
	Requirement int64  `yaml:"requirement" json:"requirement"`
	Description string `yaml:"description" json:"description"`
}

//go:embed badges.yaml
var badgesYAML []byte

var badgeTiers = mustLoadBadges(badgesYAML)

func mustLoadBadges(data []byte) map[BadgeType][]BadgeTier {
	tiers := map[BadgeType][]BadgeTier{}
	if err := yaml.Unmarshal(data, &tiers); err != nil {
		panic(fmt.Sprintf("badges.yaml: %v", err))
	}
	return tiers
}

// Badges returns the tiers of a badge type, lowest first.
func Badges(t BadgeType) []BadgeTier {
	return badgeTiers[t]
}

// UserBadge is an awarded badge. Each (user, type, level) is awarded once.
type UserBadge struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge,priority:1" json:"user_id"`
	BadgeType  BadgeType `gorm:"size:40;not null;uniqueIndex:idx_user_badge,priority:2" json:"badge_type"`
	BadgeLevel string    `gorm:"size:10;not null;uniqueIndex:idx_user_badge,priority:3" json:"badge_level"`
	AwardedAt  time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

func (b *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BadgeView is an awarded badge with its display data.
type BadgeView struct {
	UserBadge
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AwardBadge awards one badge level. It reports false when the user already
// held it.
func AwardBadge(ctx context.Context, db *gorm.DB, userID uuid.UUID, t BadgeType, level string) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&UserBadge{UserID: userID, BadgeType: t, BadgeLevel: level})
	if res.Error != nil {
		return false, utils.WrapError(res.Error, utils.ErrInternalServerError.Code, "Failed to award badge")
	}
	return res.RowsAffected > 0, nil
}

// CheckBadges awards every level of t whose requirement count meets. It
// returns the newly awarded tiers.
func CheckBadges(ctx context.Context, db *gorm.DB, userID uuid.UUID, t BadgeType, count int64) ([]BadgeTier, error) {
	var awarded []BadgeTier
	for _, tier := range Badges(t) {
		if count < tier.Requirement {
			break
		}
		ok, err := AwardBadge(ctx, db, userID, t, tier.Level)
		if err != nil {
			return awarded, err
		}
		if ok {
			awarded = append(awarded, tier)
		}
	}
	return awarded, nil
}

// GetUserBadges lists the badges of a user, most recent first.
func GetUserBadges(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]BadgeView, error) {
	var rows []UserBadge
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("awarded_at DESC").Find(&rows).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch badges")
	}

	out := make([]BadgeView, 0, len(rows))
	for _, b := range rows {
		v := BadgeView{UserBadge: b, Name: "Unknown Badge"}
		for _, tier := range Badges(b.BadgeType) {
			if tier.Level == b.BadgeLevel {
				v.Name = tier.Name
				v.Description = tier.Description
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// GetUserBadgeCounts counts a user's badges per level.
func GetUserBadgeCounts(ctx context.Context, db *gorm.DB, userID uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		BadgeLevel string
		Total      int64
	}
	err := db.WithContext(ctx).Model(&UserBadge{}).
		Select("badge_level, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("badge_level").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count badges")
	}

	counts := make(map[string]int64, len(badgeLevels))
	for _, l := range badgeLevels {
		counts[l] = 0
	}
	for _, r := range rows {
		counts[r.BadgeLevel] = r.Total
	}
	return counts, nil
}
