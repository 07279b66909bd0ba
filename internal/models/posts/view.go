package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	database "github.com/mnuddindev/resourcebase/internal/db"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

// PostView records that a post was opened. Anonymous views have no user.
type PostView struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_view_post" json:"post_id"`
	UserID   *uuid.UUID `gorm:"type:uuid;index:idx_view_user" json:"user_id"`
	ViewedAt time.Time  `gorm:"not null;index" json:"viewed_at"`
}

func (v *PostView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now()
	}
	return nil
}

const viewWindow = 24 * time.Hour

// RecordView stores a view and bumps view_count. A signed-in user counts at
// most once per post per day. It reports whether a view was counted.
func RecordView(ctx context.Context, db *gorm.DB, postID uuid.UUID, userID *uuid.UUID) (bool, error) {
	counted := false
	err := database.Transact(ctx, db, func(tx *gorm.DB) error {
		if userID != nil {
			var n int64
			err := tx.Model(&PostView{}).
				Where("post_id = ? AND user_id = ? AND viewed_at > ?", postID, *userID, time.Now().Add(-viewWindow)).
				Count(&n).Error
			if err != nil {
				return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to read views")
			}
			if n > 0 {
				return nil
			}
		}

		res := tx.Model(&Post{}).Where("id = ?", postID).UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if res.Error != nil {
			return utils.WrapError(res.Error, utils.ErrInternalServerError.Code, "Failed to update view count")
		}
		if res.RowsAffected == 0 {
			return utils.NewError(utils.ErrNotFound.Code, "Post not found")
		}
		if err := tx.Create(&PostView{PostID: postID, UserID: userID}).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to record view")
		}
		counted = true
		return nil
	})
	return counted, err
}

// InterestedUsers resolves who should hear about a new post carrying tags:
// users who viewed another post with one of those tags, and users with a
// standing preference for one. The author is excluded and at most limit ids
// are returned.
func InterestedUsers(ctx context.Context, db *gorm.DB, postID, authorID uuid.UUID, tags []string, limit int) ([]uuid.UUID, error) {
	tags = NormalizeTags(tags)
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	err := db.WithContext(ctx).Raw(`
		SELECT user_id FROM (
			SELECT pv.user_id AS user_id
			FROM post_views pv
			JOIN post_tags pt ON pt.post_id = pv.post_id
			JOIN tags t ON t.id = pt.tag_id
			WHERE t.name IN ? AND pv.post_id <> ? AND pv.user_id IS NOT NULL
			UNION
			SELECT tp.user_id AS user_id
			FROM tag_preferences tp
			WHERE tp.tag_name IN ?
		) interested
		WHERE user_id <> ?
		ORDER BY user_id
		LIMIT ?`, tags, postID, tags, authorID, limit).
		Scan(&ids).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to resolve interested users")
	}
	return ids, nil
}
