package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	database "github.com/mnuddindev/resourcebase/internal/db"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

type Bookmark struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bookmark_user_post,priority:1" json:"user_id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bookmark_user_post,priority:2;index:idx_bookmark_post" json:"post_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (b *Bookmark) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type BookmarkAction string

const (
	BookmarkAdded   BookmarkAction = "added"
	BookmarkRemoved BookmarkAction = "removed"
)

// ToggleBookmark adds the bookmark when absent and removes it when present.
func ToggleBookmark(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, userID, postID uuid.UUID) (BookmarkAction, error) {
	var action BookmarkAction
	err := database.Transact(ctx, db, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to load post")
		}
		if n == 0 {
			return utils.NewError(utils.ErrNotFound.Code, "Post not found")
		}

		var existing Bookmark
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error
		switch {
		case err == nil:
			action = BookmarkRemoved
			return tx.Delete(&Bookmark{}, "id = ?", existing.ID).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			action = BookmarkAdded
			return tx.Create(&Bookmark{UserID: userID, PostID: postID}).Error
		default:
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to read bookmark")
		}
	})
	if err != nil {
		return "", err
	}

	InvalidatePost(ctx, rclient, postID)
	return action, nil
}

// IsBookmarked reports whether userID bookmarked postID.
func IsBookmarked(ctx context.Context, db *gorm.DB, userID, postID uuid.UUID) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Bookmark{}).Where("user_id = ? AND post_id = ?", userID, postID).Count(&n).Error
	if err != nil {
		return false, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to read bookmark")
	}
	return n > 0, nil
}

// Bookmarkers lists the users who bookmarked postID.
func Bookmarkers(ctx context.Context, db *gorm.DB, postID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.WithContext(ctx).Model(&Bookmark{}).Where("post_id = ?", postID).Order("created_at ASC").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to list bookmarkers")
	}
	return ids, nil
}
