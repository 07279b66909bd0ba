package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	database "github.com/mnuddindev/resourcebase/internal/db"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

// Comment is append-only. Every insert bumps the post's comment_count in the
// same transaction.
type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_comment_user" json:"user_id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;index:idx_comment_post" json:"post_id"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CommentView struct {
	Comment
	Username string `json:"author_username"`
}

// AddComment stores a comment and increments the post counter atomically.
func AddComment(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, userID, postID uuid.UUID, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.NewError(utils.ErrBadRequest.Code, "Comment cannot be empty")
	}

	c := &Comment{UserID: userID, PostID: postID, Comment: text}
	err := database.Transact(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to create comment")
		}
		res := tx.Model(&Post{}).Where("id = ?", postID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1))
		if res.Error != nil {
			return utils.WrapError(res.Error, utils.ErrInternalServerError.Code, "Failed to update comment count")
		}
		if res.RowsAffected == 0 {
			return utils.NewError(utils.ErrNotFound.Code, "Post not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	InvalidatePost(ctx, rclient, postID)
	return c, nil
}

// ListComments pages through the comments of a post, newest first.
func ListComments(ctx context.Context, db *gorm.DB, postID uuid.UUID, limit, offset int) ([]CommentView, error) {
	comments := []CommentView{}
	err := db.WithContext(ctx).
		Table("comments AS c").
		Select("c.*, u.username").
		Joins("JOIN users u ON u.id = c.user_id").
		Where("c.post_id = ?", postID).
		Order("c.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&comments).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch comments")
	}
	return comments, nil
}

// CountComments counts the stored comments of a post.
func CountComments(ctx context.Context, db *gorm.DB, postID uuid.UUID) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&Comment{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count comments")
	}
	return n, nil
}
