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

type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
	// VoteNone clears any vote the user holds on the post.
	VoteNone VoteType = "none"
)

// ParseVoteType validates a client supplied vote type.
func ParseVoteType(s string) (VoteType, error) {
	switch v := VoteType(s); v {
	case VoteUp, VoteDown, VoteNone:
		return v, nil
	}
	return "", utils.NewError(utils.ErrBadRequest.Code, "Invalid vote type", "expected up, down or none")
}

// VoteAction reports what a vote request did to the stored state.
type VoteAction string

const (
	VoteAdded     VoteAction = "added"
	VoteChanged   VoteAction = "changed"
	VoteRemoved   VoteAction = "removed"
	VoteUnchanged VoteAction = "unchanged"
)

// Vote is the single vote a user holds on a post.
type Vote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_vote_user_post,priority:1" json:"user_id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_vote_user_post,priority:2;index:idx_vote_post" json:"post_id"`
	VoteType  VoteType  `gorm:"size:10;not null" json:"vote_type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type VoteResult struct {
	Action   VoteAction `json:"action"`
	VoteType VoteType   `json:"vote_type"`
	PostID   uuid.UUID  `json:"post_id"`
	// OwnerID is the author of the voted post.
	OwnerID uuid.UUID `json:"-"`
}

// CastVote toggles the vote of userID on postID. The same type twice clears
// the vote, a different type replaces it, and VoteNone always clears it.
// Concurrent requests for one pair are settled by the unique index.
func CastVote(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, userID, postID uuid.UUID, voteType VoteType) (*VoteResult, error) {
	if _, err := ParseVoteType(string(voteType)); err != nil {
		return nil, err
	}

	result := &VoteResult{PostID: postID, VoteType: voteType}
	err := database.Transact(ctx, db, func(tx *gorm.DB) error {
		var post Post
		if err := tx.Select("id", "user_id").Where("id = ?", postID).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewError(utils.ErrNotFound.Code, "Post not found")
			}
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to load post")
		}
		result.OwnerID = post.UserID

		var existing Vote
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to read vote")
		}

		switch {
		case !found && voteType == VoteNone:
			result.Action = VoteUnchanged
			return nil
		case !found:
			result.Action = VoteAdded
			return tx.Create(&Vote{UserID: userID, PostID: postID, VoteType: voteType}).Error
		case voteType == VoteNone || existing.VoteType == voteType:
			result.Action = VoteRemoved
			return tx.Delete(&Vote{}, "id = ?", existing.ID).Error
		default:
			result.Action = VoteChanged
			return tx.Model(&Vote{}).Where("id = ?", existing.ID).
				Updates(map[string]interface{}{"vote_type": voteType, "created_at": time.Now()}).Error
		}
	})
	if err != nil {
		return nil, err
	}

	if result.Action != VoteUnchanged {
		InvalidatePost(ctx, rclient, postID)
	}
	return result, nil
}

// GetUserVote returns the vote type userID holds on postID, or VoteNone.
func GetUserVote(ctx context.Context, db *gorm.DB, userID, postID uuid.UUID) (VoteType, error) {
	var v Vote
	err := db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VoteNone, nil
	}
	if err != nil {
		return "", utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to read vote")
	}
	return v.VoteType, nil
}

// CountUpvotesReceived counts the up votes on all posts authored by userID.
func CountUpvotesReceived(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Table("votes AS v").
		Joins("JOIN resource_posts p ON p.id = v.post_id").
		Where("p.user_id = ? AND v.vote_type = ?", userID, VoteUp).
		Count(&n).Error
	if err != nil {
		return 0, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count upvotes")
	}
	return n, nil
}
