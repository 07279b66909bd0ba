package v1

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/internal/auth"
	"github.com/mnuddindev/resourcebase/internal/metrics"
	posts "github.com/mnuddindev/resourcebase/internal/models/posts"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

// Vote casts, changes or clears the caller's vote on a post.
func (h *Handler) Vote(c *fiber.Ctx) error {
	type VoteRequest struct {
		VoteType string `json:"vote_type" validate:"required"`
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var vr VoteRequest
	if err := h.parse(c, &vr); err != nil {
		return utils.SendError(c, err)
	}
	vt, err := posts.ParseVoteType(vr.VoteType)
	if err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()
	userID := auth.CurrentUser(c)

	res, err := posts.CastVote(ctx, h.Redis, h.DB, userID, id, vt)
	if err != nil {
		return utils.SendError(c, err)
	}
	metrics.Votes.WithLabelValues(string(res.Action)).Inc()

	if res.Action == posts.VoteAdded || res.Action == posts.VoteChanged {
		h.afterVote(ctx, userID, res)
	}
	return utils.SendSuccess(c, res)
}

// afterVote notifies the owner and checks their upvote badges.
func (h *Handler) afterVote(ctx context.Context, voterID uuid.UUID, res *posts.VoteResult) {
	if h.Notifier != nil {
		if title, err := posts.GetPostTitle(ctx, h.DB, res.PostID); err == nil {
			if _, err := h.Notifier.VoteCast(context.WithoutCancel(ctx), voterID, res, title); err != nil {
				h.Logger.Warn(ctx).WithError(err).WithFields("post_id", res.PostID).Logs("Vote notification failed")
			}
		}
	}
	if res.VoteType == posts.VoteUp {
		h.background(ctx, func(ctx context.Context) {
			if n, err := posts.CountUpvotesReceived(ctx, h.DB, res.OwnerID); err == nil {
				h.awardBadges(ctx, res.OwnerID, user.BadgeUpvoted, n)
			}
		})
	}
}

// GetVote returns the caller's vote on a post.
func (h *Handler) GetVote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	vt, err := posts.GetUserVote(c.UserContext(), h.DB, auth.CurrentUser(c), id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, fiber.Map{"vote_type": vt})
}

// Bookmark toggles the caller's bookmark on a post.
func (h *Handler) Bookmark(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	action, err := posts.ToggleBookmark(c.UserContext(), h.Redis, h.DB, auth.CurrentUser(c), id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, fiber.Map{"action": action, "bookmarked": action == posts.BookmarkAdded})
}

// GetBookmark reports whether the caller bookmarked a post.
func (h *Handler) GetBookmark(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	ok, err := posts.IsBookmarked(c.UserContext(), h.DB, auth.CurrentUser(c), id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, fiber.Map{"bookmarked": ok})
}

// Comment appends a comment and tells the post owner.
func (h *Handler) Comment(c *fiber.Ctx) error {
	type CommentRequest struct {
		Comment string `json:"comment" validate:"required,min=1,max=2000"`
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var cr CommentRequest
	if err := h.parse(c, &cr); err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()

	comment, err := posts.AddComment(ctx, h.Redis, h.DB, auth.CurrentUser(c), id, cr.Comment)
	if err != nil {
		return utils.SendError(c, err)
	}

	if h.Notifier != nil {
		state, err := posts.GetPost(ctx, h.Redis, h.DB, id)
		if err == nil {
			_, err = h.Notifier.CommentAdded(context.WithoutCancel(ctx), comment, state.UserID, state.Title)
		}
		if err != nil {
			h.Logger.Warn(ctx).WithError(err).WithFields("post_id", id).Logs("Comment notification failed")
		}
	}
	return utils.Success(c).WithStatus(fiber.StatusCreated).WithMessage("Comment added").WithData(comment).Send()
}
