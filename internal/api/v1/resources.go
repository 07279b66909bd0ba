package v1

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/internal/auth"
	posts "github.com/mnuddindev/resourcebase/internal/models/posts"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

// resourceRequest is a resource in a create payload. Every one becomes a new
// row.
type resourceRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	URL          string `json:"url" validate:"required,url,max=2048"`
	Description  string `json:"description" validate:"max=2000"`
	ThumbnailURL string `json:"thumbnail_url" validate:"max=2048"`
	FaviconURL   string `json:"favicon_url" validate:"max=2048"`
	SiteName     string `json:"site_name" validate:"max=200"`
}

func (r resourceRequest) model() posts.Resource {
	return posts.Resource{
		Name:         r.Name,
		URL:          r.URL,
		Description:  r.Description,
		ThumbnailURL: r.ThumbnailURL,
		FaviconURL:   r.FaviconURL,
		SiteName:     r.SiteName,
	}
}

// ListResources pages through posts in the requested order.
func (h *Handler) ListResources(c *fiber.Ctx) error {
	limit, offset := utils.Pagination(c, 20, 100)
	list, err := posts.ListPosts(c.UserContext(), h.DB, c.Query("sortBy", "newest"), limit, offset)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, list)
}

// SearchResources matches a term against titles, descriptions and tags.
func (h *Handler) SearchResources(c *fiber.Ctx) error {
	limit, _ := utils.Pagination(c, 20, 50)
	list, err := posts.SearchPosts(c.UserContext(), h.DB, c.Query("q"), limit)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, list)
}

// PopularTags returns the most used tags.
func (h *Handler) PopularTags(c *fiber.Ctx) error {
	limit, _ := utils.Pagination(c, 20, 100)
	tags, err := posts.PopularTags(c.UserContext(), h.Redis, h.DB, limit)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, tags)
}

// Categories lists the post categories.
func (h *Handler) Categories(c *fiber.Ctx) error {
	cats, err := posts.ListCategories(c.UserContext(), h.Redis, h.DB)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, cats)
}

// SimilarResources finds posts that already link a URL or its host.
func (h *Handler) SimilarResources(c *fiber.Ctx) error {
	list, err := posts.FindPostsByURL(c.UserContext(), h.DB, c.Query("url"))
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, list)
}

// GetResource returns one post and records the view.
func (h *Handler) GetResource(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()

	post, err := posts.GetPost(ctx, h.Redis, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}

	var viewer *uuid.UUID
	if uid := auth.CurrentUser(c); uid != uuid.Nil {
		viewer = &uid
	}
	if _, err := posts.RecordView(ctx, h.DB, id, viewer); err != nil {
		h.Logger.Warn(ctx).WithError(err).WithFields("post_id", id).Logs("Failed to record view")
	}
	return utils.SendSuccess(c, post)
}

// CreateResource stores a post with its resources and tags. Badge checks and
// the similar-resource fan-out run after the response.
func (h *Handler) CreateResource(c *fiber.Ctx) error {
	type CreateRequest struct {
		Title       string            `json:"title" validate:"required,min=1,max=200"`
		Description string            `json:"description" validate:"max=5000"`
		CategoryID  *string           `json:"category_id" validate:"omitempty,max=60"`
		Resources   []resourceRequest `json:"resources" validate:"required,min=1,max=50,dive"`
		Tags        []string          `json:"tags" validate:"max=20,dive,min=1,max=50,tagname"`
	}
	var cr CreateRequest
	if err := h.parse(c, &cr); err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()
	userID := auth.CurrentUser(c)

	resources := make([]posts.Resource, 0, len(cr.Resources))
	for _, r := range cr.Resources {
		resources = append(resources, r.model())
	}

	res, err := posts.CreatePost(ctx, h.Redis, h.DB, posts.NewPost{
		UserID:      userID,
		Title:       cr.Title,
		Description: cr.Description,
		CategoryID:  cr.CategoryID,
		Resources:   resources,
		Tags:        cr.Tags,
	})
	if err != nil {
		return utils.SendError(c, err)
	}
	h.Logger.Info(ctx).WithFields("post_id", res.PostID, "user_id", userID).Logs("Resource post created")

	username, _ := c.Locals(auth.LocalUsername).(string)
	tags := posts.NormalizeTags(cr.Tags)
	h.background(ctx, func(ctx context.Context) {
		if n, err := posts.CountUserPosts(ctx, h.DB, userID); err == nil {
			h.awardBadges(ctx, userID, user.BadgeResourceCreator, n)
		}
		if h.Notifier == nil {
			return
		}
		sent, err := h.Notifier.SimilarResource(ctx, res.PostID, userID, username, cr.Title, tags)
		if err != nil {
			h.Logger.Warn(ctx).WithError(err).WithFields("post_id", res.PostID).Logs("Similar resource fan-out failed")
			return
		}
		h.Logger.Debug(ctx).WithFields("post_id", res.PostID, "recipients", sent).Logs("Similar resource fan-out done")
	})

	return utils.Success(c).WithStatus(fiber.StatusCreated).WithMessage("Resource created").WithData(res).Send()
}

// UpdateResource edits a post. Only the author may edit. Bookmarkers are
// told about the change after the response.
func (h *Handler) UpdateResource(c *fiber.Ctx) error {
	type UpdateRequest struct {
		Title       *string                `json:"title" validate:"omitempty,min=1,max=200"`
		Description *string                `json:"description" validate:"omitempty,max=5000"`
		CategoryID  *string                `json:"category_id" validate:"omitempty,max=60"`
		Resources   *[]posts.ResourceInput `json:"resources" validate:"omitempty,max=50,dive"`
		Tags        *[]string              `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50,tagname"`
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var ur UpdateRequest
	if err := h.parse(c, &ur); err != nil {
		return utils.SendError(c, err)
	}
	ctx := c.UserContext()
	userID := auth.CurrentUser(c)

	if err := posts.CheckOwner(ctx, h.DB, id, userID); err != nil {
		return utils.SendError(c, err)
	}
	state, err := posts.LoadPostState(ctx, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}

	plan := posts.Reconcile(state.Resources, state.Tags, ur.Resources, ur.Tags)
	if err := plan.Validate(); err != nil {
		return utils.SendError(c, err)
	}
	if err := posts.EditPost(ctx, h.Redis, h.DB, id, posts.PostUpdate{
		Title:       ur.Title,
		Description: ur.Description,
		CategoryID:  ur.CategoryID,
		Plan:        plan,
	}); err != nil {
		return utils.SendError(c, err)
	}
	h.Logger.Info(ctx).WithFields("post_id", id, "added", len(plan.Add), "updated", len(plan.Update), "removed", len(plan.Remove)).Logs("Resource post updated")

	if h.Notifier != nil {
		h.background(ctx, func(ctx context.Context) {
			title, err := posts.GetPostTitle(ctx, h.DB, id)
			if err != nil {
				return
			}
			if _, err := h.Notifier.ResourceUpdated(ctx, id, userID, title); err != nil {
				h.Logger.Warn(ctx).WithError(err).WithFields("post_id", id).Logs("Update fan-out failed")
			}
		})
	}

	post, err := posts.GetPost(ctx, h.Redis, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.Success(c).WithMessage("Resource updated").WithData(post).Send()
}

// ListComments pages through the comments of a post, newest first.
func (h *Handler) ListComments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	limit, offset := utils.Pagination(c, 50, 200)
	ctx := c.UserContext()

	comments, err := posts.ListComments(ctx, h.DB, id, limit, offset)
	if err != nil {
		return utils.SendError(c, err)
	}
	total, err := posts.CountComments(ctx, h.DB, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	c.Set("X-Total-Count", strconv.FormatInt(total, 10))
	return utils.SendSuccess(c, comments)
}
