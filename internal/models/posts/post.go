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
)

// Post is a user-authored group of resources with tags and a category.
type Post struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string    `gorm:"size:200;not null;index:idx_post_title" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_post_user" json:"user_id"`
	CategoryID   *string   `gorm:"size:60;index:idx_post_category" json:"category_id"`
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	ViewCount    int       `gorm:"not null;default:0" json:"view_count"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_post_created" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Post) TableName() string { return "resource_posts" }

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NewPost is the input of CreatePost. A resource carrying an id references
// an existing resource instead of creating one; edits through other posts
// never change that row.
type NewPost struct {
	UserID      uuid.UUID
	Title       string
	Description string
	CategoryID  *string
	Resources   []Resource
	Tags        []string
}

type CreateResult struct {
	PostID        uuid.UUID `json:"id"`
	ResourceCount int       `json:"resource_count"`
}

// PostUpdate is an edit of a post. Nil fields keep their stored value; an
// empty CategoryID clears the category.
type PostUpdate struct {
	Title       *string
	Description *string
	CategoryID  *string
	Plan        Plan
}

// PostState is what an edit is reconciled against.
type PostState struct {
	UserID    uuid.UUID
	Resources []Resource
	Tags      []string
}

const postCacheTTL = 10 * time.Minute

func postKey(id uuid.UUID) string { return "post:" + id.String() }

func postVersionKey(id uuid.UUID) string { return "post:" + id.String() + ":v" }

// CreatePost inserts a post with its resources and tags in one transaction.
func CreatePost(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, in NewPost) (*CreateResult, error) {
	title := strings.TrimSpace(in.Title)
	if in.UserID == uuid.Nil || title == "" {
		return nil, utils.NewError(utils.ErrBadRequest.Code, "Required fields missing: user_id, title")
	}
	for _, r := range in.Resources {
		if r.ID != uuid.Nil {
			continue
		}
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.URL) == "" {
			return nil, utils.NewError(utils.ErrBadRequest.Code, "Every resource needs a name and url")
		}
	}

	post := &Post{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		UserID:      in.UserID,
		CategoryID:  normalizeCategory(in.CategoryID),
	}
	tags := NormalizeTags(in.Tags)

	var linked int64
	err := database.Transact(ctx, db, func(tx *gorm.DB) error {
		if err := checkCategory(tx, post.CategoryID); err != nil {
			return err
		}
		if err := tx.Create(post).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to create post")
		}
		for _, r := range in.Resources {
			var err error
			if r.ID != uuid.Nil {
				err = linkResource(tx, post.ID, r.ID)
			} else {
				err = attachResource(tx, post.ID, r)
			}
			if err != nil {
				return err
			}
		}
		for _, name := range tags {
			if err := attachTag(tx, post.ID, name); err != nil {
				return err
			}
		}
		if err := tx.Model(&PostResource{}).Where("post_id = ?", post.ID).Count(&linked).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count resources")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateResult{PostID: post.ID, ResourceCount: int(linked)}, nil
}

// LoadPostState reads the owner, resources and tags of a post.
func LoadPostState(ctx context.Context, db *gorm.DB, postID uuid.UUID) (*PostState, error) {
	owner, err := GetPostOwner(ctx, db, postID)
	if err != nil {
		return nil, err
	}
	resources, err := GetPostResources(ctx, db, postID)
	if err != nil {
		return nil, err
	}
	tags, err := GetPostTags(ctx, db, postID)
	if err != nil {
		return nil, err
	}
	return &PostState{UserID: owner, Resources: resources, Tags: tags}, nil
}

// EditPost applies field updates and a reconciliation plan in one
// transaction. Resources shared with other posts are copied before they are
// changed, so an edit never shows up on a post the editor does not own.
func EditPost(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, postID uuid.UUID, upd PostUpdate) error {
	if err := upd.Plan.Validate(); err != nil {
		return err
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return utils.NewError(utils.ErrBadRequest.Code, "Title cannot be empty")
	}

	err := database.Transact(ctx, db, func(tx *gorm.DB) error {
		var post Post
		if err := tx.Select("id").Where("id = ?", postID).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewError(utils.ErrNotFound.Code, "Post not found")
			}
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to load post")
		}

		fields := map[string]interface{}{}
		if upd.Title != nil {
			fields["title"] = strings.TrimSpace(*upd.Title)
		}
		if upd.Description != nil {
			fields["description"] = strings.TrimSpace(*upd.Description)
		}
		if upd.CategoryID != nil {
			cat := normalizeCategory(upd.CategoryID)
			if err := checkCategory(tx, cat); err != nil {
				return err
			}
			fields["category_id"] = cat
		}
		if len(fields) > 0 || !upd.Plan.Empty() {
			fields["updated_at"] = time.Now()
			if err := tx.Model(&Post{}).Where("id = ?", postID).Updates(fields).Error; err != nil {
				return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to update post")
			}
		}

		for _, r := range upd.Plan.Add {
			if err := attachResource(tx, postID, r); err != nil {
				return err
			}
		}

		for _, r := range upd.Plan.Update {
			if err := updateResource(tx, postID, r); err != nil {
				return err
			}
		}

		for _, id := range upd.Plan.Remove {
			if err := detachResource(tx, postID, id); err != nil {
				return err
			}
		}
		for _, name := range upd.Plan.AddTags {
			if err := attachTag(tx, postID, name); err != nil {
				return err
			}
		}
		for _, name := range upd.Plan.RemoveTags {
			if err := detachTag(tx, postID, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	InvalidatePost(ctx, rclient, postID)
	return nil
}

// GetPostOwner returns the author of a post.
func GetPostOwner(ctx context.Context, db *gorm.DB, postID uuid.UUID) (uuid.UUID, error) {
	var post Post
	err := db.WithContext(ctx).Select("id", "user_id").Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, utils.NewError(utils.ErrNotFound.Code, "Post not found")
	}
	if err != nil {
		return uuid.Nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to load post")
	}
	return post.UserID, nil
}

// GetPostTitle returns the title of a post.
func GetPostTitle(ctx context.Context, db *gorm.DB, postID uuid.UUID) (string, error) {
	var post Post
	err := db.WithContext(ctx).Select("id", "title").Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", utils.NewError(utils.ErrNotFound.Code, "Post not found")
	}
	if err != nil {
		return "", utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to load post")
	}
	return post.Title, nil
}

// CountUserPosts counts the posts authored by userID.
func CountUserPosts(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&Post{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count posts")
	}
	return n, nil
}

// InvalidatePost drops cached post reads and fences off fills that started
// before the call.
func InvalidatePost(ctx context.Context, rclient *storage.RedisClient, ids ...uuid.UUID) {
	if rclient == nil || len(ids) == 0 {
		return
	}
	keys := make(map[string]string, len(ids))
	for _, id := range ids {
		keys[postKey(id)] = postVersionKey(id)
	}
	_ = rclient.Invalidate(context.WithoutCancel(ctx), 2*postCacheTTL, keys)
}

func normalizeCategory(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}
