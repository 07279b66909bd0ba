package models

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

// PostSummary is the list form of a post.
type PostSummary struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"author_username"`
	CategoryID    *string   `json:"category_id"`
	CommentCount  int       `json:"comment_count"`
	ViewCount     int       `json:"view_count"`
	VoteCount     int64     `json:"vote_count"`
	BookmarkCount int64     `json:"bookmark_count"`
	CreatedAt     time.Time `json:"created_at"`
	Tags          []string  `gorm:"-" json:"tags"`
}

// PostDetail is the full read model of one post.
type PostDetail struct {
	PostSummary
	CategoryName *string    `json:"category_name"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Resources    []Resource `gorm:"-" json:"resources"`
}

const counterColumns = `p.comment_count, p.view_count,
	COALESCE((SELECT SUM(CASE WHEN v.vote_type = 'up' THEN 1 WHEN v.vote_type = 'down' THEN -1 ELSE 0 END)
		FROM votes v WHERE v.post_id = p.id), 0) AS vote_count,
	(SELECT COUNT(*) FROM bookmarks b WHERE b.post_id = p.id) AS bookmark_count`

const summaryColumns = `p.id, p.title, p.description, p.user_id, u.username, p.category_id, p.created_at, ` + counterColumns

type postCounters struct {
	CommentCount  int
	ViewCount     int
	VoteCount     int64
	BookmarkCount int64
}

var sortOrders = map[string]string{
	"newest":    "p.created_at DESC",
	"votes":     "vote_count DESC, p.created_at DESC",
	"bookmarks": "bookmark_count DESC, p.created_at DESC",
	"comments":  "p.comment_count DESC, p.created_at DESC",
}

// GetPost returns the aggregated read model of a post. Cached copies are
// served with live counters.
func GetPost(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, postID uuid.UUID) (*PostDetail, error) {
	var detail PostDetail
	var version int64
	if rclient != nil {
		if err := rclient.GetJSON(ctx, postKey(postID), &detail); err == nil {
			if ok, err := refreshCounters(ctx, db, postID, &detail); err != nil {
				return nil, err
			} else if ok {
				return &detail, nil
			}
			detail = PostDetail{}
		}
		version, _ = rclient.Version(ctx, postVersionKey(postID))
	}

	res := db.WithContext(ctx).
		Table("resource_posts AS p").
		Select(summaryColumns+", c.name AS category_name, p.updated_at").
		Joins("JOIN users u ON u.id = p.user_id").
		Joins("LEFT JOIN categories c ON c.id = p.category_id").
		Where("p.id = ?", postID).
		Limit(1).
		Scan(&detail)
	if res.Error != nil {
		return nil, utils.WrapError(res.Error, utils.ErrInternalServerError.Code, "Failed to fetch post")
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewError(utils.ErrNotFound.Code, "Post not found")
	}

	resources, err := GetPostResources(ctx, db, postID)
	if err != nil {
		return nil, err
	}
	tags, err := GetPostTags(ctx, db, postID)
	if err != nil {
		return nil, err
	}
	detail.Resources = resources
	detail.Tags = tags

	if rclient != nil {
		_ = rclient.SetJSONAt(ctx, postKey(postID), postVersionKey(postID), version, &detail, postCacheTTL)
	}
	return &detail, nil
}

// refreshCounters overwrites the counters of a cached detail with stored
// values. It reports false when the post no longer exists.
func refreshCounters(ctx context.Context, db *gorm.DB, postID uuid.UUID, detail *PostDetail) (bool, error) {
	var live postCounters
	res := db.WithContext(ctx).
		Table("resource_posts AS p").
		Select(counterColumns).
		Where("p.id = ?", postID).
		Limit(1).
		Scan(&live)
	if res.Error != nil {
		return false, utils.WrapError(res.Error, utils.ErrInternalServerError.Code, "Failed to fetch post counters")
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	detail.CommentCount = live.CommentCount
	detail.ViewCount = live.ViewCount
	detail.VoteCount = live.VoteCount
	detail.BookmarkCount = live.BookmarkCount
	return true, nil
}

// ListPosts pages through posts. sortBy is one of newest, votes, bookmarks
// or comments; anything else sorts by newest.
func ListPosts(ctx context.Context, db *gorm.DB, sortBy string, limit, offset int) ([]PostSummary, error) {
	order, ok := sortOrders[sortBy]
	if !ok {
		order = sortOrders["newest"]
	}
	return listSummaries(ctx, db.WithContext(ctx).Order(order).Limit(limit).Offset(offset))
}

// ListUserPosts pages through the posts of one author, newest first.
func ListUserPosts(ctx context.Context, db *gorm.DB, userID uuid.UUID, limit, offset int) ([]PostSummary, error) {
	q := db.WithContext(ctx).Where("p.user_id = ?", userID).Order(sortOrders["newest"]).Limit(limit).Offset(offset)
	return listSummaries(ctx, q)
}

// SearchPosts matches term against titles, descriptions and tag names,
// ignoring case.
func SearchPosts(ctx context.Context, db *gorm.DB, term string, limit int) ([]PostSummary, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, utils.NewError(utils.ErrBadRequest.Code, "Search term is required")
	}
	pattern := "%" + escapeLike(term) + "%"

	q := db.WithContext(ctx).
		Where(`LOWER(p.title) LIKE ? ESCAPE '\' OR LOWER(p.description) LIKE ? ESCAPE '\' OR EXISTS (
			SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.name LIKE ? ESCAPE '\')`, pattern, pattern, pattern).
		Order(sortOrders["newest"]).
		Limit(limit)
	return listSummaries(ctx, q)
}

// FindPostsByURL returns up to five posts linking rawURL or another page on
// the same host.
func FindPostsByURL(ctx context.Context, db *gorm.DB, rawURL string) ([]PostSummary, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, utils.NewError(utils.ErrBadRequest.Code, "url is required")
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	q := db.WithContext(ctx).
		Where(`EXISTS (
			SELECT 1 FROM post_resources pr JOIN resources r ON r.id = pr.resource_id
			WHERE pr.post_id = p.id AND (r.url = ? OR r.url LIKE ? ESCAPE '\'))`, rawURL, "%"+escapeLike(host)+"%").
		Order(sortOrders["newest"]).
		Limit(5)
	return listSummaries(ctx, q)
}

func listSummaries(ctx context.Context, q *gorm.DB) ([]PostSummary, error) {
	posts := []PostSummary{}
	err := q.Table("resource_posts AS p").
		Select(summaryColumns).
		Joins("JOIN users u ON u.id = p.user_id").
		Scan(&posts).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch posts")
	}

	ids := make([]uuid.UUID, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	tags, err := tagsByPost(ctx, q.Session(&gorm.Session{NewDB: true}), ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Tags = tags[posts[i].ID]
		if posts[i].Tags == nil {
			posts[i].Tags = []string{}
		}
	}
	return posts, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CheckOwner returns a forbidden error unless userID authored postID.
func CheckOwner(ctx context.Context, db *gorm.DB, postID, userID uuid.UUID) error {
	owner, err := GetPostOwner(ctx, db, postID)
	if err != nil {
		return err
	}
	if owner != userID {
		return utils.NewError(utils.ErrForbidden.Code, "Only the author can modify this post")
	}
	return nil
}
