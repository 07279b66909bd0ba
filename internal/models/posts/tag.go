package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tag names are stored normalized (see NormalizeTags). A tag without posts
// is deleted in the transaction that unlinks it.
type Tag struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex:idx_tag_name" json:"name" validate:"required,max=50,tagname"`
	Slug      string    `gorm:"size:60;not null;index:idx_tag_slug" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Slug == "" {
		t.Slug = slug.Make(t.Name)
	}
	return nil
}

type PostTag struct {
	PostID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TagID  uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_post_tag_tag"`
}

// TagCount is a tag with the number of posts carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int64  `gorm:"column:post_count" json:"count"`
}

// GetPostTags returns the tag names of a post sorted by name.
func GetPostTags(ctx context.Context, db *gorm.DB, postID uuid.UUID) ([]string, error) {
	names := []string{}
	err := db.WithContext(ctx).
		Table("tags AS t").
		Joins("JOIN post_tags pt ON pt.tag_id = t.id").
		Where("pt.post_id = ?", postID).
		Order("t.name ASC").
		Pluck("t.name", &names).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch tags")
	}
	return names, nil
}

// tagsByPost maps each of postIDs to its tag names.
func tagsByPost(ctx context.Context, db *gorm.DB, postIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PostID uuid.UUID
		Name   string
	}
	err := db.WithContext(ctx).
		Table("post_tags AS pt").
		Select("pt.post_id, t.name").
		Joins("JOIN tags t ON t.id = pt.tag_id").
		Where("pt.post_id IN ?", postIDs).
		Order("t.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch tags")
	}
	for _, r := range rows {
		out[r.PostID] = append(out[r.PostID], r.Name)
	}
	return out, nil
}

// attachTag links postID to the tag called name, creating the tag if needed.
func attachTag(tx *gorm.DB, postID uuid.UUID, name string) error {
	var tag Tag
	err := tx.Where("name = ?", name).First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tag = Tag{Name: name}
		err = tx.Create(&tag).Error
	}
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to resolve tag")
	}

	err = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&PostTag{PostID: postID, TagID: tag.ID}).Error
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to link tag")
	}
	return nil
}

// detachTag unlinks the named tag from postID and deletes the tag once no
// post carries it.
func detachTag(tx *gorm.DB, postID uuid.UUID, name string) error {
	var tag Tag
	err := tx.Where("name = ?", name).First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to resolve tag")
	}

	if err := tx.Where("post_id = ? AND tag_id = ?", postID, tag.ID).Delete(&PostTag{}).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to unlink tag")
	}

	var refs int64
	if err := tx.Model(&PostTag{}).Where("tag_id = ?", tag.ID).Count(&refs).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count tag references")
	}
	if refs > 0 {
		return nil
	}
	if err := tx.Delete(&Tag{}, "id = ?", tag.ID).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to delete orphaned tag")
	}
	return nil
}

// PopularTags returns the most used tags. Results are cached for a minute.
func PopularTags(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, limit int) ([]TagCount, error) {
	key := "tags:popular:" + strconv.Itoa(limit)
	var tags []TagCount
	if rclient != nil {
		if err := rclient.GetJSON(ctx, key, &tags); err == nil {
			return tags, nil
		}
	}

	tags = []TagCount{}
	err := db.WithContext(ctx).
		Table("tags AS t").
		Select("t.name, t.slug, COUNT(pt.post_id) AS post_count").
		Joins("JOIN post_tags pt ON pt.tag_id = t.id").
		Group("t.id, t.name, t.slug").
		Order("post_count DESC, t.name ASC").
		Limit(limit).
		Scan(&tags).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch popular tags")
	}

	if rclient != nil {
		_ = rclient.SetJSON(ctx, key, tags, time.Minute)
	}
	return tags, nil
}
