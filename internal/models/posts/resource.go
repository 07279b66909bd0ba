package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resource is one link inside a post. A resource can be referenced by several
// posts and is deleted once nothing references it.
type Resource struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:200;not null" json:"name" validate:"required,max=200"`
	URL          string    `gorm:"size:2048;not null" json:"url" validate:"required,url,max=2048"`
	Description  string    `gorm:"type:text" json:"description" validate:"omitempty,max=2000"`
	ThumbnailURL string    `gorm:"size:2048" json:"thumbnail_url" validate:"omitempty,max=2048"`
	FaviconURL   string    `gorm:"size:2048" json:"favicon_url" validate:"omitempty,max=2048"`
	SiteName     string    `gorm:"size:200" json:"site_name" validate:"omitempty,max=200"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// PostResource joins posts to resources.
type PostResource struct {
	PostID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResourceID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_post_resource_resource"`
}

// GetPostResources returns the resources of a post in insertion order.
func GetPostResources(ctx context.Context, db *gorm.DB, postID uuid.UUID) ([]Resource, error) {
	var res []Resource
	err := db.WithContext(ctx).
		Table("resources AS r").
		Select("r.*").
		Joins("JOIN post_resources pr ON pr.resource_id = r.id").
		Where("pr.post_id = ?", postID).
		Order("r.created_at ASC, r.id ASC").
		Find(&res).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch resources")
	}
	return res, nil
}

// attachResource inserts r as a new resource linked to postID.
func attachResource(tx *gorm.DB, postID uuid.UUID, r Resource) error {
	r.ID = uuid.Nil
	if err := tx.Create(&r).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to create resource")
	}
	if err := tx.Create(&PostResource{PostID: postID, ResourceID: r.ID}).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to link resource")
	}
	return nil
}

// updateResource writes the merged fields of r for postID. A row that other
// posts also reference is left untouched: postID gets a fresh copy carrying
// the new values and its join row moves to the copy.
func updateResource(tx *gorm.DB, postID uuid.UUID, r Resource) error {
	var others int64
	err := tx.Model(&PostResource{}).
		Where("resource_id = ? AND post_id <> ?", r.ID, postID).
		Count(&others).Error
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count resource references")
	}

	if others > 0 {
		old := r.ID
		r.ID = uuid.Nil
		if err := tx.Create(&r).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to copy resource")
		}
		if err := tx.Where("post_id = ? AND resource_id = ?", postID, old).Delete(&PostResource{}).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to unlink resource")
		}
		if err := tx.Create(&PostResource{PostID: postID, ResourceID: r.ID}).Error; err != nil {
			return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to link resource")
		}
		return nil
	}

	err = tx.Model(&Resource{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
		"name":          r.Name,
		"url":           r.URL,
		"description":   r.Description,
		"thumbnail_url": r.ThumbnailURL,
		"favicon_url":   r.FaviconURL,
		"site_name":     r.SiteName,
	}).Error
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to update resource")
	}
	return nil
}

// detachResource unlinks a resource from postID and deletes it when no post
// references it anymore.
func detachResource(tx *gorm.DB, postID, resourceID uuid.UUID) error {
	if err := tx.Where("post_id = ? AND resource_id = ?", postID, resourceID).Delete(&PostResource{}).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to unlink resource")
	}

	var refs int64
	if err := tx.Model(&PostResource{}).Where("resource_id = ?", resourceID).Count(&refs).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count resource references")
	}
	if refs > 0 {
		return nil
	}
	if err := tx.Where("id = ?", resourceID).Delete(&Resource{}).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to delete orphaned resource")
	}
	return nil
}

// linkResource references an existing resource from postID.
func linkResource(tx *gorm.DB, postID, resourceID uuid.UUID) error {
	var n int64
	if err := tx.Model(&Resource{}).Where("id = ?", resourceID).Count(&n).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to look up resource")
	}
	if n == 0 {
		return utils.NewError(utils.ErrBadRequest.Code, "Unknown resource", resourceID.String())
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&PostResource{PostID: postID, ResourceID: resourceID}).Error
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to link resource")
	}
	return nil
}
