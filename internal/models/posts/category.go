package models

import (
	"context"
	"time"

	"github.com/gosimple/slug"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Category struct {
	ID          string `gorm:"size:60;primaryKey" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = slug.Make(c.Name)
	}
	return nil
}

// DefaultCategories is the set seeded into an empty categories table.
var DefaultCategories = []Category{
	{ID: "frontend", Name: "Frontend Development", Description: "Resources for frontend technologies"},
	{ID: "backend", Name: "Backend Development", Description: "Server-side programming and APIs"},
	{ID: "devops", Name: "DevOps", Description: "Deployment, CI/CD, and infrastructure"},
	{ID: "mobile", Name: "Mobile Development", Description: "iOS, Android and cross-platform apps"},
	{ID: "design", Name: "UI/UX Design", Description: "User interface and experience design"},
	{ID: "database", Name: "Database", Description: "SQL, NoSQL and data management"},
	{ID: "security", Name: "Security", Description: "Web security and best practices"},
	{ID: "career", Name: "Career", Description: "Professional development for developers"},
}

const categoriesKey = "categories:all"

// SeedCategories inserts the default categories, skipping ids that exist.
func SeedCategories(ctx context.Context, db *gorm.DB) error {
	cats := make([]Category, len(DefaultCategories))
	copy(cats, DefaultCategories)
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cats).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to seed categories")
	}
	return nil
}

// ListCategories returns the categories by name. An empty table yields the
// defaults so clients always have something to choose from.
func ListCategories(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB) ([]Category, error) {
	var cats []Category
	if rclient != nil {
		if err := rclient.GetJSON(ctx, categoriesKey, &cats); err == nil {
			return cats, nil
		}
	}

	if err := db.WithContext(ctx).Order("name ASC").Find(&cats).Error; err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch categories")
	}
	if len(cats) == 0 {
		return DefaultCategories, nil
	}

	if rclient != nil {
		_ = rclient.SetJSON(ctx, categoriesKey, cats, time.Hour)
	}
	return cats, nil
}

// checkCategory rejects references to unknown categories.
func checkCategory(tx *gorm.DB, id *string) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&Category{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to check category")
	}
	if n == 0 {
		return utils.NewError(utils.ErrBadRequest.Code, "Unknown category", *id)
	}
	return nil
}
