package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	database "github.com/mnuddindev/resourcebase/internal/db"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

// NewsletterSubscriber is an email on the newsletter list. Subscribers do not
// need an account.
type NewsletterSubscriber struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"size:100;not null;uniqueIndex:idx_newsletter_email" json:"email"`
	SubscribedAt time.Time `gorm:"autoCreateTime" json:"subscribed_at"`
}

func (s *NewsletterSubscriber) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Subscribe adds email to the newsletter. An address already on the list is
// a conflict.
func Subscribe(ctx context.Context, db *gorm.DB, email string) (*NewsletterSubscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, utils.NewError(utils.ErrBadRequest.Code, "Email is required")
	}

	sub := &NewsletterSubscriber{Email: email}
	if err := db.WithContext(ctx).Create(sub).Error; err != nil {
		err = database.AsWriteError(err, "Failed to subscribe to newsletter")
		if utils.IsCode(err, utils.ErrConflict.Code) {
			return nil, utils.NewError(utils.ErrConflict.Code, "Email already subscribed")
		}
		return nil, err
	}
	return sub, nil
}
