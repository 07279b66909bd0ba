package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotifyVote            NotificationType = "VOTE"
	NotifyComment         NotificationType = "COMMENT"
	NotifyResourceUpdate  NotificationType = "RESOURCE_UPDATE"
	NotifySimilarResource NotificationType = "SIMILAR_RESOURCE"
)

// Notification is created unread and can only move to read.
type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID        `gorm:"type:uuid;not null;index:idx_notification_recipient" json:"recipient_id"`
	SenderID    *uuid.UUID       `gorm:"type:uuid" json:"sender_id"`
	Type        NotificationType `gorm:"size:30;not null" json:"type"`
	Content     string           `gorm:"size:500;not null" json:"content"`
	PostID      *uuid.UUID       `gorm:"type:uuid" json:"post_id"`
	IsRead      bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt   time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// NotificationView is a notification joined with its sender and post.
type NotificationView struct {
	Notification
	SenderUsername *string `json:"sender_username"`
	SenderPhoto    *string `json:"sender_photo"`
	PostTitle      *string `json:"post_title"`
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Items       []NotificationView `json:"notifications"`
	UnreadCount int64              `json:"unread_count"`
}

// CreateNotification inserts an unread notification.
func CreateNotification(ctx context.Context, db *gorm.DB, recipientID uuid.UUID, senderID *uuid.UUID, t NotificationType, content string, postID *uuid.UUID) (*Notification, error) {
	if recipientID == uuid.Nil {
		return nil, utils.NewError(utils.ErrBadRequest.Code, "Notification recipient is required")
	}
	n := &Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        t,
		Content:     content,
		PostID:      postID,
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to create notification")
	}
	return n, nil
}

func notificationViews(db *gorm.DB) *gorm.DB {
	return db.Table("notifications AS n").
		Select("n.*, s.username AS sender_username, s.photo AS sender_photo, p.title AS post_title").
		Joins("LEFT JOIN users s ON s.id = n.sender_id").
		Joins("LEFT JOIN resource_posts p ON p.id = n.post_id")
}

// GetNotificationView loads one notification with its joined fields.
func GetNotificationView(ctx context.Context, db *gorm.DB, id uuid.UUID) (*NotificationView, error) {
	var v NotificationView
	res := notificationViews(db.WithContext(ctx)).Where("n.id = ?", id).Limit(1).Scan(&v)
	if res.Error != nil {
		return nil, utils.WrapError(res.Error, utils.ErrInternalServerError.Code, "Failed to fetch notification")
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewError(utils.ErrNotFound.Code, "Notification not found")
	}
	return &v, nil
}

// ListNotifications pages through a user's notifications, newest first.
// Read notifications are included only when includeRead is set. The unread
// count always covers every unread notification.
func ListNotifications(ctx context.Context, db *gorm.DB, userID uuid.UUID, limit, offset int, includeRead bool) (*NotificationPage, error) {
	page := &NotificationPage{Items: []NotificationView{}}

	q := notificationViews(db.WithContext(ctx)).Where("n.recipient_id = ?", userID)
	if !includeRead {
		q = q.Where("n.is_read = ?", false)
	}
	err := q.Order("n.created_at DESC").Limit(limit).Offset(offset).Scan(&page.Items).Error
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch notifications")
	}

	if err := db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&page.UnreadCount).Error; err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to count notifications")
	}
	return page, nil
}

// MarkAsRead marks one notification of userID as read. Unknown ids and
// notifications of other users are not found.
func MarkAsRead(ctx context.Context, db *gorm.DB, id, userID uuid.UUID) error {
	var n int64
	err := db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Count(&n).Error
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to fetch notification")
	}
	if n == 0 {
		return utils.NewError(utils.ErrNotFound.Code, "Notification not found")
	}

	err = db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Update("is_read", true).Error
	if err != nil {
		return utils.WrapError(err, utils.ErrInternalServerError.Code, "Failed to update notification")
	}
	return nil
}

// MarkAllAsRead marks every unread notification of userID as read and
// returns how many changed.
func MarkAllAsRead(ctx context.Context, db *gorm.DB, userID uuid.UUID) (int64, error) {
	res := db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, utils.WrapError(res.Error, utils.ErrInternalServerError.Code, "Failed to update notifications")
	}
	return res.RowsAffected, nil
}
