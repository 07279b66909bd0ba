// Package notify stores notifications and pushes them to live connections.
//
// Storage is the guarantee. The push is attempted once after the row
// commits; if the recipient has no live connection, or the push fails, the
// notification waits in the unread listing.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/internal/metrics"
	posts "github.com/mnuddindev/resourcebase/internal/models/posts"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	"github.com/sourcegraph/conc/pool"
	"gorm.io/gorm"
)

// EventNotification is the realtime event name for notification payloads.
const EventNotification = "notification"

// Pusher delivers an event to every live connection of a user and reports
// how many connections received it.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) (int, error)
}

type Notifier struct {
	db          *gorm.DB
	pusher      Pusher
	log         *logger.Logger
	fanoutLimit int
	workers     int
}

type Option func(*Notifier)

// WithFanoutLimit caps the recipients of a similar-resource fan-out.
func WithFanoutLimit(n int) Option {
	return func(nt *Notifier) {
		if n > 0 {
			nt.fanoutLimit = n
		}
	}
}

// WithWorkers bounds how many recipients are handled at once during a
// fan-out.
func WithWorkers(n int) Option {
	return func(nt *Notifier) {
		if n > 0 {
			nt.workers = n
		}
	}
}

func New(db *gorm.DB, pusher Pusher, log *logger.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		db:          db,
		pusher:      pusher,
		log:         log.Component("notify"),
		fanoutLimit: 50,
		workers:     8,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify stores an unread notification and then tries a realtime push.
func (n *Notifier) Notify(ctx context.Context, recipientID uuid.UUID, senderID *uuid.UUID, t user.NotificationType, content string, postID *uuid.UUID) (*user.Notification, error) {
	note, err := user.CreateNotification(ctx, n.db, recipientID, senderID, t, content, postID)
	if err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(t)).Inc()

	n.deliver(ctx, note)
	return note, nil
}

// deliver pushes the joined view of note. Errors are logged and dropped.
func (n *Notifier) deliver(ctx context.Context, note *user.Notification) {
	if n.pusher == nil {
		metrics.NotificationPushes.WithLabelValues("skipped").Inc()
		return
	}

	view, err := user.GetNotificationView(ctx, n.db, note.ID)
	if err != nil {
		metrics.NotificationPushes.WithLabelValues("failed").Inc()
		n.log.Warn(ctx).WithError(err).WithFields("notification_id", note.ID).Logs("Failed to load notification for push")
		return
	}

	delivered, err := n.pusher.Push(ctx, note.RecipientID, EventNotification, view)
	switch {
	case err != nil:
		metrics.NotificationPushes.WithLabelValues("failed").Inc()
		n.log.Warn(ctx).WithError(err).WithFields("recipient_id", note.RecipientID).Logs("Realtime push failed")
	case delivered == 0:
		metrics.NotificationPushes.WithLabelValues("skipped").Inc()
		n.log.Debug(ctx).WithFields("recipient_id", note.RecipientID).Logs("Recipient offline, notification kept for later")
	default:
		metrics.NotificationPushes.WithLabelValues("delivered").Inc()
		n.log.Debug(ctx).WithFields("recipient_id", note.RecipientID, "connections", delivered).Logs("Notification pushed")
	}
}

// VoteCast tells the post owner about a vote by someone else. Removed or
// unchanged votes and votes on one's own post notify nobody.
func (n *Notifier) VoteCast(ctx context.Context, voterID uuid.UUID, res *posts.VoteResult, postTitle string) (*user.Notification, error) {
	if res == nil || res.OwnerID == voterID {
		return nil, nil
	}
	var verb string
	switch res.Action {
	case posts.VoteAdded:
		verb = "upvoted"
		if res.VoteType == posts.VoteDown {
			verb = "downvoted"
		}
	case posts.VoteChanged:
		verb = "changed their vote on"
	default:
		return nil, nil
	}
	content := fmt.Sprintf("Someone %s your resource %q", verb, postTitle)
	return n.Notify(ctx, res.OwnerID, &voterID, user.NotifyVote, content, &res.PostID)
}

// CommentAdded tells the post owner about a comment by someone else.
func (n *Notifier) CommentAdded(ctx context.Context, comment *posts.Comment, ownerID uuid.UUID, postTitle string) (*user.Notification, error) {
	if comment == nil || ownerID == comment.UserID {
		return nil, nil
	}
	content := fmt.Sprintf("Someone commented on your resource %q - %q", postTitle, excerpt(comment.Comment, 80))
	return n.Notify(ctx, ownerID, &comment.UserID, user.NotifyComment, content, &comment.PostID)
}

// ResourceUpdated tells every bookmarker of the post, except the editor, that
// it changed.
func (n *Notifier) ResourceUpdated(ctx context.Context, postID, editorID uuid.UUID, postTitle string) (int, error) {
	bookmarkers, err := posts.Bookmarkers(ctx, n.db, postID)
	if err != nil {
		return 0, err
	}
	recipients := make([]uuid.UUID, 0, len(bookmarkers))
	for _, id := range bookmarkers {
		if id != editorID {
			recipients = append(recipients, id)
		}
	}
	content := fmt.Sprintf("A resource you bookmarked %q has been updated", postTitle)
	return n.fanout(ctx, recipients, &editorID, user.NotifyResourceUpdate, content, &postID)
}

// SimilarResource tells users interested in any of tags about a new post.
// The creator never hears about their own post and the audience is capped.
func (n *Notifier) SimilarResource(ctx context.Context, postID, creatorID uuid.UUID, creatorName, postTitle string, tags []string) (int, error) {
	recipients, err := posts.InterestedUsers(ctx, n.db, postID, creatorID, tags, n.fanoutLimit)
	if err != nil {
		return 0, err
	}
	content := fmt.Sprintf("%s shared a resource %q that matches your interests", creatorName, postTitle)
	return n.fanout(ctx, recipients, &creatorID, user.NotifySimilarResource, content, &postID)
}

// fanout notifies recipients through a bounded pool. A failed recipient is
// logged and does not stop the others. It returns how many were stored.
func (n *Notifier) fanout(ctx context.Context, recipients []uuid.UUID, senderID *uuid.UUID, t user.NotificationType, content string, postID *uuid.UUID) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}

	results := make([]bool, len(recipients))
	p := pool.New().WithMaxGoroutines(n.workers).WithContext(ctx)
	for i, rid := range recipients {
		p.Go(func(ctx context.Context) error {
			if _, err := n.Notify(ctx, rid, senderID, t, content, postID); err != nil {
				n.log.Warn(ctx).WithError(err).WithFields("recipient_id", rid, "type", t).Logs("Failed to create notification")
				return nil
			}
			results[i] = true
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return 0, err
	}

	stored := 0
	for _, ok := range results {
		if ok {
			stored++
		}
	}
	return stored, nil
}

func excerpt(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
