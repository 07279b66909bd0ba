package models_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/internal/testutil"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationLifecycle(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")

	n1, err := user.CreateNotification(ctx, gdb, alice.ID, &bob.ID, user.NotifyComment, "bob commented", nil)
	require.NoError(t, err)
	assert.False(t, n1.IsRead)
	_, err = user.CreateNotification(ctx, gdb, alice.ID, nil, user.NotifySimilarResource, "new post", nil)
	require.NoError(t, err)

	view, err := user.GetNotificationView(ctx, gdb, n1.ID)
	require.NoError(t, err)
	require.NotNil(t, view.SenderUsername)
	assert.Equal(t, bob.Username, *view.SenderUsername)
	assert.Nil(t, view.PostTitle)

	page, err := user.ListNotifications(ctx, gdb, alice.ID, 10, 0, false)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.UnreadCount)

	// Only the recipient can mark it read.
	err = user.MarkAsRead(ctx, gdb, n1.ID, bob.ID)
	assert.True(t, utils.IsCode(err, utils.ErrNotFound.Code))
	err = user.MarkAsRead(ctx, gdb, uuid.New(), alice.ID)
	assert.True(t, utils.IsCode(err, utils.ErrNotFound.Code))

	require.NoError(t, user.MarkAsRead(ctx, gdb, n1.ID, alice.ID))
	require.NoError(t, user.MarkAsRead(ctx, gdb, n1.ID, alice.ID))

	page, err = user.ListNotifications(ctx, gdb, alice.ID, 10, 0, false)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.UnreadCount)

	all, err := user.ListNotifications(ctx, gdb, alice.ID, 10, 0, true)
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	changed, err := user.MarkAllAsRead(ctx, gdb, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	page, err = user.ListNotifications(ctx, gdb, alice.ID, 10, 0, false)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.UnreadCount)
}

func TestCreateNotificationNeedsRecipient(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)

	_, err := user.CreateNotification(context.Background(), gdb, uuid.Nil, nil, user.NotifyVote, "x", nil)
	assert.True(t, utils.IsCode(err, utils.ErrBadRequest.Code))
}
