package models_test

import (
	"context"
	"testing"

	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/internal/testutil"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeNewsletterConflict(t *testing.T) {
	t.Parallel()
	gdb := testutil.NewDB(t)
	ctx := context.Background()

	sub, err := user.Subscribe(ctx, gdb, "  Reader@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", sub.Email)
	assert.False(t, sub.SubscribedAt.IsZero())

	_, err = user.Subscribe(ctx, gdb, "READER@example.com")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrConflict.Code))
	assert.Contains(t, err.Error(), "Email already subscribed")

	_, err = user.Subscribe(ctx, gdb, "   ")
	assert.True(t, utils.IsCode(err, utils.ErrBadRequest.Code))

	var n int64
	require.NoError(t, gdb.Model(&user.NewsletterSubscriber{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
