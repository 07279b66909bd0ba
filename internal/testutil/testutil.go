// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	database "github.com/mnuddindev/resourcebase/internal/db"
	"github.com/mnuddindev/resourcebase/internal/models"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated sqlite database in a temp dir. Writers share one
// connection, so concurrent transactions queue instead of failing on locks.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	gdb, err := database.NewDB(context.Background(), sqlite.Open(dsn), models.RegisterModels(),
		database.WithLogger(logger.Nop()),
		database.WithPool(1, 1),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = database.CloseDB(gdb, logger.Nop())
	})
	return gdb
}

// NewRedis starts a miniredis server and returns a client for it.
func NewRedis(t testing.TB) (*storage.RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.Wrap(client), mr
}

// CreateUser stores a user with a unique name derived from username.
func CreateUser(t testing.TB, gdb *gorm.DB, username string) *user.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	u, err := user.NewUser(context.Background(), gdb, username+suffix, username+suffix+"@example.com", "hash")
	require.NoError(t, err)
	return u
}
