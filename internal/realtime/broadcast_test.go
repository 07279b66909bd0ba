package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterRelaysAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *storage.RedisClient {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return storage.Wrap(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two processes, each with its own registry.
	regA, regB := NewRegistry(logger.Nop()), NewRegistry(logger.Nop())
	nodeA := NewBroadcaster(newClient(), regA, logger.Nop())
	nodeB := NewBroadcaster(newClient(), regB, logger.Nop())
	go func() { _ = nodeA.Run(ctx) }()
	go func() { _ = nodeB.Run(ctx) }()
	for _, b := range []*Broadcaster{nodeA, nodeB} {
		select {
		case <-b.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("relay did not subscribe")
		}
	}

	alice := uuid.New()
	onA, onB := &fakeConn{}, &fakeConn{}
	regA.Add(NewClient(alice, onA))
	regB.Add(NewClient(alice, onB))

	n, err := nodeA.Push(ctx, alice, "notification", map[string]string{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool { return onB.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	// The origin process does not deliver its own relay a second time.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, onA.count())
}
