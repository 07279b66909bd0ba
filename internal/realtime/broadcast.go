package realtime

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	storage "github.com/mnuddindev/resourcebase/pkg/redis"
)

// DefaultChannel is the redis channel processes relay pushes over.
const DefaultChannel = "realtime:push"

type relayMessage struct {
	Origin string    `json:"origin"`
	UserID uuid.UUID `json:"user_id"`
	Frame  []byte    `json:"frame"`
}

// Broadcaster pushes to the local registry and relays the frame over redis so
// other processes can reach connections they hold.
type Broadcaster struct {
	rclient *storage.RedisClient
	reg     *Registry
	channel string
	origin  string
	log     *logger.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

func NewBroadcaster(rclient *storage.RedisClient, reg *Registry, log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		rclient: rclient,
		reg:     reg,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		log:     log.Component("broadcast"),
		ready:   make(chan struct{}),
	}
}

// Push delivers locally and publishes for the other processes. The count
// covers local connections only.
func (b *Broadcaster) Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) (int, error) {
	frame, err := sonic.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return 0, err
	}
	delivered := b.reg.PushRaw(ctx, userID, frame)

	msg, err := sonic.Marshal(relayMessage{Origin: b.origin, UserID: userID, Frame: frame})
	if err != nil {
		return delivered, err
	}
	if err := b.rclient.Publish(ctx, b.channel, msg).Err(); err != nil {
		return delivered, err
	}
	return delivered, nil
}

// Ready is closed once the subscription is confirmed.
func (b *Broadcaster) Ready() <-chan struct{} {
	return b.ready
}

// Run subscribes to the relay channel and forwards frames from other
// processes to the local registry until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	sub := b.rclient.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info(ctx).WithFields("channel", b.channel).Logs("Realtime relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg relayMessage
			if err := sonic.UnmarshalString(m.Payload, &msg); err != nil {
				b.log.Warn(ctx).WithError(err).Logs("Dropping malformed relay message")
				continue
			}
			if msg.Origin == b.origin {
				continue
			}
			b.reg.PushRaw(ctx, msg.UserID, msg.Frame)
		}
	}
}
