// Package realtime keeps the live websocket connections of each user and
// pushes events to them.
package realtime

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/internal/metrics"
	"github.com/mnuddindev/resourcebase/pkg/logger"
)

// TextMessage matches the websocket text frame opcode.
const TextMessage = 1

// Conn is the part of a websocket connection the registry writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection bound to a user for its whole lifetime.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID

	conn Conn
	mu   sync.Mutex
}

func NewClient(userID uuid.UUID, conn Conn) *Client {
	return &Client{ID: uuid.New(), UserID: userID, conn: conn}
}

// Send writes one frame. Writes on a connection never interleave.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(TextMessage, data)
}

// Envelope is the frame pushed to clients.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Registry maps a user to the set of their live connections.
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[uuid.UUID]*Client
	log     *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		clients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		log:     log.Component("realtime"),
	}
}

func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	set, ok := r.clients[c.UserID]
	if !ok {
		set = make(map[uuid.UUID]*Client)
		r.clients[c.UserID] = set
	}
	set[c.ID] = c
	r.updateGauges()
	r.mu.Unlock()

	r.log.Debug(context.Background()).WithFields("user_id", c.UserID, "client_id", c.ID).Logs("Websocket registered")
}

// Remove drops c. The user entry goes away with its last connection.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	set, ok := r.clients[c.UserID]
	if ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(r.clients, c.UserID)
		}
	}
	r.updateGauges()
	r.mu.Unlock()

	if ok {
		r.log.Debug(context.Background()).WithFields("user_id", c.UserID, "client_id", c.ID).Logs("Websocket removed")
	}
}

// Push sends event to every live connection of userID and returns how many
// writes succeeded. A user without connections is not an error.
func (r *Registry) Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) (int, error) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients[userID]))
	for _, c := range r.clients[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return 0, nil
	}

	data, err := sonic.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return 0, err
	}
	return r.send(ctx, targets, data), nil
}

// PushRaw sends an already encoded envelope. The cluster relay uses it.
func (r *Registry) PushRaw(ctx context.Context, userID uuid.UUID, data []byte) int {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients[userID]))
	for _, c := range r.clients[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()
	return r.send(ctx, targets, data)
}

func (r *Registry) send(ctx context.Context, targets []*Client, data []byte) int {
	delivered := 0
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			r.log.Warn(ctx).WithError(err).WithFields("user_id", c.UserID, "client_id", c.ID).Logs("Websocket write failed")
			continue
		}
		delivered++
	}
	return delivered
}

// Connections returns the number of live connections of userID.
func (r *Registry) Connections(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID])
}

// Users returns the number of users with at least one connection.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close closes every connection and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.clients
	r.clients = make(map[uuid.UUID]map[uuid.UUID]*Client)
	r.updateGauges()
	r.mu.Unlock()

	for _, set := range all {
		for _, c := range set {
			c.mu.Lock()
			_ = c.conn.Close()
			c.mu.Unlock()
		}
	}
	r.log.Info(context.Background()).WithFields("users", len(all)).Logs("Realtime registry closed")
}

// updateGauges must run with mu held.
func (r *Registry) updateGauges() {
	total := 0
	for _, set := range r.clients {
		total += len(set)
	}
	metrics.WSConnections.Set(float64(total))
	metrics.WSUsers.Set(float64(len(r.clients)))
}
