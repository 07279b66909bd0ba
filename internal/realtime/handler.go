package realtime

import (
	"context"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

// Authenticator resolves an access token to the user it was issued for.
type Authenticator func(ctx context.Context, token string) (uuid.UUID, error)

const localUserID = "ws_user_id"

// Upgrade authenticates the handshake and rejects non-websocket requests.
// The token comes from the "token" query parameter or a bearer header.
func Upgrade(authenticate Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return utils.SendError(c, utils.NewError(fiber.StatusUpgradeRequired, "Websocket upgrade required"))
		}

		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		if token == "" {
			return utils.SendError(c, utils.NewError(utils.ErrUnauthorized.Code, "Authentication required"))
		}

		userID, err := authenticate(c.UserContext(), token)
		if err != nil {
			return utils.SendError(c, utils.NewError(utils.ErrUnauthorized.Code, "Invalid token"))
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// Handler registers each connection with reg and reads until the peer goes
// away. Inbound frames are ignored.
func Handler(reg *Registry, log *logger.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals(localUserID).(uuid.UUID)
		if !ok {
			_ = conn.Close()
			return
		}

		client := NewClient(userID, conn)
		reg.Add(client)
		defer func() {
			reg.Remove(client)
			_ = conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug(context.Background()).WithError(err).WithFields("user_id", userID).Logs("Websocket closed unexpectedly")
				}
				return
			}
		}
	})
}
