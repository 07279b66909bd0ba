package v1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/resourcebase/internal/auth"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

// Notifications lists the caller's notifications with the unread count.
func (h *Handler) Notifications(c *fiber.Ctx) error {
	limit, offset := utils.Pagination(c, 20, 100)
	includeRead := c.QueryBool("includeRead", false)

	page, err := user.ListNotifications(c.UserContext(), h.DB, auth.CurrentUser(c), limit, offset, includeRead)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, page)
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := user.MarkAsRead(c.UserContext(), h.DB, id, auth.CurrentUser(c)); err != nil {
		return utils.SendError(c, err)
	}
	return utils.Success(c).WithMessage("Notification marked as read").Send()
}

// MarkAllNotificationsRead marks every unread notification of the caller.
func (h *Handler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := user.MarkAllAsRead(c.UserContext(), h.DB, auth.CurrentUser(c))
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, fiber.Map{"updated": n})
}
