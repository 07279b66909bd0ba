package v1

import (
	"github.com/gofiber/fiber/v2"
	user "github.com/mnuddindev/resourcebase/internal/models/user"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

// SubscribeNewsletter puts an email on the newsletter list. No account is needed.
func (h *Handler) SubscribeNewsletter(c *fiber.Ctx) error {
	type SubscribeRequest struct {
		Email string `json:"email" validate:"required,email,max=100"`
	}

	var sr SubscribeRequest
	if err := h.parse(c, &sr); err != nil {
		return utils.SendError(c, err)
	}

	sub, err := user.Subscribe(c.UserContext(), h.DB, sr.Email)
	if err != nil {
		if !utils.IsCode(err, utils.ErrConflict.Code) {
			h.Logger.Error(c.UserContext()).WithError(err).Logs("Newsletter subscription failed")
		}
		return utils.SendError(c, err)
	}

	return utils.Success(c).
		WithStatus(fiber.StatusCreated).
		WithMessage("Successfully subscribed to newsletter").
		WithData(sub).
		Send()
}
