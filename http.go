package users

import "github.com/gofiber/fiber/v2"

// RenderErrorJSON writes the detail envelope for a service error. The status
// comes from the error taxonomy, unknown errors collapse to a plain 500.
func RenderErrorJSON(c *fiber.Ctx, err error) error {
	return c.Status(HTTPStatus(err)).JSON(fiber.Map{
		"detail": ErrorDetail(err),
	})
}

// RenderMessageJSON writes the message envelope used by fire and forget
// operations like password recovery
func RenderMessageJSON(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{"message": message})
}

// HXRedirect tells an htmx client to navigate. Plain form posts without the
// HX-Request header get a regular redirect instead.
func HXRedirect(c *fiber.Ctx, target string) error {
	if c.Get("HX-Request") == "" {
		return c.Redirect(target, fiber.StatusSeeOther)
	}
	c.Set("HX-Redirect", target)
	return c.SendStatus(fiber.StatusNoContent)
}
