package users

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// localsUserKey is where the guard parks the authenticated user
const localsUserKey = "current_user"

// AuthGuard turns request credentials into an authenticated user and gates
// routes on role and status.
type AuthGuard struct {
	service *UserService
	logger  Logger
}

// NewAuthGuard creates a guard over the given service
func NewAuthGuard(service *UserService) *AuthGuard {
	return &AuthGuard{service: service, logger: defLogger{}}
}

// WithLogger will set the logger
func (g *AuthGuard) WithLogger(logger Logger) *AuthGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// resolve authenticates the request. Missing and malformed credentials come
// back as ErrUnauthorized; a valid token for a since deleted account is
// ErrUserNotFound; an authenticated but non ACTIVE account is ErrInactiveUser.
func (g *AuthGuard) resolve(c *fiber.Ctx) (*User, error) {
	token := TokenFromRequest(c)
	if token == "" {
		return nil, ErrUnauthorized
	}

	id, err := g.service.Tokens().VerifyAccess(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := g.service.GetByID(c.Context(), id)
	if err != nil {
		g.logger.Debug("token subject %s no longer resolves to a user", id)
		return nil, err
	}

	if !user.IsActive() {
		return nil, ErrInactiveUser
	}

	return user, nil
}

// RequireUser admits any authenticated ACTIVE user. Failures get the JSON
// detail envelope.
func (g *AuthGuard) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := g.resolve(c)
		if err != nil {
			return RenderErrorJSON(c, err)
		}
		c.Locals(localsUserKey, user)
		return c.Next()
	}
}

// RequireUserWeb is the HTML flavor of RequireUser: instead of a JSON error
// the browser is sent to the login page. A session for an account that went
// inactive gets the message on the sign in page rather than a bare redirect.
func (g *AuthGuard) RequireUserWeb() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := g.resolve(c)
		if err != nil {
			ClearSessionCookie(c)
			if errors.Is(err, ErrInactiveUser) {
				return c.Status(HTTPStatus(err)).Render("login", fiber.Map{
					"errors": map[string]string{"_errors": ErrorDetail(err)},
				})
			}
			return c.Redirect("/login", fiber.StatusTemporaryRedirect)
		}
		c.Locals(localsUserKey, user)
		return c.Next()
	}
}

// RequireAdmin admits only ACTIVE admins. Run it after RequireUser or
// RequireUserWeb.
func (g *AuthGuard) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return RenderErrorJSON(c, ErrUnauthorized)
		}
		if !user.IsAdmin() {
			return RenderErrorJSON(c, ErrForbidden)
		}
		return c.Next()
	}
}

// RequireAdminWeb is the HTML flavor of RequireAdmin: the error bubbles to
// the app error handler, which renders the forbidden page.
func (g *AuthGuard) RequireAdminWeb() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Redirect("/login", fiber.StatusTemporaryRedirect)
		}
		if !user.IsAdmin() {
			return ErrForbidden
		}
		return c.Next()
	}
}

// OptionalUser resolves the user when credentials are present but never
// rejects the request. Pages like login use it to redirect signed in users.
func (g *AuthGuard) OptionalUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user, err := g.resolve(c); err == nil {
			c.Locals(localsUserKey, user)
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user stored by the guard, or nil
func CurrentUser(c *fiber.Ctx) *User {
	user, _ := c.Locals(localsUserKey).(*User)
	return user
}

// CanAccessUser reports whether the actor may read or modify the given
// account: admins reach everyone, everyone reaches themselves
func CanAccessUser(actor *User, id uuid.UUID) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin() || actor.ID == id
}
