package users

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultPageLimit caps unbounded listing requests
const DefaultPageLimit = 100

// APIController exposes the JSON surface under /api
type APIController struct {
	service *UserService
	logger  Logger
}

// NewAPIController creates the JSON controller
func NewAPIController(service *UserService) *APIController {
	return &APIController{service: service, logger: defLogger{}}
}

// WithLogger will set the logger
func (a *APIController) WithLogger(logger Logger) *APIController {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// RegisterRoutes mounts the JSON routes on the given router, normally the
// /api group
func (a *APIController) RegisterRoutes(api fiber.Router, guard *AuthGuard) {
	auth := api.Group("/auth")
	auth.Post("/login/access-token", a.LoginAccessToken)
	auth.Post("/login/test-token", guard.RequireUser(), a.TestToken)
	auth.Post("/password-recovery/:email", a.PasswordRecovery)
	auth.Post("/password-reset/", a.PasswordReset)

	users := api.Group("/users", guard.RequireUser())
	users.Get("/", guard.RequireAdmin(), a.ListUsers)
	users.Post("/", guard.RequireAdmin(), a.CreateUser)
	users.Get("/me", a.ReadMe)
	users.Patch("/me", a.UpdateMe)
	users.Get("/email/:email", guard.RequireAdmin(), a.ReadUserByEmail)
	users.Get("/:id", a.ReadUser)
	users.Patch("/:id", a.UpdateUser)
	users.Delete("/:id", a.DeleteUser)
}

// AccessTokenRequest is the OAuth2 style form credential pair
type AccessTokenRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// AccessTokenResponse carries a freshly issued session token
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// LoginAccessToken exchanges a credential pair for a bearer token
func (a *APIController) LoginAccessToken(c *fiber.Ctx) error {
	payload := new(AccessTokenRequest)
	if err := c.BodyParser(payload); err != nil {
		return RenderErrorJSON(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse credentials").
			WithCode(errors.CodeBadRequest))
	}

	token, _, err := a.service.Login(c.Context(), payload.Username, payload.Password)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	return c.JSON(AccessTokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// TestToken echoes the authenticated user, used by clients to probe whether
// their stored token still works
func (a *APIController) TestToken(c *fiber.Ctx) error {
	return c.JSON(CurrentUser(c).Public())
}

// PasswordRecovery triggers the recovery email for the address in the path
func (a *APIController) PasswordRecovery(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		email = c.Params("email")
	}

	if err := a.service.RecoverPassword(c.Context(), email); err != nil {
		return RenderErrorJSON(c, err)
	}

	return RenderMessageJSON(c, "Password recovery email sent")
}

// PasswordResetRequest redeems a recovery token for a new password
type PasswordResetRequest struct {
	Token       string `json:"token" form:"token"`
	NewPassword string `json:"new_password" form:"new_password"`
}

// PasswordReset sets the new password carried alongside a valid reset token
func (a *APIController) PasswordReset(c *fiber.Ctx) error {
	payload := new(PasswordResetRequest)
	if err := c.BodyParser(payload); err != nil {
		return RenderErrorJSON(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := a.service.ResetPassword(c.Context(), payload.Token, payload.NewPassword); err != nil {
		return RenderErrorJSON(c, err)
	}

	return RenderMessageJSON(c, "Password updated successfully")
}

// ListUsers returns one window of the user collection, admin only
func (a *APIController) ListUsers(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", DefaultPageLimit)
	if skip < 0 {
		skip = 0
	}
	if limit < 1 || limit > DefaultPageLimit {
		limit = DefaultPageLimit
	}

	list, err := a.service.List(c.Context(), nil, ListOptions{
		Skip:    skip,
		Limit:   limit,
		OrderBy: OrderByFullName,
		Asc:     true,
	})
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	return c.JSON(list)
}

// CreateUser creates an account with the given role and status, admin only
func (a *APIController) CreateUser(c *fiber.Ctx) error {
	payload := new(CreateUserInput)
	if err := c.BodyParser(payload); err != nil {
		return RenderErrorJSON(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	user, err := a.service.Create(c.Context(), *payload)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user.Public())
}

// ReadMe returns the authenticated user
func (a *APIController) ReadMe(c *fiber.Ctx) error {
	return c.JSON(CurrentUser(c).Public())
}

// UpdateMe lets users edit their own account. Role and status changes are
// stripped unless the caller is an admin.
func (a *APIController) UpdateMe(c *fiber.Ctx) error {
	actor := CurrentUser(c)

	payload := new(UpdateUserInput)
	if err := c.BodyParser(payload); err != nil {
		return RenderErrorJSON(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	user, err := a.service.Update(c.Context(), actor.ID, *payload, actor)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	return c.JSON(user.Public())
}

// ReadUserByEmail returns a user by email, admin only
func (a *APIController) ReadUserByEmail(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		email = c.Params("email")
	}

	user, err := a.service.GetByEmail(c.Context(), email)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	return c.JSON(user.Public())
}

// ReadUser returns a user by id: admins reach anyone, others only themselves
func (a *APIController) ReadUser(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	if !CanAccessUser(CurrentUser(c), id) {
		return RenderErrorJSON(c, ErrForbidden)
	}

	user, err := a.service.GetByID(c.Context(), id)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	return c.JSON(user.Public())
}

// UpdateUser patches an account: admins patch anyone, users only
// themselves, and role or status changes by non admins are stripped
func (a *APIController) UpdateUser(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	if !CanAccessUser(CurrentUser(c), id) {
		return RenderErrorJSON(c, ErrForbidden)
	}

	payload := new(UpdateUserInput)
	if err := c.BodyParser(payload); err != nil {
		return RenderErrorJSON(c, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	user, err := a.service.Update(c.Context(), id, *payload, CurrentUser(c))
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	return c.JSON(user.Public())
}

// DeleteUser removes an account: admins delete anyone but themselves,
// regular users may delete their own account
func (a *APIController) DeleteUser(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return RenderErrorJSON(c, err)
	}

	if !CanAccessUser(CurrentUser(c), id) {
		return RenderErrorJSON(c, ErrForbidden)
	}

	if err := a.service.Delete(c.Context(), id, CurrentUser(c)); err != nil {
		return RenderErrorJSON(c, err)
	}

	return RenderMessageJSON(c, "User deleted successfully")
}

func parseUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, errors.New("invalid user id", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}
	return id, nil
}
