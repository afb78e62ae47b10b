package users

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WebPageSize is the row count per page on the users listing
const WebPageSize = 10

// WebController renders the HTML surface. Forms post back with htmx, so
// successful mutations answer with an HX-Redirect instead of a body.
type WebController struct {
	service   *UserService
	paginator *Paginator
	logger    Logger
	// secure toggles the Secure flag on the session cookie
	secure bool
}

// NewWebController creates the HTML controller
func NewWebController(service *UserService, paginator *Paginator) *WebController {
	return &WebController{
		service:   service,
		paginator: paginator,
		logger:    defLogger{},
	}
}

// WithLogger will set the logger
func (w *WebController) WithLogger(logger Logger) *WebController {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// WithSecureCookies will set the Secure flag on session cookies
func (w *WebController) WithSecureCookies(secure bool) *WebController {
	w.secure = secure
	return w
}

// RegisterRoutes mounts the HTML routes at the application root
func (w *WebController) RegisterRoutes(app fiber.Router, guard *AuthGuard) {
	app.Get("/login", guard.OptionalUser(), w.LoginShow)
	app.Post("/login", w.LoginPost)
	app.Get("/logout", w.Logout)

	app.Get("/register", guard.OptionalUser(), w.RegisterShow)
	app.Post("/register", w.RegisterPost)

	app.Get("/forgot-password", w.ForgotPasswordShow)
	app.Post("/forgot-password", w.ForgotPasswordPost)
	app.Get("/reset-password", w.ResetPasswordShow)
	app.Post("/reset-password", w.ResetPasswordPost)

	app.Get("/", guard.RequireUserWeb(), w.Home)
	app.Get("/profile", guard.RequireUserWeb(), w.ProfileShow)
	app.Post("/profile", guard.RequireUserWeb(), w.ProfilePost)

	app.Get("/dashboard", guard.RequireUserWeb(), guard.RequireAdminWeb(), w.Dashboard)

	admin := app.Group("/users", guard.RequireUserWeb(), guard.RequireAdminWeb())
	admin.Get("/", w.UsersList)
	admin.Get("/create", w.UserCreateShow)
	admin.Post("/create", w.UserCreatePost)
	admin.Get("/:id", w.UserShow)
	admin.Get("/:id/edit", w.UserEditShow)
	admin.Post("/:id/edit", w.UserEditPost)
	admin.Delete("/:id", w.UserDelete)
}

// Home routes signed in users to their landing page by role
func (w *WebController) Home(c *fiber.Ctx) error {
	if CurrentUser(c).IsAdmin() {
		return c.Redirect("/dashboard", fiber.StatusSeeOther)
	}
	return c.Redirect("/profile", fiber.StatusSeeOther)
}

// LoginShow renders the sign in page; signed in users go straight home
func (w *WebController) LoginShow(c *fiber.Ctx) error {
	if CurrentUser(c) != nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Render("login", fiber.Map{})
}

// LoginForm is the sign in payload
type LoginForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// LoginPost signs the user in and installs the session cookie
func (w *WebController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginForm)
	if err := c.BodyParser(payload); err != nil {
		return w.renderForm(c, "login", payload, map[string]string{"_errors": "failed to parse form"})
	}

	token, _, err := w.service.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		return w.renderForm(c, "login", payload, map[string]string{"_errors": ErrorDetail(err)})
	}

	SetSessionCookie(c, token, w.service.AccessTokenTTL(), w.secure)
	return HXRedirect(c, "/")
}

// Logout clears the session cookie and returns to the sign in page
func (w *WebController) Logout(c *fiber.Ctx) error {
	ClearSessionCookie(c)
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// RegisterShow renders the self registration page
func (w *WebController) RegisterShow(c *fiber.Ctx) error {
	if CurrentUser(c) != nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Render("register", fiber.Map{})
}

// RegisterForm is the public signup payload, a create input plus the
// repeated password
type RegisterForm struct {
	CreateUserInput
	Password2 string `form:"password_2" json:"password_2"`
}

// RegisterPost creates a regular ACTIVE account from the public form
func (w *WebController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterForm)
	if err := c.BodyParser(payload); err != nil {
		return w.renderForm(c, "register", payload, map[string]string{"_errors": "failed to parse form"})
	}

	if payload.Password2 != payload.Password {
		return w.renderForm(c, "register", payload, map[string]string{"password_2": "passwords do not match"})
	}

	if _, err := w.service.Register(c.Context(), payload.CreateUserInput); err != nil {
		return w.renderForm(c, "register", payload, FormatValidationErrorToMap(err))
	}

	return HXRedirect(c, "/")
}

// ForgotPasswordShow renders the recovery request page
func (w *WebController) ForgotPasswordShow(c *fiber.Ctx) error {
	return c.Render("forgot_password", fiber.Map{})
}

// ForgotPasswordPost sends the recovery email
func (w *WebController) ForgotPasswordPost(c *fiber.Ctx) error {
	email := c.FormValue("email")

	if err := w.service.RecoverPassword(c.Context(), email); err != nil {
		return w.renderForm(c, "forgot_password", fiber.Map{"email": email},
			map[string]string{"_errors": ErrorDetail(err)})
	}

	return c.Render("forgot_password", fiber.Map{
		"sent":  true,
		"email": email,
	})
}

// ResetPasswordShow renders the new password form for the token in the query
func (w *WebController) ResetPasswordShow(c *fiber.Ctx) error {
	return c.Render("reset_password", fiber.Map{
		"token": c.Query("token"),
	})
}

// ResetPasswordPost redeems the token and stores the new password
func (w *WebController) ResetPasswordPost(c *fiber.Ctx) error {
	payload := new(PasswordResetRequest)
	if err := c.BodyParser(payload); err != nil {
		return w.renderForm(c, "reset_password", payload, map[string]string{"_errors": "failed to parse form"})
	}

	if err := w.service.ResetPassword(c.Context(), payload.Token, payload.NewPassword); err != nil {
		return c.Render("reset_password", fiber.Map{
			"token":  payload.Token,
			"errors": map[string]string{"_errors": ErrorDetail(err)},
		})
	}

	return HXRedirect(c, "/login")
}

// Dashboard shows account totals to admins
func (w *WebController) Dashboard(c *fiber.Ctx) error {
	ctx := c.Context()

	total, err := w.service.CountAll(ctx)
	if err != nil {
		return err
	}
	active, err := w.service.CountActive(ctx)
	if err != nil {
		return err
	}
	admins, err := w.service.CountAdmins(ctx)
	if err != nil {
		return err
	}

	return c.Render("dashboard", fiber.Map{
		"current_user": CurrentUser(c).Public(),
		"total_users":  total,
		"active_users": active,
		"admin_users":  admins,
	})
}

// ProfileShow renders the signed in user's own record
func (w *WebController) ProfileShow(c *fiber.Ctx) error {
	return c.Render("profile", fiber.Map{
		"current_user": CurrentUser(c).Public(),
		"record":       CurrentUser(c).Public(),
	})
}

// ProfileForm is the self service edit payload. An empty password means
// keep the current one.
type ProfileForm struct {
	FullName string `form:"full_name" json:"full_name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// ProfilePost updates the signed in user's own record
func (w *WebController) ProfilePost(c *fiber.Ctx) error {
	actor := CurrentUser(c)

	payload := new(ProfileForm)
	if err := c.BodyParser(payload); err != nil {
		return w.renderForm(c, "profile", actor.Public(), map[string]string{"_errors": "failed to parse form"})
	}

	input := UpdateUserInput{
		FullName: &payload.FullName,
		Email:    &payload.Email,
	}
	if payload.Password != "" {
		input.Password = &payload.Password
	}

	updated, err := w.service.Update(c.Context(), actor.ID, input, actor)
	if err != nil {
		return c.Render("profile", fiber.Map{
			"current_user": actor.Public(),
			"record":       payload,
			"errors":       FormatValidationErrorToMap(err),
		})
	}

	return c.Render("profile", fiber.Map{
		"current_user": updated.Public(),
		"record":       updated.Public(),
		"saved":        true,
	})
}

// UsersList renders one page of the user collection
func (w *WebController) UsersList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	orderBy := c.Query("order_by", OrderByFullName)
	asc := c.Query("dir", "asc") != "desc"

	listing, err := w.paginator.GetPage(c.Context(), nil, page, WebPageSize, orderBy, asc)
	if err != nil {
		return err
	}

	return c.Render("users/list", fiber.Map{
		"current_user": CurrentUser(c).Public(),
		"page":         listing,
		"users":        PublicUsers(listing.Items),
		"order_by":     orderBy,
		"asc":          asc,
	})
}

// UserCreateShow renders the admin create form
func (w *WebController) UserCreateShow(c *fiber.Ctx) error {
	return c.Render("users/create", fiber.Map{
		"current_user": CurrentUser(c).Public(),
	})
}

// UserCreatePost creates an account from the admin form
func (w *WebController) UserCreatePost(c *fiber.Ctx) error {
	payload := new(CreateUserInput)
	if err := c.BodyParser(payload); err != nil {
		return w.renderForm(c, "users/create", payload, map[string]string{"_errors": "failed to parse form"})
	}

	if _, err := w.service.Create(c.Context(), *payload); err != nil {
		return c.Render("users/create", fiber.Map{
			"current_user": CurrentUser(c).Public(),
			"record":       payload,
			"errors":       FormatValidationErrorToMap(err),
		})
	}

	return HXRedirect(c, "/users")
}

// UserShow renders a single user's record
func (w *WebController) UserShow(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	user, err := w.service.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Render("users/show", fiber.Map{
		"current_user": CurrentUser(c).Public(),
		"record":       user.Public(),
	})
}

// UserEditShow renders the admin edit form
func (w *WebController) UserEditShow(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	user, err := w.service.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Render("users/edit", fiber.Map{
		"current_user": CurrentUser(c).Public(),
		"record":       user.Public(),
	})
}

// UserEditForm is the admin edit payload. ID is filled from the path so the
// form can re-render on validation errors.
type UserEditForm struct {
	ID       uuid.UUID `form:"-" json:"-"`
	FullName string    `form:"full_name" json:"full_name"`
	Email    string    `form:"email" json:"email"`
	Password string    `form:"password" json:"password"`
	Role     string    `form:"role" json:"role"`
	Status   string    `form:"status" json:"status"`
}

// UserEditPost applies the admin edit form
func (w *WebController) UserEditPost(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	payload := new(UserEditForm)
	payload.ID = id
	if err := c.BodyParser(payload); err != nil {
		return w.renderForm(c, "users/edit", payload, map[string]string{"_errors": "failed to parse form"})
	}

	input := UpdateUserInput{
		FullName: &payload.FullName,
		Email:    &payload.Email,
	}
	if payload.Password != "" {
		input.Password = &payload.Password
	}
	if payload.Role != "" {
		input.Role = &payload.Role
	}
	if payload.Status != "" {
		input.Status = &payload.Status
	}

	if _, err := w.service.Update(c.Context(), id, input, CurrentUser(c)); err != nil {
		return c.Render("users/edit", fiber.Map{
			"current_user": CurrentUser(c).Public(),
			"record":       payload,
			"errors":       FormatValidationErrorToMap(err),
		})
	}

	return HXRedirect(c, "/users")
}

// UserDelete removes an account from the listing
func (w *WebController) UserDelete(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	if err := w.service.Delete(c.Context(), id, CurrentUser(c)); err != nil {
		return err
	}

	return HXRedirect(c, "/users")
}

func (w *WebController) renderForm(c *fiber.Ctx, view string, record any, errs map[string]string) error {
	data := fiber.Map{
		"record": record,
		"errors": errs,
	}
	if user := CurrentUser(c); user != nil {
		data["current_user"] = user.Public()
	}
	return c.Render(view, data)
}
