package users_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	app     *fiber.App
	store   *memStore
	service *users.UserService
	sink    *recorderSink
}

func newAPIEnv() *apiEnv {
	store := newMemStore()
	sink := newRecorderSink()
	service, _ := newTestService(store, sink)

	guard := users.NewAuthGuard(service).WithLogger(quietLogger{})

	app := fiber.New()
	api := users.NewAPIController(service).WithLogger(quietLogger{})
	api.RegisterRoutes(app.Group("/api"), guard)

	return &apiEnv{app: app, store: store, service: service, sink: sink}
}

func (e *apiEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	contentType := ""

	switch b := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
		contentType = "application/json"
	}

	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *apiEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	resp := e.request(t, fiber.MethodPost, "/api/auth/login/access-token", "", url.Values{
		"username": {email},
		"password": {password},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "bearer", body["token_type"])

	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAPI_LoginAccessToken(t *testing.T) {
	env := newAPIEnv()
	seedUser(env.store, "Jane", "jane@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)
	seedUser(env.store, "Idle", "idle@example.com", "Abcdef1!", users.RoleUser, users.UserStatusInactive)

	t.Run("valid credentials return a bearer token", func(t *testing.T) {
		token := env.login(t, "jane@example.com", "Abcdef1!")

		id, err := env.service.Tokens().VerifyAccess(token)
		assert.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/login/access-token", "", url.Values{
			"username": {"jane@example.com"},
			"password": {"wrong"},
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Incorrect email or password", decodeBody(t, resp)["detail"])
	})

	t.Run("unknown email gets the same answer", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/login/access-token", "", url.Values{
			"username": {"ghost@example.com"},
			"password": {"Abcdef1!"},
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Incorrect email or password", decodeBody(t, resp)["detail"])
	})

	t.Run("inactive account", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/login/access-token", "", url.Values{
			"username": {"idle@example.com"},
			"password": {"Abcdef1!"},
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Inactive user", decodeBody(t, resp)["detail"])
	})
}

func TestAPI_TestToken(t *testing.T) {
	env := newAPIEnv()
	seedUser(env.store, "Jane", "jane@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)

	t.Run("valid token echoes the user", func(t *testing.T) {
		token := env.login(t, "jane@example.com", "Abcdef1!")

		resp := env.request(t, fiber.MethodPost, "/api/auth/login/test-token", token, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "jane@example.com", body["email"])
		assert.NotContains(t, body, "hashed_password")
	})

	t.Run("missing token", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/login/test-token", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Not authenticated", decodeBody(t, resp)["detail"])
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/login/test-token", "not-a-token", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPI_SessionCookieAuth(t *testing.T) {
	env := newAPIEnv()
	user := seedUser(env.store, "Jane", "jane@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)

	token, err := env.service.Tokens().IssueAccess(user.ID, users.DefaultAccessTokenTTL)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: users.SessionCookieName, Value: token})

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "jane@example.com", decodeBody(t, resp)["email"])
}

func TestAPI_UsersAuthorization(t *testing.T) {
	env := newAPIEnv()
	seedUser(env.store, "Admin", "admin@example.com", "Abcdef1!", users.RoleAdmin, users.UserStatusActive)
	jane := seedUser(env.store, "Jane", "jane@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)
	bob := seedUser(env.store, "Bob", "bob@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)

	adminToken := env.login(t, "admin@example.com", "Abcdef1!")
	janeToken := env.login(t, "jane@example.com", "Abcdef1!")

	t.Run("listing is admin only", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/users/", janeToken, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "The user does not have enough privileges", decodeBody(t, resp)["detail"])

		resp = env.request(t, fiber.MethodGet, "/api/users/", adminToken, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 3, decodeBody(t, resp)["count"])
	})

	t.Run("users reach themselves but not others", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/users/"+jane.ID.String(), janeToken, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp = env.request(t, fiber.MethodGet, "/api/users/"+bob.ID.String(), janeToken, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("admins reach anyone", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/users/"+bob.ID.String(), adminToken, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "bob@example.com", decodeBody(t, resp)["email"])
	})

	t.Run("patching others is forbidden for regular users", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPatch, "/api/users/"+bob.ID.String(), janeToken, map[string]any{
			"full_name": "Hacked",
		})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("users may patch their own record by id", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPatch, "/api/users/"+jane.ID.String(), janeToken, map[string]any{
			"full_name": "Jane Updated",
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Jane Updated", decodeBody(t, resp)["full_name"])
	})

	t.Run("email lookup is admin only", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/users/email/bob@example.com", janeToken, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		resp = env.request(t, fiber.MethodGet, "/api/users/email/bob@example.com", adminToken, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "bob@example.com", decodeBody(t, resp)["email"])
	})
}

func TestAPI_UsersCRUD(t *testing.T) {
	env := newAPIEnv()
	admin := seedUser(env.store, "Admin", "admin@example.com", "Abcdef1!", users.RoleAdmin, users.UserStatusActive)
	adminToken := env.login(t, "admin@example.com", "Abcdef1!")

	var createdID string

	t.Run("create", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/users/", adminToken, map[string]any{
			"full_name": "New User",
			"email":     "new@example.com",
			"password":  "Abcdef1!",
		})
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "new@example.com", body["email"])
		assert.Equal(t, users.UserStatusActive, body["status"])

		createdID, _ = body["id"].(string)
		assert.NotEmpty(t, createdID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/users/", adminToken, map[string]any{
			"full_name": "Dup User",
			"email":     "new@example.com",
			"password":  "Abcdef1!",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "A user with this email already exists", decodeBody(t, resp)["detail"])
	})

	t.Run("patch role", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPatch, "/api/users/"+createdID, adminToken, map[string]any{
			"role": users.RoleAdmin,
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, users.RoleAdmin, decodeBody(t, resp)["role"])
	})

	t.Run("delete", func(t *testing.T) {
		resp := env.request(t, fiber.MethodDelete, "/api/users/"+createdID, adminToken, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "User deleted successfully", decodeBody(t, resp)["message"])

		resp = env.request(t, fiber.MethodGet, "/api/users/"+createdID, adminToken, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("admins cannot delete themselves", func(t *testing.T) {
		resp := env.request(t, fiber.MethodDelete, "/api/users/"+admin.ID.String(), adminToken, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "Admins are not allowed to delete themselves", decodeBody(t, resp)["detail"])
	})

	t.Run("invalid id", func(t *testing.T) {
		resp := env.request(t, fiber.MethodGet, "/api/users/not-a-uuid", adminToken, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_SelfDelete(t *testing.T) {
	env := newAPIEnv()
	user := seedUser(env.store, "Jane", "jane@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)
	token := env.login(t, "jane@example.com", "Abcdef1!")

	resp := env.request(t, fiber.MethodDelete, "/api/users/"+user.ID.String(), token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "User deleted successfully", decodeBody(t, resp)["message"])

	_, err := env.store.GetByID(context.Background(), user.ID)
	assert.Error(t, err)
}

func TestAPI_UpdateMe(t *testing.T) {
	env := newAPIEnv()
	seedUser(env.store, "Jane", "jane@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)
	token := env.login(t, "jane@example.com", "Abcdef1!")

	t.Run("profile fields update", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPatch, "/api/users/me", token, map[string]any{
			"full_name": "Jane Renamed",
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Jane Renamed", decodeBody(t, resp)["full_name"])
	})

	t.Run("role escalation is stripped", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPatch, "/api/users/me", token, map[string]any{
			"role": users.RoleAdmin,
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, users.RoleUser, decodeBody(t, resp)["role"])
	})
}

func TestAPI_PasswordRecoveryFlow(t *testing.T) {
	env := newAPIEnv()
	seedUser(env.store, "Jane", "jane@example.com", "OldPass1!", users.RoleUser, users.UserStatusActive)

	t.Run("recovery sends the token by email", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/password-recovery/jane@example.com", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Password recovery email sent", decodeBody(t, resp)["message"])

		mail, ok := env.sink.await(mailWait)
		require.True(t, ok, "expected a recovery email")

		resp = env.request(t, fiber.MethodPost, "/api/auth/password-reset/", "", map[string]any{
			"token":        mail.Token,
			"new_password": "NewPass1!",
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Password updated successfully", decodeBody(t, resp)["message"])

		env.login(t, "jane@example.com", "NewPass1!")
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/password-recovery/ghost@example.com", "", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "User not found", decodeBody(t, resp)["detail"])
	})

	t.Run("invalid reset token", func(t *testing.T) {
		resp := env.request(t, fiber.MethodPost, "/api/auth/password-reset/", "", map[string]any{
			"token":        "garbage",
			"new_password": "NewPass1!",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid token", decodeBody(t, resp)["detail"])
	})
}

func TestGuard_InactiveUserIsRejected(t *testing.T) {
	env := newAPIEnv()
	user := seedUser(env.store, "Idle", "idle@example.com", "Abcdef1!", users.RoleUser, users.UserStatusInactive)

	// a valid token stops working the moment the account goes inactive
	token, err := env.service.Tokens().IssueAccess(user.ID, users.DefaultAccessTokenTTL)
	require.NoError(t, err)

	resp := env.request(t, fiber.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Inactive user", decodeBody(t, resp)["detail"])
}

func TestGuard_DeletedUserTokenIsRejected(t *testing.T) {
	env := newAPIEnv()
	user := seedUser(env.store, "Jane", "jane@example.com", "Abcdef1!", users.RoleUser, users.UserStatusActive)
	token := env.login(t, "jane@example.com", "Abcdef1!")

	_, err := env.store.Delete(context.Background(), user.ID)
	require.NoError(t, err)

	resp := env.request(t, fiber.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", decodeBody(t, resp)["detail"])
}
