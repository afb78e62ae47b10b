package users

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// mailDispatchTimeout bounds a background notification send
const mailDispatchTimeout = 15 * time.Second

// CreateUserInput is the payload for user creation. Role and Status are only
// honored when set by an admin caller; self registration forces user/ACTIVE.
type CreateUserInput struct {
	FullName string `json:"full_name" form:"full_name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
	Status   string `json:"status" form:"status"`
}

// Validate checks the payload against the account rules
func (i CreateUserInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.FullName, validation.Required, validation.Length(2, 150)),
		validation.Field(&i.Email, validation.Required, is.Email),
		validation.Field(&i.Password, validation.Required, StrongPassword),
		validation.Field(&i.Role, validation.In(RoleUser, RoleAdmin)),
		validation.Field(&i.Status, validation.In(UserStatusPending, UserStatusActive, UserStatusInactive)),
	)
}

// UpdateUserInput is a partial update payload. Nil fields are untouched.
type UpdateUserInput struct {
	FullName *string     `json:"full_name" form:"full_name"`
	Email    *string     `json:"email" form:"email"`
	Password *string     `json:"password" form:"password"`
	Role     *UserRole   `json:"role" form:"role"`
	Status   *UserStatus `json:"status" form:"status"`
}

// Validate checks only the fields present in the payload
func (i UpdateUserInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.FullName, validation.Length(2, 150)),
		validation.Field(&i.Email, is.Email),
		validation.Field(&i.Password, StrongPassword),
		validation.Field(&i.Role, validation.In(RoleUser, RoleAdmin)),
		validation.Field(&i.Status, validation.In(UserStatusPending, UserStatusActive, UserStatusInactive)),
	)
}

// IsEmpty reports whether the payload changes nothing
func (i UpdateUserInput) IsEmpty() bool {
	return i.FullName == nil && i.Email == nil && i.Password == nil &&
		i.Role == nil && i.Status == nil
}

// UserService implements the account lifecycle on top of the store, hasher,
// token service and mail sink ports.
type UserService struct {
	store     UserStore
	hasher    PasswordHasher
	tokens    *TokenService
	mail      MailSink
	logger    Logger
	accessTTL time.Duration
	resetTTL  time.Duration
}

// NewUserService creates a service with noop mail delivery and default TTLs
func NewUserService(store UserStore, hasher PasswordHasher, tokens *TokenService) *UserService {
	return &UserService{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		mail:      NoopMailSink{},
		logger:    defLogger{},
		accessTTL: DefaultAccessTokenTTL,
		resetTTL:  DefaultResetTokenTTL,
	}
}

// WithMailSink will set the notification sink
func (s *UserService) WithMailSink(mail MailSink) *UserService {
	if mail != nil {
		s.mail = mail
	}
	return s
}

// WithLogger will set the logger
func (s *UserService) WithLogger(logger Logger) *UserService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithAccessTokenTTL will set the session token lifetime
func (s *UserService) WithAccessTokenTTL(ttl time.Duration) *UserService {
	if ttl > 0 {
		s.accessTTL = ttl
	}
	return s
}

// WithResetTokenTTL will set the recovery token lifetime
func (s *UserService) WithResetTokenTTL(ttl time.Duration) *UserService {
	if ttl > 0 {
		s.resetTTL = ttl
	}
	return s
}

// AccessTokenTTL returns the configured session token lifetime
func (s *UserService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// Tokens exposes the underlying token service
func (s *UserService) Tokens() *TokenService {
	return s.tokens
}

// Create validates the input, hashes the password and persists the user.
// New accounts are ACTIVE unless the input says otherwise. The welcome email
// goes out in the background, a failed send never fails the creation.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		FullName:       input.FullName,
		Email:          NormalizeEmail(input.Email),
		HashedPassword: hashed,
		Role:           UserRole(input.Role),
		Status:         UserStatus(input.Status),
	}
	user.EnsureDefaults()

	created, err := s.store.Insert(ctx, user)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	s.dispatchMail(SendMailRequest{
		Kind: MailKindNewAccount,
		To:   created.Email,
		Name: created.FullName,
	})

	return created, nil
}

// Register creates a self service account. Role and status from the payload
// are ignored, registration always yields an ACTIVE regular user.
func (s *UserService) Register(ctx context.Context, input CreateUserInput) (*User, error) {
	input.Role = RoleUser
	input.Status = UserStatusActive
	return s.Create(ctx, input)
}

// Update applies a partial update. Callers without admin role cannot change
// role or status, those fields are silently dropped from their payloads.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput, actor *User) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if actor == nil || !actor.IsAdmin() {
		input.Role = nil
		input.Status = nil
	}

	patch := UserPatch{
		FullName: input.FullName,
		Email:    input.Email,
		Status:   input.Status,
		Role:     input.Role,
	}

	if input.Password != nil {
		hashed, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		patch.HashedPassword = &hashed
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrUserValue
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes a user. Admins cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID, actor *User) error {
	if actor != nil && actor.IsAdmin() && actor.ID == id {
		return ErrSelfDeleteForbidden
	}

	found, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	return nil
}

// Authenticate checks the credential pair. Unknown email and wrong password
// both return ErrInvalidCredentials, and the unknown email path burns a hash
// verification so the two failures are indistinguishable by timing. Status
// is not checked here, the caller decides what inactive means for its flow.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		s.hasher.EqualizeTiming(password)
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a session token. Inactive accounts
// authenticate but cannot log in.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	if !user.IsActive() {
		return "", nil, ErrInactiveUser
	}

	token, err := s.tokens.IssueAccess(user.ID, s.accessTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// RecoverPassword issues a reset token for the account and emails it. An
// unknown email is reported as not found.
func (s *UserService) RecoverPassword(ctx context.Context, email string) error {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.IssueReset(user.Email, s.resetTTL)
	if err != nil {
		return err
	}

	s.dispatchMail(SendMailRequest{
		Kind:  MailKindPasswordReset,
		To:    user.Email,
		Name:  user.FullName,
		Token: token,
	})

	return nil
}

// ResetPassword redeems a reset token and stores the new password. The token
// must verify, the account must still exist and must be ACTIVE, and the new
// password must satisfy the password policy.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := s.tokens.VerifyReset(token)
	if err != nil {
		return err
	}

	if err := validation.Validate(newPassword, validation.Required, StrongPassword); err != nil {
		return ErrInvalidPassword
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if !user.IsActive() {
		return ErrInactiveUser
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = s.store.Update(ctx, user.ID, UserPatch{HashedPassword: &hashed})
	return err
}

// GetByID fetches a single user
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// GetByEmail fetches a single user by normalized email
func (s *UserService) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.store.GetByEmail(ctx, email)
}

// List returns one window of users plus the total count for the filter
func (s *UserService) List(ctx context.Context, filter *UserFilter, opts ListOptions) (*UsersPublic, error) {
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items, err := s.store.List(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	return &UsersPublic{Data: PublicUsers(items), Count: total}, nil
}

// CountAll returns the total number of users
func (s *UserService) CountAll(ctx context.Context) (int, error) {
	return s.store.Count(ctx, nil)
}

// CountActive returns the number of ACTIVE users
func (s *UserService) CountActive(ctx context.Context) (int, error) {
	return s.store.Count(ctx, FilterByStatus(UserStatusActive))
}

// CountAdmins returns the number of admin users
func (s *UserService) CountAdmins(ctx context.Context) (int, error) {
	return s.store.Count(ctx, FilterByRole(RoleAdmin))
}

// dispatchMail hands a notification to the sink off the request path. The
// send gets its own deadline since the request context may be gone before
// delivery finishes.
func (s *UserService) dispatchMail(req SendMailRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailDispatchTimeout)
		defer cancel()

		if err := s.mail.Send(ctx, req); err != nil {
			s.logger.Error("failed to send %s email to %s: %v", req.Kind, req.To, err)
		}
	}()
}
