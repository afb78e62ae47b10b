package users_test

import (
	"context"
	"sort"
	"sync"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
)

// memStore is an in memory UserStore used by the service and controller
// tests
type memStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*users.User
}

func newMemStore() *memStore {
	return &memStore{items: map[uuid.UUID]*users.User{}}
}

func (s *memStore) Insert(ctx context.Context, user *users.User) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = users.NormalizeEmail(user.Email)
	user.EnsureDefaults()

	for _, existing := range s.items {
		if existing.Email == user.Email {
			return nil, users.ErrDuplicateEmail
		}
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	clone := *user
	s.items[user.ID] = &clone
	return user, nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.items[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = users.NormalizeEmail(email)
	for _, user := range s.items {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (s *memStore) Update(ctx context.Context, id uuid.UUID, patch users.UserPatch) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.items[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}

	if patch.Email != nil {
		email := users.NormalizeEmail(*patch.Email)
		for _, existing := range s.items {
			if existing.ID != id && existing.Email == email {
				return nil, users.ErrDuplicateEmail
			}
		}
	}

	patch.Apply(user)
	user.UpdatedAt = time.Now().UTC()

	clone := *user
	return &clone, nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *memStore) Count(ctx context.Context, filter *users.UserFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filtered(filter)), nil
}

func (s *memStore) List(ctx context.Context, filter *users.UserFilter, opts users.ListOptions) ([]*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.filtered(filter)

	sort.Slice(list, func(i, j int) bool {
		var a, b string
		if opts.OrderBy == users.OrderByEmail {
			a, b = list[i].Email, list[j].Email
		} else {
			a, b = list[i].FullName, list[j].FullName
		}
		if a == b {
			a, b = list[i].ID.String(), list[j].ID.String()
		}
		if opts.Asc {
			return a < b
		}
		return a > b
	})

	if opts.Skip >= len(list) {
		return []*users.User{}, nil
	}
	list = list[opts.Skip:]
	if opts.Limit > 0 && opts.Limit < len(list) {
		list = list[:opts.Limit]
	}

	out := make([]*users.User, 0, len(list))
	for _, user := range list {
		clone := *user
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memStore) FindOne(ctx context.Context, filter *users.UserFilter) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.filtered(filter)
	if len(list) == 0 {
		return nil, users.ErrUserNotFound
	}
	clone := *list[0]
	return &clone, nil
}

func (s *memStore) filtered(filter *users.UserFilter) []*users.User {
	out := []*users.User{}
	for _, user := range s.items {
		if filter != nil {
			if filter.Email != nil && user.Email != users.NormalizeEmail(*filter.Email) {
				continue
			}
			if filter.Status != nil && user.Status != *filter.Status {
				continue
			}
			if filter.Role != nil && user.Role != *filter.Role {
				continue
			}
		}
		out = append(out, user)
	}
	return out
}

var _ users.UserStore = (*memStore)(nil)

// recorderSink captures notifications. Sends happen on a goroutine, so the
// channel lets tests wait for delivery.
type recorderSink struct {
	mu   sync.Mutex
	sent []users.SendMailRequest
	ch   chan users.SendMailRequest
}

func newRecorderSink() *recorderSink {
	return &recorderSink{ch: make(chan users.SendMailRequest, 16)}
}

func (r *recorderSink) Send(ctx context.Context, req users.SendMailRequest) error {
	r.mu.Lock()
	r.sent = append(r.sent, req)
	r.mu.Unlock()
	r.ch <- req
	return nil
}

// await blocks until one message arrives or the timeout hits
func (r *recorderSink) await(timeout time.Duration) (users.SendMailRequest, bool) {
	select {
	case req := <-r.ch:
		return req, true
	case <-time.After(timeout):
		return users.SendMailRequest{}, false
	}
}

var _ users.MailSink = (*recorderSink)(nil)

// fastHasher avoids bcrypt's cost in tests
type fastHasher struct {
	mu        sync.Mutex
	equalized int
}

func (h *fastHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", users.ErrInvalidPassword
	}
	return "hashed:" + plaintext, nil
}

func (h *fastHasher) Verify(plaintext, hashed string) bool {
	return hashed == "hashed:"+plaintext
}

func (h *fastHasher) EqualizeTiming(plaintext string) {
	h.mu.Lock()
	h.equalized++
	h.mu.Unlock()
}

func (h *fastHasher) equalizedCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.equalized
}

var _ users.PasswordHasher = (*fastHasher)(nil)

// quietLogger drops everything
type quietLogger struct{}

func (quietLogger) Debug(format string, args ...any) {}
func (quietLogger) Info(format string, args ...any)  {}
func (quietLogger) Warn(format string, args ...any)  {}
func (quietLogger) Error(format string, args ...any) {}

func newTestService(store users.UserStore, sink users.MailSink) (*users.UserService, *fastHasher) {
	hasher := &fastHasher{}
	tokens := users.NewTokenService([]byte("test-signing-key"), "go-users-test", quietLogger{})
	service := users.NewUserService(store, hasher, tokens).
		WithLogger(quietLogger{})
	if sink != nil {
		service = service.WithMailSink(sink)
	}
	return service, hasher
}

func seedUser(s users.UserStore, name, email, password, role, status string) *users.User {
	user, err := s.Insert(context.Background(), &users.User{
		FullName:       name,
		Email:          email,
		HashedPassword: "hashed:" + password,
		Role:           role,
		Status:         status,
	})
	if err != nil {
		panic(err)
	}
	return user
}

func strPtr(s string) *string { return &s }
