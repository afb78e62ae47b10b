package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// BunUserStore is the bun backed UserStore. Works against Postgres in
// production and the sqlite shim in tests.
type BunUserStore struct {
	db *bun.DB
}

// NewBunUserStore creates a store over the given bun handle
func NewBunUserStore(db *bun.DB) *BunUserStore {
	return &BunUserStore{db: db}
}

var _ UserStore = (*BunUserStore)(nil)

func (s *BunUserStore) Insert(ctx context.Context, user *User) (*User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = NormalizeEmail(user.Email)
	user.EnsureDefaults()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, translateStoreError(err)
	}
	return user, nil
}

func (s *BunUserStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user := &User{}
	err := s.db.NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return user, nil
}

func (s *BunUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	err := s.db.NewSelect().
		Model(user).
		Where("lower(?TableAlias.email) = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return user, nil
}

// Update loads, patches and writes back in one transaction. The id is
// immutable; updated_at is refreshed on every call, even for empty patches.
func (s *BunUserStore) Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error) {
	user := &User{}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(user).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return translateStoreError(err)
		}

		patch.Apply(user)
		user.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().Model(user).WherePK().Exec(ctx); err != nil {
			return translateStoreError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *BunUserStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, translateStoreError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, translateStoreError(err)
	}
	return rows > 0, nil
}

func (s *BunUserStore) Count(ctx context.Context, filter *UserFilter) (int, error) {
	q := s.db.NewSelect().Model((*User)(nil))
	count, err := applyUserFilter(q, filter).Count(ctx)
	if err != nil {
		return 0, translateStoreError(err)
	}
	return count, nil
}

func (s *BunUserStore) List(ctx context.Context, filter *UserFilter, opts ListOptions) ([]*User, error) {
	var list []*User

	q := s.db.NewSelect().Model(&list)
	q = applyUserFilter(q, filter)

	column := orderColumn(opts.OrderBy)
	direction := "DESC"
	if opts.Asc {
		direction = "ASC"
	}
	// id is always the final sort key so pagination stays stable when the
	// chosen column has ties
	q = q.Order(column + " " + direction).Order("id " + direction)

	if opts.Skip > 0 {
		q = q.Offset(opts.Skip)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, translateStoreError(err)
	}
	return list, nil
}

func (s *BunUserStore) FindOne(ctx context.Context, filter *UserFilter) (*User, error) {
	user := &User{}
	q := s.db.NewSelect().Model(user)
	err := applyUserFilter(q, filter).Limit(1).Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return user, nil
}

func applyUserFilter(q *bun.SelectQuery, filter *UserFilter) *bun.SelectQuery {
	if filter == nil {
		return q
	}
	if filter.Email != nil {
		q = q.Where("lower(?TableAlias.email) = ?", NormalizeEmail(*filter.Email))
	}
	if filter.Status != nil {
		q = q.Where("?TableAlias.status = ?", *filter.Status)
	}
	if filter.Role != nil {
		q = q.Where("?TableAlias.role = ?", *filter.Role)
	}
	return q
}

func orderColumn(key string) string {
	switch key {
	case OrderByFullName, OrderByEmail:
		return key
	default:
		return OrderByFullName
	}
}

// translateStoreError maps driver failures onto the service taxonomy so raw
// database messages never leak past the store.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}

	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}

	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, ErrDatabaseUnavailable.Message).
		WithCode(ErrDatabaseUnavailable.Code)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}

	// sqlite (tests) reports constraint violations as plain strings
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
