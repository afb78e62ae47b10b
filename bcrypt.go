package users

import (
	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost keeps a single verification above the ~50ms target on
// current server hardware.
const DefaultBcryptCost = 12

// dummyHash is a throwaway bcrypt digest used to equalize timing when
// authenticate misses the user lookup. Verifying against it costs the same
// as verifying a real credential.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// PasswordHasher is the one way hashing port. EqualizeTiming exists so the
// service can spend a verification-shaped amount of work when an account
// lookup misses, keeping authenticate free of timing oracles.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) bool
	EqualizeTiming(plaintext string)
}

// BcryptHasher hashes passwords with bcrypt. The cost parameter is embedded
// in the stored value, so older hashes keep verifying after a cost bump.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher will create a hasher with the given cost, falling back to
// DefaultBcryptCost when the value is out of range
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash generates a salted password hash
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("refusing to hash an empty password", errors.CategoryValidation)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the stored hash. Malformed
// hashes verify as false, they never raise.
func (h *BcryptHasher) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

// EqualizeTiming burns one verification against a constant hash so a missing
// account costs the same wall time as a wrong password.
func (h *BcryptHasher) EqualizeTiming(plaintext string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plaintext))
}

var _ PasswordHasher = (*BcryptHasher)(nil)
