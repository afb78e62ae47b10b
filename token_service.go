package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenKind tags a token with its purpose so cross kind presentation is
// rejected: a reset token never grants API access and vice versa.
type TokenKind = string

const (
	// TokenKindAccess authenticates a session, carried as cookie or bearer
	TokenKindAccess TokenKind = "access"
	// TokenKindReset is the single purpose email delivered credential
	TokenKindReset TokenKind = "reset"
)

// Default token lifetimes
const (
	// DefaultAccessTokenTTL is 8 days
	DefaultAccessTokenTTL = 8 * 24 * time.Hour
	// DefaultResetTokenTTL is 48 hours
	DefaultResetTokenTTL = 48 * time.Hour
)

// TokenClaims is the signed payload of both token kinds
type TokenClaims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"kind,omitempty"`
}

// TokenService issues and validates the two token kinds. Both share one
// signing secret; the kind claim keeps them apart.
type TokenService struct {
	signingKey []byte
	issuer     string
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		signingKey: signingKey,
		issuer:     issuer,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock, used by tests
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// IssueAccess signs an access token with the user id as subject
func (ts *TokenService) IssueAccess(userID uuid.UUID, ttl time.Duration) (string, error) {
	return ts.sign(userID.String(), TokenKindAccess, ttl)
}

// IssueReset signs a reset token with the email as subject
func (ts *TokenService) IssueReset(email string, ttl time.Duration) (string, error) {
	return ts.sign(NormalizeEmail(email), TokenKindReset, ttl)
}

// VerifyAccess validates signature, kind and expiry and returns the user id
func (ts *TokenService) VerifyAccess(token string) (uuid.UUID, error) {
	claims, err := ts.verify(token, TokenKindAccess)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		ts.logger.Error("access token subject is not a uuid: %v", err)
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// VerifyReset validates signature, kind and expiry and returns the email
func (ts *TokenService) VerifyReset(token string) (string, error) {
	claims, err := ts.verify(token, TokenKindReset)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (ts *TokenService) sign(subject string, kind TokenKind, ttl time.Duration) (string, error) {
	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}
	return signed, nil
}

// verify collapses the whole failure taxonomy, malformed, bad signature,
// wrong kind, expired, into ErrInvalidToken. The reason only reaches logs.
func (ts *TokenService) verify(tokenString string, kind TokenKind) (*TokenClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("token validation failed: %v", err)
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token service could not decode claims")
		return nil, ErrInvalidToken
	}

	if claims.Kind != kind {
		ts.logger.Debug("token kind mismatch: got %q want %q", claims.Kind, kind)
		return nil, ErrInvalidToken
	}

	return claims, nil
}
