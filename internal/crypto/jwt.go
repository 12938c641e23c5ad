package crypto

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "tasktrack"

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token has expired")
	ErrMalformedToken  = errors.New("malformed token")
	ErrMissingSubject  = errors.New("token has no subject")
	ErrUnsupportedAlg  = errors.New("unsupported signing algorithm")
	ErrEmptySigningKey = errors.New("signing key must not be empty")
	ErrNonPositiveTTL  = errors.New("token ttl must be positive")
)

// Claims is the decoded payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and decodes HMAC-signed session tokens.
// It holds no per-token state.
type TokenService struct {
	key    []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService for the given key, HMAC algorithm
// name (HS256, HS384, HS512) and token lifetime.
func NewTokenService(key, algorithm string, ttl time.Duration) (*TokenService, error) {
	if key == "" {
		return nil, ErrEmptySigningKey
	}
	if ttl <= 0 {
		return nil, ErrNonPositiveTTL
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, algorithm)
	}

	return &TokenService{
		key:    []byte(key),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token whose subject is userID and which stays valid
// for at least TTL from now. Claims carry whole seconds, so the expiry is
// rounded up to the next second.
func (s *TokenService) Issue(userID int64) (string, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		exp = whole.Add(time.Second)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

// Decode verifies the signature and expiry of token and returns its claims.
func (s *TokenService) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, ErrInvalidToken
	}
}

// ExtractUserID returns the user id carried in the subject claim.
func ExtractUserID(claims *Claims) (int64, error) {
	if claims == nil || claims.Subject == "" {
		return 0, ErrMissingSubject
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformedToken
	}
	return id, nil
}
