package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no credential was supplied at all.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken is returned when the credential does not decode or
	// verify, or is missing the identity claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the credential verified but is past
	// its expiry. Kept distinct from ErrInvalidToken so clients can tell a
	// retryable failure (refresh and reconnect) from a non-retryable one.
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is the authenticated principal extracted from a token.
type Identity struct {
	UserID   string
	UserName string
}

// Claims carries the platform's token payload: the user id in the standard
// subject claim plus the display name.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the platform's auth service.
// The chat core only ever verifies; issuance lives with the account system
// and, for development, with cmd/mktoken.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for HS256 tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates token and returns the identity it carries.
func (v *Verifier) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Name == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{UserID: claims.Subject, UserName: claims.Name}, nil
}

// Issue mints a token for the given user, valid for ttl.
func (v *Verifier) Issue(userID, userName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
