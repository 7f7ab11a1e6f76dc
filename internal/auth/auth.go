package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clinic-booking-api/internal/model"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownEmail = errors.New("unknown email")
)

// TokenTTL is the only time-based invalidation; there is no revocation list.
const TokenTTL = time.Hour

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what a verified token proves.
type Identity struct {
	Email     string
	ExpiresAt time.Time
}

// UserFinder is the slice of the store the validator needs to decide issuance.
type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

type Validator struct {
	users  UserFinder
	secret []byte
	now    func() time.Time
}

func NewValidator(users UserFinder, secret string) *Validator {
	return &Validator{users: users, secret: []byte(secret), now: time.Now}
}

// Issue signs a token only for an email that belongs to a known user.
func (v *Validator) Issue(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrUnknownEmail
	}
	if _, err := v.users.UserByEmail(ctx, email); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", ErrUnknownEmail
		}
		return "", err
	}
	return MakeToken(email, v.secret, v.now())
}

func (v *Validator) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}
	c, err := ParseToken(raw, v.secret, v.now())
	if err != nil {
		return Identity{}, err
	}
	return Identity{Email: c.Email, ExpiresAt: c.ExpiresAt.Time}, nil
}

// FromHeader strips the Bearer scheme; an empty result means no token was presented.
func FromHeader(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func MakeToken(email string, secret []byte, now time.Time) (string, error) {
	c := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

func ParseToken(raw string, secret []byte, now time.Time) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.Email == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}
