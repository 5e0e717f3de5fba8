package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Shopper is an authenticated storefront user.
type Shopper struct {
	UserID int64
}

type shopperKey struct{}

// WithShopper returns a copy of ctx carrying s.
func WithShopper(ctx context.Context, s Shopper) context.Context {
	return context.WithValue(ctx, shopperKey{}, s)
}

// ShopperFromContext returns the shopper stored by WithShopper.
func ShopperFromContext(ctx context.Context) (Shopper, bool) {
	s, ok := ctx.Value(shopperKey{}).(Shopper)
	return s, ok
}

// TokenIssuer signs and verifies HS256 shopper tokens whose subject is the
// user id.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. A zero ttl means 24h.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID.
func (t *TokenIssuer) Issue(userID int64) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify parses token and returns its shopper. Expired, malformed or
// foreign-signed tokens return ErrUnauthorized.
func (t *TokenIssuer) Verify(token string) (Shopper, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Shopper{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Shopper{}, errors.Wrap(ErrUnauthorized, "invalid subject")
	}
	return Shopper{UserID: id}, nil
}
