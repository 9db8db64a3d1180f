// Package session issues and validates bearer credentials. A credential is
// an HS256 JWT whose jti identifies it in the revocation store.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/clock"
)

const tokenTypeAccess = "access"

// Session is the validated identity behind a credential. It never changes
// after issue; refreshing mints a new credential with a new ID.
type Session struct {
	ID        string
	SubjectID string
	Role      access.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the JWT payload. Type separates access credentials from any
// other token signed with the same secret.
type Claims struct {
	Role string `json:"role"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Credential is a freshly issued token and the session it encodes.
type Credential struct {
	Token   string
	Session Session
}

// RevocationStore answers whether a credential id has been revoked.
type RevocationStore interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// Revoke records tokenID as revoked until the given instant, after which
	// the credential has expired anyway and the entry may be dropped.
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// Issuer signs new access credentials.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(secret string, ttl time.Duration, clk clock.Clock) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

func (i *Issuer) Issue(subjectID string, role access.Role) (Credential, error) {
	now := i.clock.Now().Truncate(time.Second)
	s := Session{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	claims := Claims{
		Role: string(role),
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.SubjectID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign access token: %w", err)
	}
	return Credential{Token: signed, Session: s}, nil
}

// Validator turns a bearer credential into a Session.
type Validator struct {
	secret      []byte
	revocations RevocationStore
	clock       clock.Clock
}

func NewValidator(secret string, revocations RevocationStore, clk clock.Clock) *Validator {
	return &Validator{secret: []byte(secret), revocations: revocations, clock: clk}
}

var errMissingClaim = errors.New("required claim missing")

// Validate checks, in order: signature and shape (AUTH_MALFORMED), expiry
// against the injected clock (AUTH_EXPIRED), then the revocation store
// (AUTH_REVOKED). Expiry is checked here rather than by the jwt parser so
// the service clock is the only time source.
func (v *Validator) Validate(ctx context.Context, credential string) (Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Session{}, apperror.AuthMalformed(err)
	}
	if claims.Type != tokenTypeAccess || claims.ID == "" || claims.Subject == "" || claims.ExpiresAt == nil {
		return Session{}, apperror.AuthMalformed(errMissingClaim)
	}

	s := Session{
		ID:        claims.ID,
		SubjectID: claims.Subject,
		Role:      access.ParseRole(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time.UTC()
	}

	if !v.clock.Now().Before(s.ExpiresAt) {
		return Session{}, apperror.AuthExpired()
	}

	revoked, err := v.revocations.IsRevoked(ctx, s.ID)
	if err != nil {
		return Session{}, apperror.StoreUnavailable(fmt.Errorf("revocation lookup: %w", err))
	}
	if revoked {
		return Session{}, apperror.AuthRevoked()
	}
	return s, nil
}
