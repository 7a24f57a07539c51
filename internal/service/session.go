package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rideshare-registry/internal/domain"
)

const defaultTokenTTL = 15 * time.Minute

// SessionConfig configures token signing.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// SessionIssuer mints and verifies stateless bearer tokens carrying a role
// claim. There is no revocation: logout only acknowledges.
type SessionIssuer interface {
	Issue(identity string, role domain.Role) (string, domain.Session, error)
	Verify(token string) (domain.Session, error)
}

type sessionClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type jwtIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewSessionIssuer(cfg SessionConfig) (SessionIssuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	return &jwtIssuer{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

func (s *jwtIssuer) Issue(identity string, role domain.Role) (string, domain.Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	session := domain.Session{
		Identity:  identity,
		Role:      role,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	claims := sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    s.issuer,
			ID:        session.TokenID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			NotBefore: jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, session, nil
}

func (s *jwtIssuer) Verify(token string) (domain.Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Session{}, &domain.AuthError{Reason: domain.AuthExpired}
		}
		return domain.Session{}, &domain.AuthError{Reason: domain.AuthInvalid}
	}
	if claims.Subject == "" || !claims.Role.Valid() || claims.IssuedAt == nil {
		return domain.Session{}, &domain.AuthError{Reason: domain.AuthInvalid}
	}

	return domain.Session{
		Identity:  claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
	}, nil
}
