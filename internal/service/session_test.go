package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rideshare-registry/internal/domain"
)

func newTestIssuer(t *testing.T, now time.Time) *jwtIssuer {
	t.Helper()
	issuer, err := NewSessionIssuer(SessionConfig{Secret: "test-secret-key", TTL: time.Hour, Issuer: "rideshare-registry"})
	if err != nil {
		t.Fatalf("NewSessionIssuer() err=%v", err)
	}
	j := issuer.(*jwtIssuer)
	j.now = func() time.Time { return now }
	return j
}

func assertAuthError(t *testing.T, err error, want domain.AuthReason) {
	t.Helper()
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err=%v, want AuthError", err)
	}
	if authErr.Reason != want {
		t.Fatalf("reason=%q, want %q", authErr.Reason, want)
	}
}

func TestSession_IssueAndVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	issuer := newTestIssuer(t, now)

	token, issued, err := issuer.Issue("driverA", domain.RoleDriver)
	if err != nil {
		t.Fatalf("Issue() err=%v", err)
	}
	if !issued.ExpiresAt.Equal(now.Add(time.Hour)) || issued.TokenID == "" {
		t.Fatalf("issued=%+v", issued)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() err=%v", err)
	}
	if got.Identity != "driverA" || got.Role != domain.RoleDriver {
		t.Fatalf("session=%+v", got)
	}
	if !got.IssuedAt.Equal(now) || !got.ExpiresAt.Equal(issued.ExpiresAt) || got.TokenID != issued.TokenID {
		t.Fatalf("session=%+v, want %+v", got, issued)
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	issuer := newTestIssuer(t, now)

	token, _, err := issuer.Issue("riderB", domain.RolePassenger)
	if err != nil {
		t.Fatalf("Issue() err=%v", err)
	}

	issuer.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = issuer.Verify(token)
	assertAuthError(t, err, domain.AuthExpired)
}

func TestSession_Invalid(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(t, now)
	token, _, err := issuer.Issue("driverA", domain.RoleDriver)
	if err != nil {
		t.Fatalf("Issue() err=%v", err)
	}

	other := newTestIssuer(t, now)
	other.secret = []byte("another-secret")
	foreign, _, err := other.Issue("driverA", domain.RoleDriver)
	if err != nil {
		t.Fatalf("Issue() err=%v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, sessionClaims{
		Role: domain.RoleDriver,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "driverA",
			Issuer:    "rideshare-registry",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(issuer.secret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "driverA",
			Issuer:    "rideshare-registry",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(issuer.secret)
	if err != nil {
		t.Fatalf("sign no-role: %v", err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: domain.RoleDriver,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "driverA",
			Issuer:   "rideshare-registry",
			IssuedAt: jwt.NewNumericDate(now),
		},
	}).SignedString(issuer.secret)
	if err != nil {
		t.Fatalf("sign no-exp: %v", err)
	}

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"tampered":       tampered,
		"wrong secret":   foreign,
		"wrong alg":      hs512,
		"missing role":   noRole,
		"missing expiry": noExpiry,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Verify(tok)
			assertAuthError(t, err, domain.AuthInvalid)
		})
	}
}

func TestNewSessionIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewSessionIssuer(SessionConfig{Secret: "  "}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	issuer, err := NewSessionIssuer(SessionConfig{Secret: "s"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ttl := issuer.(*jwtIssuer).ttl; ttl != defaultTokenTTL {
		t.Fatalf("ttl=%v, want %v", ttl, defaultTokenTTL)
	}
}
