package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/cbwis-backend/pkg/config"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "cbwis-idp"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	token, err := MintAccessToken(testCfg, now, 30*time.Minute, AccessTokenPayload{
		Subject: "uid-123",
		Email:   "ops@cbwis.test",
		Role:    enums.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Subject != "uid-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.EffectiveRole() != enums.RoleAdmin {
		t.Fatalf("unexpected role %s", claims.EffectiveRole())
	}
	if claims.Actor() != "ops@cbwis.test" {
		t.Fatalf("expected email as actor, got %s", claims.Actor())
	}
	if claims.Issuer != testCfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
	if !claims.ExpiresAt.Time.After(claims.IssuedAt.Time) {
		t.Fatalf("expiry must follow issue time")
	}
}

func TestClaimsDefaults(t *testing.T) {
	claims := &AccessTokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "uid-9"}}
	if claims.EffectiveRole() != enums.RoleStaff {
		t.Fatalf("missing role should fall back to staff")
	}
	if claims.Actor() != "uid-9" {
		t.Fatalf("expected subject as actor, got %s", claims.Actor())
	}
	claims.Role = "superuser"
	if claims.EffectiveRole() != enums.RoleStaff {
		t.Fatalf("unknown role should fall back to staff")
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	now := time.Now().UTC()
	valid, err := MintAccessToken(testCfg, now, time.Minute, AccessTokenPayload{Subject: "uid"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	expired, err := MintAccessToken(testCfg, now.Add(-time.Hour), time.Minute, AccessTokenPayload{Subject: "uid"})
	if err != nil {
		t.Fatalf("mint expired: %v", err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "uid", Issuer: testCfg.Issuer},
	}).SignedString([]byte(testCfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testCfg.Issuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString([]byte(testCfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
	}{
		"wrong secret": {cfg: config.JWTConfig{Secret: "other", Issuer: testCfg.Issuer}, token: valid},
		"wrong issuer": {cfg: config.JWTConfig{Secret: testCfg.Secret, Issuer: "someone-else"}, token: valid},
		"expired":      {cfg: testCfg, token: expired},
		"no expiry":    {cfg: testCfg, token: noExpiry},
		"no subject":   {cfg: testCfg, token: noSubject},
		"garbage":      {cfg: testCfg, token: "not-a-token"},
		"tampered":     {cfg: testCfg, token: strings.TrimSuffix(valid, valid[len(valid)-2:]) + "xx"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAccessToken(tc.cfg, tc.token); err == nil {
				t.Fatalf("expected parse failure")
			}
		})
	}
}

func TestParseAccessTokenClassifiesFailures(t *testing.T) {
	now := time.Now().UTC()
	expired, err := MintAccessToken(testCfg, now.Add(-time.Hour), time.Minute, AccessTokenPayload{Subject: "uid"})
	if err != nil {
		t.Fatalf("mint expired: %v", err)
	}
	if _, err := ParseAccessToken(testCfg, expired); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := ParseAccessToken(testCfg, "not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	// Inside the skew window the token still verifies.
	justExpired, err := MintAccessToken(testCfg, now.Add(-time.Minute-10*time.Second), time.Minute, AccessTokenPayload{Subject: "uid"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testCfg, justExpired); err != nil {
		t.Fatalf("expected token within leeway to parse, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":     "abc",
		"bearer   abc  ": "abc",
		"BEARER abc":     "abc",
		"abc":            "abc",
		"Bearer":         "",
		"":               "",
	}
	for header, want := range cases {
		if got := BearerToken(header); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	now := time.Now()
	if _, err := MintAccessToken(config.JWTConfig{}, now, time.Minute, AccessTokenPayload{Subject: "uid"}); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := MintAccessToken(testCfg, now, 0, AccessTokenPayload{Subject: "uid"}); err == nil {
		t.Fatalf("expected ttl error")
	}
	if _, err := MintAccessToken(testCfg, now, time.Minute, AccessTokenPayload{}); err == nil {
		t.Fatalf("expected subject error")
	}
	if _, err := MintAccessToken(testCfg, now, time.Minute, AccessTokenPayload{Subject: "uid", Role: "root"}); err == nil {
		t.Fatalf("expected role error")
	}
}
