package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/golang-jwt/jwt/v5"
)

var issuedAt = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func mustTokenManager(test *testing.T, cfg Config, now func() time.Time) *TokenManager {
	test.Helper()
	manager, err := NewTokenManager(cfg, now)
	if err != nil {
		test.Fatalf("token manager: %v", err)
	}
	return manager
}

func sampleUser() tontine.User {
	return tontine.User{ID: 42, Role: tontine.RoleOrganizer, Email: "awa@example.com"}
}

func TestIssueAndVerifyRoundTrip(test *testing.T) {
	test.Parallel()
	manager := mustTokenManager(test, Config{SigningKey: []byte("secret-key")}, func() time.Time { return issuedAt })

	signed, expiresAt, err := manager.Issue(sampleUser())
	if err != nil {
		test.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(issuedAt.Add(defaultTokenTTL)) {
		test.Fatalf("expected default ttl expiry, got %s", expiresAt)
	}
	identity, err := manager.Verify("  " + signed + "  ")
	if err != nil {
		test.Fatalf("verify: %v", err)
	}
	expected := Identity{UserID: 42, Role: tontine.RoleOrganizer, Email: "awa@example.com"}
	if identity != expected {
		test.Fatalf("expected %+v, got %+v", expected, identity)
	}
}

func TestVerifyRejectsBadCredentials(test *testing.T) {
	test.Parallel()
	manager := mustTokenManager(test, Config{SigningKey: []byte("secret-key"), TTL: time.Hour}, func() time.Time { return issuedAt })
	signed, _, err := manager.Issue(sampleUser())
	if err != nil {
		test.Fatalf("issue: %v", err)
	}

	otherKey := mustTokenManager(test, Config{SigningKey: []byte("other-key"), TTL: time.Hour}, func() time.Time { return issuedAt })
	otherIssuer := mustTokenManager(test, Config{SigningKey: []byte("secret-key"), Issuer: "elsewhere", TTL: time.Hour}, func() time.Time { return issuedAt })
	expired := mustTokenManager(test, Config{SigningKey: []byte("secret-key"), TTL: time.Hour}, func() time.Time { return issuedAt.Add(2 * time.Hour) })

	impostor := sampleUser()
	impostor.ID = 7
	impostorToken, _, err := manager.Issue(impostor)
	if err != nil {
		test.Fatalf("issue: %v", err)
	}
	signedParts := strings.Split(signed, ".")
	tampered := strings.Join([]string{signedParts[0], strings.Split(impostorToken, ".")[1], signedParts[2]}, ".")

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 42, Role: "organizer"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		test.Fatalf("none token: %v", err)
	}

	testCases := []struct {
		name    string
		manager *TokenManager
		token   string
	}{
		{name: "wrong signing key", manager: otherKey, token: signed},
		{name: "wrong issuer", manager: otherIssuer, token: signed},
		{name: "expired", manager: expired, token: signed},
		{name: "tampered", manager: manager, token: tampered},
		{name: "unsigned", manager: manager, token: noneToken},
		{name: "garbage", manager: manager, token: "not-a-token"},
		{name: "empty", manager: manager, token: ""},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			_, verifyErr := testCase.manager.Verify(testCase.token)
			if !errors.Is(verifyErr, ErrInvalidToken) {
				test.Fatalf("expected ErrInvalidToken, got %v", verifyErr)
			}
		})
	}
}

func TestVerifyRejectsUnknownRole(test *testing.T) {
	test.Parallel()
	manager := mustTokenManager(test, Config{SigningKey: []byte("secret-key")}, func() time.Time { return issuedAt })
	user := sampleUser()
	user.Role = "admin"
	signed, _, err := manager.Issue(user)
	if err != nil {
		test.Fatalf("issue: %v", err)
	}
	if _, err := manager.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		test.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenManagerValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewTokenManager(Config{}, nil); !errors.Is(err, ErrInvalidConfig) {
		test.Fatalf("expected ErrInvalidConfig for empty key, got %v", err)
	}
	if _, err := NewTokenManager(Config{SigningKey: []byte("k"), TTL: -time.Second}, nil); !errors.Is(err, ErrInvalidConfig) {
		test.Fatalf("expected ErrInvalidConfig for negative ttl, got %v", err)
	}
	manager := mustTokenManager(test, Config{SigningKey: []byte("k"), Issuer: "  "}, nil)
	if manager.issuer != defaultIssuer || manager.TTL() != defaultTokenTTL {
		test.Fatalf("expected defaults, got issuer=%q ttl=%s", manager.issuer, manager.TTL())
	}
	if !strings.Contains(ErrInvalidToken.Error(), "token") {
		test.Fatalf("unexpected sentinel text %q", ErrInvalidToken.Error())
	}
}
