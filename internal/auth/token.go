package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer   = "tontine"
	defaultTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidConfig reports a missing signing key or a bad ttl.
	ErrInvalidConfig = errors.New("invalid token config")
	// ErrInvalidToken covers every verification failure: tampering, expiry, wrong issuer.
	ErrInvalidToken = errors.New("invalid token")
)

// Config holds the signing settings for bearer credentials.
type Config struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
}

// Identity is what a verified credential proves about the caller.
type Identity struct {
	UserID tontine.UserID
	Role   tontine.Role
	Email  string
}

// Claims is the JWT payload.
type Claims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer credentials.
type TokenManager struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenManager validates cfg and returns a manager using now as its clock.
func NewTokenManager(cfg Config, now func() time.Time) (*TokenManager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidConfig)
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must not be negative", ErrInvalidConfig)
	}
	if now == nil {
		now = time.Now
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{
		signingKey: cfg.SigningKey,
		issuer:     issuer,
		ttl:        ttl,
		now:        now,
	}, nil
}

// Issue signs a credential for user and returns it with its expiry.
func (manager *TokenManager) Issue(user tontine.User) (string, time.Time, error) {
	issuedAt := manager.now().UTC()
	expiresAt := issuedAt.Add(manager.ttl)
	claims := Claims{
		UserID: user.ID.Int64(),
		Role:   user.Role.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    manager.issuer,
			Subject:   fmt.Sprintf("%d", user.ID.Int64()),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(manager.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a credential and returns the identity it carries.
func (manager *TokenManager) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (any, error) {
		return manager.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(manager.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(manager.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	userID, err := tontine.NewUserID(claims.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, err := tontine.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UserID: userID, Role: role, Email: claims.Email}, nil
}

// TTL reports how long issued credentials stay valid.
func (manager *TokenManager) TTL() time.Duration {
	return manager.ttl
}
