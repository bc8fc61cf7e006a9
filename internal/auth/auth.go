package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mycoool/imonitor/internal/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned for missing or wrong admin credentials
var ErrUnauthorized = errors.New("unauthorized")

// Realm is sent in the WWW-Authenticate challenge
const Realm = "iMonitor"

const defaultTokenExpiry = 24 * time.Hour

// ConfigSource provides the live admin credentials
type ConfigSource interface {
	Current() *types.AppConfig
}

// Authenticator checks admin credentials against the current config
type Authenticator struct {
	cfg ConfigSource
	// used when no jwt_secret is configured; tokens then die with the process
	fallbackSecret []byte
	now            func() time.Time
}

// New creates an Authenticator reading credentials from cfg on every call
func New(cfg ConfigSource) *Authenticator {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("auth: failed to seed jwt secret: %v", err))
	}
	return &Authenticator{cfg: cfg, fallbackSecret: secret, now: time.Now}
}

// HashPassword returns a bcrypt hash suitable for admin_pass
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword accepts either a bcrypt hash or a plain text stored value
func VerifyPassword(password, stored string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Enabled reports whether admin routes are gated at all
func (a *Authenticator) Enabled() bool {
	return a.config().AuthEnabled()
}

// CheckBasic validates a username/password pair
func (a *Authenticator) CheckBasic(username, password string) error {
	cfg := a.config()
	if !cfg.AuthEnabled() {
		return nil
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.AdminUser)) == 1
	passOK := VerifyPassword(password, cfg.AdminPass)
	if !userOK || !passOK {
		return ErrUnauthorized
	}
	return nil
}

// Authorize validates an Authorization header value: Basic or Bearer.
// Returns the admin username on success.
func (a *Authenticator) Authorize(header string) (string, error) {
	cfg := a.config()
	if !cfg.AuthEnabled() {
		return cfg.AdminUser, nil
	}

	switch {
	case strings.HasPrefix(header, "Basic "):
		username, password, ok := parseBasic(strings.TrimPrefix(header, "Basic "))
		if !ok {
			return "", ErrUnauthorized
		}
		if err := a.CheckBasic(username, password); err != nil {
			return "", err
		}
		return username, nil
	case strings.HasPrefix(header, "Bearer "):
		claims, err := a.ValidateToken(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			return "", ErrUnauthorized
		}
		// renaming the admin user invalidates outstanding tokens
		if claims.Username != cfg.AdminUser {
			return "", ErrUnauthorized
		}
		return claims.Username, nil
	default:
		return "", ErrUnauthorized
	}
}

func parseBasic(encoded string) (string, string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	return username, password, ok
}

// GenerateToken issues an admin session token
func (a *Authenticator) GenerateToken(username string) (string, time.Time, error) {
	now := a.now()
	expiry := defaultTokenExpiry
	if hours := a.config().JWTExpiryDuration; hours > 0 {
		expiry = time.Duration(hours) * time.Hour
	}
	expiresAt := now.Add(expiry)

	claims := &types.Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "imonitor",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret())
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and verifies an admin session token
func (a *Authenticator) ValidateToken(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (a *Authenticator) secret() []byte {
	if s := a.config().JWTSecret; s != "" {
		return []byte(s)
	}
	return a.fallbackSecret
}

func (a *Authenticator) config() *types.AppConfig {
	if a.cfg != nil {
		if cfg := a.cfg.Current(); cfg != nil {
			return cfg
		}
	}
	return &types.AppConfig{}
}
