package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AppConfig registry config structure, persisted as app.yaml
type AppConfig struct {
	PublicURL           string         `yaml:"public_url" json:"public_url"`
	Bind                string         `yaml:"bind" json:"bind"`
	OfflineTimeout      int            `yaml:"offline_timeout" json:"offline_timeout"` // seconds
	AdminUser           string         `yaml:"admin_user,omitempty" json:"admin_user,omitempty"`
	AdminPass           string         `yaml:"admin_pass,omitempty" json:"-"` // plain text or bcrypt hash
	JWTSecret           string         `yaml:"jwt_secret,omitempty" json:"-"`
	JWTExpiryDuration   int            `yaml:"jwt_expiry_duration" json:"jwt_expiry_duration"` // hours
	ReconcileDuplicates *bool          `yaml:"reconcile_duplicates,omitempty" json:"reconcile_duplicates,omitempty"`
	Database            DatabaseConfig `yaml:"database" json:"database"`
	Metrics             MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// DatabaseConfig database config
type DatabaseConfig struct {
	Driver             string `yaml:"driver" json:"driver"`     // cgo (mattn/go-sqlite3) or pure (modernc.org/sqlite)
	Database           string `yaml:"database" json:"database"` // sqlite file path
	EventRetentionDays int    `yaml:"event_retention_days" json:"event_retention_days"`
}

// MetricsConfig OpenTelemetry exporter settings
type MetricsConfig struct {
	Exporter string `yaml:"exporter" json:"exporter"` // none, stdout, otlphttp, otlpgrpc
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// AuthEnabled reports whether an admin credential pair is configured.
func (c *AppConfig) AuthEnabled() bool {
	return c != nil && c.AdminUser != "" && c.AdminPass != ""
}

// ReconcileEnabled defaults to true when unset.
func (c *AppConfig) ReconcileEnabled() bool {
	if c == nil || c.ReconcileDuplicates == nil {
		return true
	}
	return *c.ReconcileDuplicates
}

// OfflineTimeoutDuration returns the liveness window.
func (c *AppConfig) OfflineTimeoutDuration() time.Duration {
	return time.Duration(c.OfflineTimeout) * time.Second
}

// Claims JWT claim structure for admin sessions
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// WSMessage websocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}
