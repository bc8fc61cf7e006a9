package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mycoool/imonitor/internal/types"
	"gopkg.in/yaml.v2"
)

// DefaultPath is the registry config file looked up in the working directory
const DefaultPath = "app.yaml"

const (
	EnvPublicURL      = "IMONITOR_PUBLIC_URL"
	EnvOfflineTimeout = "IMONITOR_OFFLINE_TIMEOUT"
	EnvBind           = "IMONITOR_BIND"
	EnvAdminUser      = "IMONITOR_ADMIN_USER"
	EnvAdminPass      = "IMONITOR_ADMIN_PASS"
	EnvDB             = "IMONITOR_DB"
	EnvJWTSecret      = "IMONITOR_JWT_SECRET"
)

// Default returns the built-in registry configuration
func Default() *types.AppConfig {
	return &types.AppConfig{
		PublicURL:         "http://localhost:8080",
		Bind:              "[::]:8080",
		OfflineTimeout:    10,
		JWTExpiryDuration: 24,
		Database: types.DatabaseConfig{
			Driver:             "cgo",
			Database:           "data/imonitor.db",
			EventRetentionDays: 30,
		},
		Metrics: types.MetricsConfig{
			Exporter: "none",
		},
	}
}

// Load reads the config file at path, creating it with defaults when missing,
// and applies IMONITOR_* environment overrides on top.
func Load(path string) (*types.AppConfig, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg, err := readFile(path)
	if os.IsNotExist(err) {
		cfg = Default()
		cfg.JWTSecret = randomSecret()
		if saveErr := Save(path, cfg); saveErr != nil {
			log.Printf("Warning: failed to save default app config: %v", saveErr)
		} else {
			log.Printf("Created default %s configuration file", path)
		}
	} else if err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	return cfg, nil
}

func readFile(path string) (*types.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// start from defaults so keys missing from the file keep sane values
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, keeping a .bak of the previous file
func Save(path string, cfg *types.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("app config is empty")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal app config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			log.Printf("Warning: failed to backup app config file: %v", err)
		}
	}

	// the file carries admin credentials and the jwt secret
	if err := os.WriteFile(path, data, 0600); err != nil {
		if _, backupErr := os.Stat(path + ".bak"); backupErr == nil {
			if restoreErr := os.Rename(path+".bak", path); restoreErr != nil {
				log.Printf("Error: failed to restore backup app config file: %v", restoreErr)
			}
		}
		return fmt.Errorf("failed to save app config: %w", err)
	}
	return nil
}

func applyEnv(cfg *types.AppConfig) error {
	if v, ok := os.LookupEnv(EnvPublicURL); ok && v != "" {
		cfg.PublicURL = v
	}
	if v, ok := os.LookupEnv(EnvBind); ok && v != "" {
		cfg.Bind = v
	}
	if v, ok := os.LookupEnv(EnvOfflineTimeout); ok && v != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || secs <= 0 {
			return fmt.Errorf("%s must be a positive number of seconds, got %q", EnvOfflineTimeout, v)
		}
		cfg.OfflineTimeout = secs
	}
	if v, ok := os.LookupEnv(EnvAdminUser); ok {
		cfg.AdminUser = v
	}
	if v, ok := os.LookupEnv(EnvAdminPass); ok {
		cfg.AdminPass = v
	}
	if v, ok := os.LookupEnv(EnvDB); ok && v != "" {
		cfg.Database.Database = v
	}
	if v, ok := os.LookupEnv(EnvJWTSecret); ok && v != "" {
		cfg.JWTSecret = v
	}
	return nil
}

func normalize(cfg *types.AppConfig) {
	def := Default()
	if cfg.OfflineTimeout <= 0 {
		cfg.OfflineTimeout = def.OfflineTimeout
	}
	if cfg.Bind == "" {
		cfg.Bind = def.Bind
	}
	if cfg.JWTExpiryDuration <= 0 {
		cfg.JWTExpiryDuration = def.JWTExpiryDuration
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = def.Database.Database
	}
	if cfg.Metrics.Exporter == "" {
		cfg.Metrics.Exporter = def.Metrics.Exporter
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
