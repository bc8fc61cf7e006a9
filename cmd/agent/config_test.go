package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mycoool/imonitor/internal/sampler"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveConfigPrecedence(t *testing.T) {
	saved := sampler.Settings{Token: "saved", Endpoint: "http://saved", Interval: 30, Flag: "S"}
	env := envMap(map[string]string{envToken: "env", envInterval: "7"})

	cfg, err := resolveConfig(flagValues{Endpoint: "http://flag/"}, env, saved)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Token != "env" {
		t.Fatalf("expected env token, got %q", cfg.Token)
	}
	if cfg.Endpoint != "http://flag" {
		t.Fatalf("expected flag endpoint without trailing slash, got %q", cfg.Endpoint)
	}
	if cfg.Interval != 7*time.Second {
		t.Fatalf("expected 7s from env, got %s", cfg.Interval)
	}
	if cfg.Flag != "S" {
		t.Fatalf("expected saved flag, got %q", cfg.Flag)
	}
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := resolveConfig(flagValues{Token: "t", Endpoint: "http://x"}, envMap(nil), sampler.Settings{})
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Interval != sampler.DefaultInterval {
		t.Fatalf("expected default interval, got %s", cfg.Interval)
	}
	if cfg.Flag != sampler.DefaultFlag {
		t.Fatalf("expected default flag, got %q", cfg.Flag)
	}
}

func TestResolveConfigInterval(t *testing.T) {
	base := flagValues{Token: "t", Endpoint: "http://x"}
	cases := map[string]time.Duration{
		"10":     10 * time.Second,
		"1500ms": 1500 * time.Millisecond,
		"100ms":  sampler.MinInterval,
		"0":      sampler.DefaultInterval,
	}
	for raw, want := range cases {
		f := base
		f.Interval = raw
		cfg, err := resolveConfig(f, envMap(nil), sampler.Settings{})
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if cfg.Interval != want {
			t.Fatalf("%s: expected %s, got %s", raw, want, cfg.Interval)
		}
	}

	base.Interval = "soon"
	if _, err := resolveConfig(base, envMap(nil), sampler.Settings{}); err == nil {
		t.Fatalf("expected error for invalid interval")
	}
}

func TestResolveConfigMissing(t *testing.T) {
	if _, err := resolveConfig(flagValues{Endpoint: "http://x"}, envMap(nil), sampler.Settings{}); err == nil {
		t.Fatalf("expected error without token")
	}
	if _, err := resolveConfig(flagValues{Token: "t"}, envMap(nil), sampler.Settings{}); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}

func TestSettingsRoundTripThroughState(t *testing.T) {
	path := sampler.StatePath(t.TempDir())
	cfg := sampler.Config{Token: "t", Endpoint: "http://x", Interval: 9 * time.Second, Flag: "F"}
	if err := sampler.SaveSettings(path, settingsFromConfig(cfg)); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	saved, err := sampler.LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	got, err := resolveConfig(flagValues{}, envMap(nil), saved)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if got != cfg {
		t.Fatalf("expected %+v, got %+v", cfg, got)
	}
}

func TestParseDotEnvLine(t *testing.T) {
	cases := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{"", "", "", false},
		{"# comment", "", "", false},
		{"IMONITOR_TOKEN=abc", "IMONITOR_TOKEN", "abc", true},
		{"export IMONITOR_FLAG='🇩🇪'", "IMONITOR_FLAG", "🇩🇪", true},
		{`IMONITOR_ENDPOINT="http://h:8080" `, "IMONITOR_ENDPOINT", "http://h:8080", true},
		{"IMONITOR_INTERVAL=5 # seconds", "IMONITOR_INTERVAL", "5", true},
		{"=novalue", "", "", false},
		{"garbage", "", "", false},
	}
	for _, c := range cases {
		key, val, ok := parseDotEnvLine(c.line)
		if ok != c.ok || key != c.key || val != c.val {
			t.Fatalf("%q: got (%q, %q, %v), want (%q, %q, %v)", c.line, key, val, ok, c.key, c.val, c.ok)
		}
	}
}

func TestLoadDotEnvFilesKeepsExistingEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envToken, "from-env")
	t.Setenv(envEndpoint, "")
	os.Unsetenv(envEndpoint)

	content := "IMONITOR_TOKEN=from-file\nIMONITOR_ENDPOINT=http://file\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := loadDotEnvFiles("", dir); err != nil {
		t.Fatalf("loadDotEnvFiles: %v", err)
	}
	if got := os.Getenv(envToken); got != "from-env" {
		t.Fatalf("existing env overwritten: %q", got)
	}
	if got := os.Getenv(envEndpoint); got != "http://file" {
		t.Fatalf("expected endpoint from file, got %q", got)
	}
}

func TestLoadDotEnvFilesMissingExplicitFile(t *testing.T) {
	if err := loadDotEnvFiles(filepath.Join(t.TempDir(), "nope.env"), ""); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}
