package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mycoool/imonitor/internal/sampler"
)

const (
	envToken    = "IMONITOR_TOKEN"
	envEndpoint = "IMONITOR_ENDPOINT"
	envInterval = "IMONITOR_INTERVAL"
	envFlag     = "IMONITOR_FLAG"
	envDataDir  = "IMONITOR_DATA_DIR"
)

// flagValues are the raw command line values; empty means unset
type flagValues struct {
	Token    string
	Endpoint string
	Interval string
	Flag     string
}

// resolveConfig layers flags over environment over the persisted settings
func resolveConfig(flags flagValues, getenv func(string) string, saved sampler.Settings) (sampler.Config, error) {
	cfg := sampler.Config{
		Token:    firstNonEmpty(flags.Token, getenv(envToken), saved.Token),
		Endpoint: firstNonEmpty(flags.Endpoint, getenv(envEndpoint), saved.Endpoint),
		Flag:     firstNonEmpty(flags.Flag, getenv(envFlag), saved.Flag, sampler.DefaultFlag),
	}
	if cfg.Token == "" {
		return cfg, errors.New("missing -token (or IMONITOR_TOKEN)")
	}
	if cfg.Endpoint == "" {
		return cfg, errors.New("missing -endpoint (or IMONITOR_ENDPOINT)")
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	rawInterval := firstNonEmpty(flags.Interval, getenv(envInterval))
	switch {
	case rawInterval != "":
		d, err := parseInterval(rawInterval)
		if err != nil {
			return cfg, err
		}
		cfg.Interval = d
	case saved.Interval > 0:
		cfg.Interval = time.Duration(saved.Interval) * time.Second
	}
	cfg.Interval = sampler.NormalizeInterval(cfg.Interval)
	return cfg, nil
}

// parseInterval accepts whole seconds ("5") or a Go duration ("1500ms")
func parseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: use seconds or a duration like 10s", raw)
	}
	return d, nil
}

func settingsFromConfig(cfg sampler.Config) sampler.Settings {
	return sampler.Settings{
		Token:    cfg.Token,
		Endpoint: cfg.Endpoint,
		Interval: int(cfg.Interval / time.Second),
		Flag:     cfg.Flag,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultDataDir() string {
	if dir := os.Getenv(envDataDir); dir != "" {
		return dir
	}
	if os.Geteuid() == 0 {
		return "/var/lib/imonitor-agent"
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".imonitor-agent")
	}
	return "./agent_data"
}
