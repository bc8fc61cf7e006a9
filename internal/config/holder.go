package config

import (
	"log"
	"sync/atomic"

	"github.com/mycoool/imonitor/internal/types"
)

// Holder serves the current config to request handlers and swaps it on reload
type Holder struct {
	path    string
	current atomic.Pointer[types.AppConfig]
}

// NewHolder wraps an already loaded config
func NewHolder(path string, cfg *types.AppConfig) *Holder {
	h := &Holder{path: path}
	h.current.Store(cfg)
	return h
}

// Current returns the active config. Callers must not mutate it.
func (h *Holder) Current() *types.AppConfig {
	return h.current.Load()
}

// Path returns the watched config file
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the config file. Settings that need a restart (bind address,
// database, metrics exporter) keep their running values.
func (h *Holder) Reload() error {
	next, err := readFile(h.path)
	if err != nil {
		return err
	}
	if err := applyEnv(next); err != nil {
		return err
	}
	normalize(next)

	prev := h.Current()
	if prev != nil {
		if next.Bind != prev.Bind || next.Database != prev.Database || next.Metrics != prev.Metrics {
			log.Printf("config: bind/database/metrics changes in %s take effect after restart", h.path)
		}
		next.Bind = prev.Bind
		next.Database = prev.Database
		next.Metrics = prev.Metrics
	}

	h.current.Store(next)
	log.Printf("config: reloaded %s (offline_timeout=%ds, auth=%t, reconcile=%t)",
		h.path, next.OfflineTimeout, next.AuthEnabled(), next.ReconcileEnabled())
	return nil
}
