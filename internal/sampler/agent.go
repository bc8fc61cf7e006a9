package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mycoool/imonitor/internal/types"
)

const (
	DefaultInterval = 5 * time.Second
	MinInterval     = time.Second
	pushTimeout     = 10 * time.Second
)

// Agent samples the host on a fixed interval and pushes every snapshot to the registry
type Agent struct {
	cfg     Config
	sampler *Sampler
	http    HTTPClient
}

// Config controls agent behavior.
type Config struct {
	Token    string
	Endpoint string
	Interval time.Duration
	Flag     string
}

// HTTPClient defines the http.Client subset required by Agent.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// New constructs an Agent around source and static host info
func New(cfg Config, source Source, info HostInfo) *Agent {
	cfg.Interval = NormalizeInterval(cfg.Interval)
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Agent{
		cfg:     cfg,
		sampler: NewSampler(source, info, cfg.Token, cfg.Interval),
		http:    &http.Client{Timeout: pushTimeout},
	}
}

// NormalizeInterval applies the default and the one second floor
func NormalizeInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Run loops sample → push → sleep until ctx is cancelled. Cancellation is
// observed between ticks; a tick in progress always completes.
func (a *Agent) Run(ctx context.Context) {
	var state State
	for {
		start := time.Now()
		tickCtx := context.WithoutCancel(ctx)

		var report types.Report
		report, state = a.sampler.Tick(tickCtx, state)
		if err := a.Push(tickCtx, report); err != nil {
			log.Printf("agent: failed to push metrics: %v", err)
		}

		wait := a.cfg.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Push sends one report. Non-2xx responses are returned as errors.
func (a *Agent) Push(ctx context.Context, report types.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint+"/api/report", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("server does not know this token (deleted or evicted): %s", strings.TrimSpace(string(msg)))
		}
		return fmt.Errorf("server rejected payload: %s %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
