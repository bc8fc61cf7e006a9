package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mycoool/imonitor/internal/database"
	"github.com/mycoool/imonitor/internal/types"
	"gorm.io/gorm"
)

var (
	// ErrNodeNotFound indicates no node holds the given token
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidReport indicates a report is missing required fields
	ErrInvalidReport = errors.New("invalid report")
)

// ConfigSource provides the current registry configuration. It is consulted
// on every call so hot-reloaded values take effect immediately.
type ConfigSource interface {
	Current() *types.AppConfig
}

// Recorder receives registry counters.
type Recorder interface {
	ReportAccepted(ctx context.Context)
	ReportRejected(ctx context.Context, reason string)
	NodesEvicted(ctx context.Context, n int)
}

type nopRecorder struct{}

func (nopRecorder) ReportAccepted(context.Context)         {}
func (nopRecorder) ReportRejected(context.Context, string) {}
func (nopRecorder) NodesEvicted(context.Context, int)      {}

// Service owns node identity and liveness
type Service struct {
	db       *gorm.DB
	cfg      ConfigSource
	recorder Recorder
	now      func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a registry service. A nil db falls back to database.GetDB().
func NewService(db *gorm.DB, cfg ConfigSource, opts ...Option) *Service {
	if db == nil {
		db = database.GetDB()
	}
	s := &Service{
		db:       db,
		cfg:      cfg,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report is an incoming snapshot after transport decoding
type Report struct {
	Token     string
	Hostname  string
	IPAddress string
	Meta      map[string]interface{}
	Metrics   map[string]interface{}
}

// Validate rejects reports that must never be partially applied
func (r Report) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return fmt.Errorf("%w: token required", ErrInvalidReport)
	}
	if len(r.Meta) == 0 || len(r.Metrics) == 0 {
		return fmt.Errorf("%w: meta/metrics required", ErrInvalidReport)
	}
	return nil
}

// NodeView is a node as returned by List
type NodeView struct {
	ID        string                 `json:"id"`
	Label     string                 `json:"label"`
	Hostname  string                 `json:"hostname"`
	IPAddress string                 `json:"ip_address"`
	CreatedAt float64                `json:"created_at"`
	LastSeen  *float64               `json:"last_seen"`
	Status    string                 `json:"status"`
	Token     string                 `json:"token,omitempty"`
	Meta      map[string]interface{} `json:"meta"`
	Metrics   map[string]interface{} `json:"metrics"`
}

// NodeList is the listing response
type NodeList struct {
	Nodes       []NodeView `json:"nodes"`
	GeneratedAt float64    `json:"generated_at"`
}

// Reserve mints a new node identity and returns the install command for it
func (s *Service) Reserve(ctx context.Context, label string) (*types.ReserveResponse, error) {
	db, err := s.ensureDB()
	if err != nil {
		return nil, err
	}

	node := &database.Node{
		ID:        uuid.NewString(),
		Label:     strings.TrimSpace(label),
		CreatedAt: s.now(),
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := uniqueToken(ctx, tx)
		if err != nil {
			return err
		}
		node.Token = token
		if err := tx.Create(node).Error; err != nil {
			return err
		}
		return database.CreateEvent(ctx, tx, &database.NodeEvent{
			Action:     database.NodeActionReserve,
			NodeID:     node.ID,
			Label:      node.Label,
			RemoteAddr: remoteAddrFrom(ctx),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reserve node: %w", err)
	}

	return &types.ReserveResponse{
		NodeID:  node.ID,
		Token:   node.Token,
		Command: InstallCommand(s.config().PublicURL, node.Token),
	}, nil
}

// InstallCommand renders the one-line installer for a token
func InstallCommand(publicURL, token string) string {
	base := strings.TrimRight(publicURL, "/")
	return fmt.Sprintf("curl -fsSL %s/install.sh | bash -s -- --token=%s --endpoint=%s", base, token, base)
}

func uniqueToken(ctx context.Context, tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		token, err := GenerateNodeToken()
		if err != nil {
			return "", fmt.Errorf("failed to generate node token: %w", err)
		}
		var count int64
		if err := tx.WithContext(ctx).Model(&database.Node{}).Where("token = ?", token).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return token, nil
		}
	}
	return "", errors.New("failed to generate a unique node token")
}

// ApplyReport records a snapshot for the node holding rep.Token and then
// reconciles duplicates, all inside one transaction. Returns the rows evicted
// by reconciliation.
func (s *Service) ApplyReport(ctx context.Context, rep Report) ([]database.Node, error) {
	if err := rep.Validate(); err != nil {
		s.recorder.ReportRejected(ctx, "invalid")
		return nil, err
	}
	db, err := s.ensureDB()
	if err != nil {
		return nil, err
	}

	metaJSON, err := json.Marshal(rep.Meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	metricsJSON, err := json.Marshal(rep.Metrics)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	reconcile := s.config().ReconcileEnabled()
	now := s.now()
	var evicted []database.Node

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var node database.Node
		if err := tx.Where("token = ?", rep.Token).First(&node).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNodeNotFound
			}
			return err
		}

		if rep.Hostname != "" {
			node.Hostname = rep.Hostname
		}
		if node.Label == "" {
			node.Label = rep.Hostname
		}
		node.IPAddress = rep.IPAddress
		node.Meta = string(metaJSON)
		node.Metrics = string(metricsJSON)
		node.LastSeen = &now

		if err := tx.Save(&node).Error; err != nil {
			return err
		}

		if !reconcile {
			return nil
		}
		var err error
		evicted, err = ReconcileDuplicates(ctx, tx, &node, rep.Hostname, rep.IPAddress)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			s.recorder.ReportRejected(ctx, "unknown_token")
			return nil, err
		}
		s.recorder.ReportRejected(ctx, "store")
		return nil, fmt.Errorf("apply report: %w", err)
	}

	s.recorder.ReportAccepted(ctx)
	if len(evicted) > 0 {
		s.recorder.NodesEvicted(ctx, len(evicted))
	}
	return evicted, nil
}

// List returns every node oldest first, each status evaluated against the same instant
func (s *Service) List(ctx context.Context, includeTokens bool) (*NodeList, error) {
	db, err := s.ensureDB()
	if err != nil {
		return nil, err
	}

	var nodes []database.Node
	if err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&nodes).Error; err != nil {
		return nil, err
	}

	now := s.now()
	timeout := s.config().OfflineTimeoutDuration()
	out := &NodeList{
		Nodes:       make([]NodeView, 0, len(nodes)),
		GeneratedAt: epochSeconds(now),
	}
	for i := range nodes {
		view := mapNode(&nodes[i], now, timeout)
		if !includeTokens {
			view.Token = ""
		}
		out.Nodes = append(out.Nodes, view)
	}
	return out, nil
}

// CountByStatus tallies nodes per derived status
func (s *Service) CountByStatus(ctx context.Context) (map[string]int64, error) {
	db, err := s.ensureDB()
	if err != nil {
		return nil, err
	}

	var seen []database.Node
	if err := db.WithContext(ctx).Select("last_seen").Find(&seen).Error; err != nil {
		return nil, err
	}

	now := s.now()
	timeout := s.config().OfflineTimeoutDuration()
	counts := map[string]int64{StatusPending: 0, StatusOnline: 0, StatusOffline: 0}
	for i := range seen {
		counts[DeriveStatus(seen[i].LastSeen, now, timeout)]++
	}
	return counts, nil
}

// Rename overwrites the operator label
func (s *Service) Rename(ctx context.Context, token, label string) error {
	return s.mutate(ctx, token, database.NodeActionRename, func(tx *gorm.DB, node *database.Node) error {
		return tx.Model(node).Update("label", label).Error
	})
}

// Delete removes the node holding token
func (s *Service) Delete(ctx context.Context, token string) error {
	return s.mutate(ctx, token, database.NodeActionDelete, func(tx *gorm.DB, node *database.Node) error {
		return tx.Delete(node).Error
	})
}

func (s *Service) mutate(ctx context.Context, token, action string, apply func(*gorm.DB, *database.Node) error) error {
	db, err := s.ensureDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var node database.Node
		if err := tx.Where("token = ?", token).First(&node).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNodeNotFound
			}
			return err
		}
		if err := apply(tx, &node); err != nil {
			return err
		}
		return database.CreateEvent(ctx, tx, &database.NodeEvent{
			Action:     action,
			NodeID:     node.ID,
			Label:      node.Label,
			Hostname:   node.Hostname,
			IPAddress:  node.IPAddress,
			RemoteAddr: remoteAddrFrom(ctx),
		})
	})
}

// Events returns the latest audit events
func (s *Service) Events(ctx context.Context, action string, limit int) ([]database.NodeEvent, error) {
	db, err := s.ensureDB()
	if err != nil {
		return nil, err
	}
	return database.NewEventService(db).ListEvents(ctx, strings.ToUpper(action), limit)
}

func mapNode(node *database.Node, now time.Time, timeout time.Duration) NodeView {
	view := NodeView{
		ID:        node.ID,
		Label:     node.Label,
		Hostname:  node.Hostname,
		IPAddress: node.IPAddress,
		CreatedAt: epochSeconds(node.CreatedAt),
		Status:    DeriveStatus(node.LastSeen, now, timeout),
		Token:     node.Token,
		Meta:      decodeMap(node.Meta),
		Metrics:   decodeMap(node.Metrics),
	}
	if node.LastSeen != nil {
		ts := epochSeconds(*node.LastSeen)
		view.LastSeen = &ts
	}
	return view
}

func decodeMap(raw string) map[string]interface{} {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("registry: discarding undecodable snapshot: %v", err)
		return nil
	}
	return out
}

func (s *Service) config() *types.AppConfig {
	if s.cfg != nil {
		if cfg := s.cfg.Current(); cfg != nil {
			return cfg
		}
	}
	return &types.AppConfig{OfflineTimeout: 10}
}

// ensureDB never mutates s; the handle is resolved once in NewService
func (s *Service) ensureDB() (*gorm.DB, error) {
	if s.db == nil {
		return nil, errors.New("database not initialized")
	}
	return s.db, nil
}
