package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mycoool/imonitor/internal/auth"
	"github.com/mycoool/imonitor/internal/config"
	"github.com/mycoool/imonitor/internal/database"
	"github.com/mycoool/imonitor/internal/registry"
	"github.com/mycoool/imonitor/internal/stream"
)

func newTestRouter(t *testing.T) (*gin.Engine, *config.Holder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.AdminUser = "admin"
	cfg.AdminPass = "pw"
	cfg.JWTSecret = "router-test"
	cfg.Database.Database = filepath.Join(dir, "router.db")

	path := filepath.Join(dir, "app.yaml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	holder := config.NewHolder(path, cfg)

	db, err := database.Open(&database.DatabaseConfig{Driver: cfg.Database.Driver, Database: cfg.Database.Database})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	r := InitRouter(Deps{
		Config:   holder,
		Auth:     auth.New(holder),
		Registry: registry.NewService(db, holder),
		Events:   database.NewEventService(db),
		Stream:   stream.NewStreamManager(),
		Quiet:    true,
	})
	return r, holder
}

func serve(r http.Handler, method, path string, admin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if admin {
		req.SetBasicAuth("admin", "pw")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	r, _ := newTestRouter(t)
	w := serve(r, http.MethodGet, "/ping", false)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("unexpected ping response %d %q", w.Code, w.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := serve(r, http.MethodPut, "/ping", false); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAdminGroupGuarded(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, route := range [][2]string{
		{http.MethodGet, "/api/events"},
		{http.MethodDelete, "/api/events/cleanup"},
		{http.MethodGet, "/api/system/config"},
		{http.MethodPost, "/api/system/reload"},
		{http.MethodPost, "/api/nodes/reserve"},
	} {
		if w := serve(r, route[0], route[1], false); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route[0], route[1], w.Code)
		}
	}
}

func TestSystemConfigOmitsSecrets(t *testing.T) {
	r, _ := newTestRouter(t)
	w := serve(r, http.MethodGet, "/api/system/config", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "router-test") || strings.Contains(body, `"pw"`) {
		t.Fatalf("secrets leaked: %s", body)
	}
	var resp struct {
		AuthEnabled bool `json:"auth_enabled"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.AuthEnabled {
		t.Fatalf("unexpected body %s (%v)", body, err)
	}
}

func TestSystemReload(t *testing.T) {
	r, holder := newTestRouter(t)

	next := *holder.Current()
	next.OfflineTimeout = 42
	if err := config.Save(holder.Path(), &next); err != nil {
		t.Fatalf("save: %v", err)
	}

	if w := serve(r, http.MethodPost, "/api/system/reload", true); w.Code != http.StatusOK {
		t.Fatalf("reload: %d %s", w.Code, w.Body.String())
	}
	if got := holder.Current().OfflineTimeout; got != 42 {
		t.Fatalf("expected offline timeout 42 after reload, got %d", got)
	}
}

func TestEventsRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := serve(r, http.MethodPost, "/api/nodes/reserve", true); w.Code != http.StatusOK {
		t.Fatalf("reserve: %d", w.Code)
	}

	w := serve(r, http.MethodGet, "/api/events?action=reserve", true)
	if w.Code != http.StatusOK {
		t.Fatalf("events: %d", w.Code)
	}
	var resp struct {
		Events []database.NodeEvent `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Action != database.NodeActionReserve {
		t.Fatalf("expected one reserve event, got %+v", resp.Events)
	}

	if w := serve(r, http.MethodGet, "/api/events?limit=abc", true); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
	if w := serve(r, http.MethodDelete, "/api/events/cleanup?days=0", true); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad days, got %d", w.Code)
	}
	if w := serve(r, http.MethodDelete, "/api/events/cleanup?days=7", true); w.Code != http.StatusOK {
		t.Fatalf("cleanup: %d", w.Code)
	}
}
