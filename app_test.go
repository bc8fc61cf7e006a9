package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mycoool/imonitor/internal/config"
	"github.com/mycoool/imonitor/internal/registry"
	"github.com/mycoool/imonitor/internal/types"
)

const (
	testAdmin    = "admin"
	testPassword = "s3cret"
)

func newTestApp(t *testing.T) (*app, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.PublicURL = "http://monitor.example:8080"
	cfg.AdminUser = testAdmin
	cfg.AdminPass = testPassword
	cfg.JWTSecret = "test-secret"
	cfg.Database.Database = filepath.Join(dir, "imonitor.db")

	a, err := newApp(context.Background(), config.NewHolder(filepath.Join(dir, "app.yaml"), cfg), true)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	srv := httptest.NewServer(a.engine)
	t.Cleanup(func() {
		srv.Close()
		a.close()
	})
	return a, srv
}

func request(t *testing.T, method, url, body string, auth func(*http.Request)) (int, http.Header, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		auth(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, resp.Header, data
}

func basicAuth(r *http.Request) {
	r.SetBasicAuth(testAdmin, testPassword)
}

func listNodes(t *testing.T, srv *httptest.Server) registry.NodeList {
	t.Helper()
	code, _, body := request(t, http.MethodGet, srv.URL+"/api/nodes", "", basicAuth)
	if code != http.StatusOK {
		t.Fatalf("list nodes: %d %s", code, body)
	}
	var list registry.NodeList
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode node list: %v", err)
	}
	return list
}

func TestReserveReportList(t *testing.T) {
	_, srv := newTestApp(t)

	code, _, body := request(t, http.MethodPost, srv.URL+"/api/nodes/reserve", `{"label":"web"}`, basicAuth)
	if code != http.StatusOK {
		t.Fatalf("reserve: %d %s", code, body)
	}
	var reserved types.ReserveResponse
	if err := json.Unmarshal(body, &reserved); err != nil {
		t.Fatalf("decode reserve: %v", err)
	}
	if len(reserved.Token) != 40 {
		t.Fatalf("expected 40 hex char token, got %q", reserved.Token)
	}
	if !strings.Contains(reserved.Command, "http://monitor.example:8080") || !strings.Contains(reserved.Command, reserved.Token) {
		t.Fatalf("install command misses endpoint or token: %q", reserved.Command)
	}

	list := listNodes(t, srv)
	if len(list.Nodes) != 1 || list.Nodes[0].Status != "pending" || list.Nodes[0].LastSeen != nil {
		t.Fatalf("expected one never seen node, got %+v", list.Nodes)
	}

	report := `{"token":"` + reserved.Token + `","hostname":"box1","ip_address":"10.0.0.5","meta":{"os":"Debian"},"metrics":{"cpu":12.5}}`
	code, _, body = request(t, http.MethodPost, srv.URL+"/api/report", report, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("report: %d %s", code, body)
	}

	list = listNodes(t, srv)
	n := list.Nodes[0]
	if n.Status != "online" || n.Hostname != "box1" || n.IPAddress != "10.0.0.5" || n.Label != "web" {
		t.Fatalf("unexpected node after report: %+v", n)
	}
	if n.Token != reserved.Token {
		t.Fatalf("admin listing should include token")
	}
	if n.Metrics["cpu"] != 12.5 {
		t.Fatalf("metrics not stored: %+v", n.Metrics)
	}

	report = `{"token":"` + reserved.Token + `","hostname":"","ip_address":"","meta":{"os":"Debian"},"metrics":{"cpu":1}}`
	if code, _, body = request(t, http.MethodPost, srv.URL+"/api/report", report, nil); code != http.StatusOK {
		t.Fatalf("second report: %d %s", code, body)
	}
	n = listNodes(t, srv).Nodes[0]
	if n.Hostname != "box1" {
		t.Fatalf("empty hostname must not overwrite, got %q", n.Hostname)
	}
	if n.IPAddress != "" {
		t.Fatalf("explicit empty ip must overwrite, got %q", n.IPAddress)
	}
}

func TestReportUnknownToken(t *testing.T) {
	_, srv := newTestApp(t)
	code, _, _ := request(t, http.MethodPost, srv.URL+"/api/report", `{"token":"nope","hostname":"h","meta":{"os":"x"},"metrics":{"cpu":1}}`, nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	_, srv := newTestApp(t)

	code, header, _ := request(t, http.MethodPost, srv.URL+"/api/nodes/reserve", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if got := header.Get("WWW-Authenticate"); !strings.HasPrefix(got, "Basic") {
		t.Fatalf("expected basic challenge, got %q", got)
	}

	code, _, body := request(t, http.MethodPost, srv.URL+"/api/login", "", basicAuth)
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		t.Fatalf("decode login: %v %s", err, body)
	}

	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+login.Token) }
	if code, _, body = request(t, http.MethodPost, srv.URL+"/api/nodes/reserve", "", bearer); code != http.StatusOK {
		t.Fatalf("reserve with bearer: %d %s", code, body)
	}

	// anonymous listing works but hides tokens
	code, _, body = request(t, http.MethodGet, srv.URL+"/api/nodes", "", nil)
	if code != http.StatusOK {
		t.Fatalf("anonymous list: %d", code)
	}
	var list registry.NodeList
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Nodes) != 1 || list.Nodes[0].Token != "" {
		t.Fatalf("anonymous listing leaked token: %+v", list.Nodes)
	}
}

func TestEventsRecordLifecycle(t *testing.T) {
	_, srv := newTestApp(t)

	_, _, body := request(t, http.MethodPost, srv.URL+"/api/nodes/reserve", `{"label":"a"}`, basicAuth)
	var reserved types.ReserveResponse
	if err := json.Unmarshal(body, &reserved); err != nil {
		t.Fatalf("decode reserve: %v", err)
	}
	if code, _, body := request(t, http.MethodDelete, srv.URL+"/api/nodes/"+reserved.Token, "", basicAuth); code != http.StatusOK {
		t.Fatalf("delete: %d %s", code, body)
	}

	code, _, body := request(t, http.MethodGet, srv.URL+"/api/events?limit=10", "", basicAuth)
	if code != http.StatusOK {
		t.Fatalf("events: %d %s", code, body)
	}
	if !strings.Contains(string(body), "RESERVE") || !strings.Contains(string(body), "DELETE") {
		t.Fatalf("expected reserve and delete events, got %s", body)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	code, _, body := request(t, http.MethodGet, "http://"+ln.Addr().String()+"/ping", "", nil)
	if code != http.StatusOK || string(body) != "OK" {
		t.Fatalf("ping: %d %s", code, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
