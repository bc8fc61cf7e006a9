package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func resolve(t *testing.T, remote string, headers map[string]string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var got string
	r := gin.New()
	r.Use(IPMiddleware())
	r.GET("/", func(c *gin.Context) {
		got = GetClientIP(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestGetRealIP(t *testing.T) {
	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"peer", "203.0.113.7:5555", nil, "203.0.113.7"},
		{"peer v6", "[2001:db8::1]:5555", nil, "2001:db8::1"},
		{"mapped v4", "[::ffff:10.0.0.5]:1", nil, "10.0.0.5"},
		{"forwarded first public hop", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "192.168.1.2, 198.51.100.4, 10.0.0.1"}, "198.51.100.4"},
		{"forwarded private only", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "192.168.1.2"}, "10.0.0.1"},
		{"real ip header", "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"garbage header", "10.0.0.1:80", map[string]string{"X-Real-IP": "not-an-ip"}, "10.0.0.1"},
	}
	for _, c := range cases {
		if got := resolve(t, c.remote, c.headers); got != c.want {
			t.Fatalf("%s: expected %q, got %q", c.name, c.want, got)
		}
	}
}

func TestAccessLoggerHonorsDisableLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	old := gin.DefaultWriter
	gin.DefaultWriter = &buf
	defer func() { gin.DefaultWriter = old }()

	r := gin.New()
	r.Use(AccessLogger())
	r.GET("/quiet", DisableLogMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/loud", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/quiet", "/loud"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	out := buf.String()
	if strings.Contains(out, "/quiet") {
		t.Fatalf("quiet request logged: %s", out)
	}
	if !strings.Contains(out, "/loud") || !strings.HasPrefix(out, "[iMonitor]") {
		t.Fatalf("expected access line, got %q", out)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.PATCH("/api/nodes/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/nodes/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow origin header")
	}
}
