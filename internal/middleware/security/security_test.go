package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspect(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   bool
	}{
		{"dashboard", http.MethodGet, "/ui/dashboard?department=eng", "Mozilla/5.0", false},
		{"traversal", http.MethodGet, "/static/../../etc/passwd", "", true},
		{"injection in query", http.MethodGet, "/chart?x=1%20union%20select", "", true},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.ua)
			assert.Equal(t, tt.want, d.DetectSuspiciousRequest(r))
		})
	}
	assert.Equal(t, int64(4), d.GetMetrics().SuspiciousRequests)
}

func TestSuspiciousUpload(t *testing.T) {
	assert.False(t, SuspiciousUpload("hours.XLSX"))
	assert.False(t, SuspiciousUpload("export.csv"))
	assert.True(t, SuspiciousUpload("payload.php"))
	assert.True(t, SuspiciousUpload("noext"))
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.5")
	assert.Equal(t, "198.51.100.9", d.ExtractClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	assert.Equal(t, "203.0.113.1", d.ExtractClientIP(r), "untrusted peers cannot spoof")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "not-an-ip"
	assert.Equal(t, "not-an-ip", d.ExtractClientIP(r))
	assert.Equal(t, int64(1), d.GetMetrics().InvalidIPAttempts)

	assert.Error(t, d.AddTrustedProxy("nope"))
	assert.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chart?mode=pie", nil))
	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, EChartsAssetsHost)
	assert.Contains(t, csp, "frame-ancestors 'self'")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestStaticAssetMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	StaticAssetMiddleware(3600)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, "public, max-age=3600, immutable", rec.Header().Get("Cache-Control"))
}
