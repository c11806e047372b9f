package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/notifier"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/repository"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/keyword"
	"github.com/Boukadre/appweb-SOC-IA/internal/service"
)

type openPorts []int

func (o openPorts) ScanPorts(ctx context.Context, address string, ports []int, timeout time.Duration) []int {
	out := []int{}
	for _, p := range ports {
		for _, open := range o {
			if p == open {
				out = append(out, p)
			}
		}
	}
	return out
}

type passthroughResolver struct{}

func (passthroughResolver) Resolve(ctx context.Context, target string) string { return target }

type noTechnologies struct{}

func (noTechnologies) Fingerprint(ctx context.Context, url string) ([]domain.Technology, error) {
	return []domain.Technology{{Name: "nginx", Version: "1.25.3", Category: "Web Server", Confidence: 1}}, nil
}

func newTestRouter(t *testing.T, token, jwtSecret string, perMinute int) (*mux.Router, *repository.MemoryRepository) {
	t.Helper()
	logger := zap.NewNop()

	table, err := keyword.DefaultTable()
	require.NoError(t, err)
	catalog, err := fusion.DefaultCatalog()
	require.NoError(t, err)

	repo := repository.NewMemoryRepository()
	recorder := service.NewRecorder(repo, notifier.NopPublisher{}, logger)

	h := NewRestHandler(Services{
		Phishing: service.NewPhishingService(nil, keyword.NewScanner(table), fusion.DefaultWeights(), recorder, logger),
		Network:  service.NewNetworkService(passthroughResolver{}, openPorts{22, 23}, nil, nil, time.Second, recorder, logger),
		AuthLog:  service.NewAuthLogService(nil, recorder, logger),
		CVE:      service.NewCVEService(noTechnologies{}, catalog, recorder, logger),
		Password: service.NewPasswordService(logger),
		History:  service.NewHistoryService(repo),
		Reports:  service.NewReportService(repo, recorder, logger),
	}, map[string]bool{"classifier": false, "reputation": false}, logger)

	router := mux.NewRouter()
	h.Register(router)
	router.Use(LoggingMiddleware(logger))
	router.Use(NewRateLimiter(perMinute).Middleware)
	router.Use(AuthMiddleware(token, jwtSecret, logger))
	return router, repo
}

func do(router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, "secret", "", 0)

	w := do(router, "GET", "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "socia-api", body["service"])
	assert.Equal(t, false, body["classifier"].(map[string]interface{})["available"])
}

func TestAuthMiddleware(t *testing.T) {
	secret := "jwt-secret"
	signed := func(method jwt.SigningMethod, key any, exp time.Time) string {
		tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
			Subject:   "analyst",
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := tok.SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"static token", "Bearer static-token", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"no bearer prefix", "static-token", http.StatusUnauthorized},
		{"valid jwt", "Bearer " + signed(jwt.SigningMethodHS256, []byte(secret), time.Now().Add(time.Hour)), http.StatusOK},
		{"expired jwt", "Bearer " + signed(jwt.SigningMethodHS256, []byte(secret), time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"wrong key", "Bearer " + signed(jwt.SigningMethodHS256, []byte("other"), time.Now().Add(time.Hour)), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, "static-token", secret, 0)
			var w *httptest.ResponseRecorder
			if tt.header == "" {
				w = do(router, "GET", "/api/v1/scans", "")
			} else {
				w = do(router, "GET", "/api/v1/scans", "", "Authorization", tt.header)
			}
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAuthMiddleware_DisabledWithoutSecrets(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 0)
	w := do(router, "GET", "/api/v1/scans", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 3)

	for i := 0; i < 3; i++ {
		w := do(router, "GET", "/api/v1/health", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(router, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other clients have their own budget
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.RemoteAddr = "198.51.100.9:4242"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuickScan(t *testing.T) {
	router, repo := newTestRouter(t, "", "", 0)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"target":"203.0.113.7","ports":"22,23,80"}`, http.StatusOK},
		{"empty target", `{"target":""}`, http.StatusBadRequest},
		{"bad ports", `{"target":"203.0.113.7","ports":"22,abc"}`, http.StatusBadRequest},
		{"bad json", `{"target":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, "POST", "/api/v1/network-scan/quick", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want != http.StatusOK {
				assert.Contains(t, decodeBody(t, w), "error")
			}
		})
	}

	w := do(router, "POST", "/api/v1/network-scan/quick", `{"target":"203.0.113.7","ports":"22,23,80"}`)
	body := decodeBody(t, w)
	assert.Equal(t, []interface{}{22.0, 23.0}, body["open_ports"])
	assert.Equal(t, "medium", body["threat_level"])

	_, err := repo.Get(context.Background(), body["scan_id"].(string))
	assert.NoError(t, err)
}

func TestAuthLogEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 0)
	line := "Mar  1 12:00:00 srv sshd[1]: Failed password for root from 203.0.113.7 port 22 ssh2\n"

	raw := httptest.NewRequest("POST", "/api/v1/network-scan/auth-log", strings.NewReader(strings.Repeat(line, 3)))
	raw.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, raw)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 3.0, decodeBody(t, w)["total_attacks"])

	payload, err := json.Marshal(map[string]string{"content": line})
	require.NoError(t, err)
	w = do(router, "POST", "/api/v1/network-scan/auth-log", string(payload))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decodeBody(t, w)["total_attacks"])

	big := httptest.NewRequest("POST", "/api/v1/network-scan/auth-log", strings.NewReader(strings.Repeat("x", fusion.MaxAuthLogBytes+10)))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPhishingEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 0)

	w := do(router, "POST", "/api/v1/phishing-detect/analyze",
		`{"sender":"support@paypa1-secure.xyz","subject":"URGENT: verify","body":"Confirm your password now","url":"http://192.168.1.10/login"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, fusion.ModelHeuristic, body["model_used"])
	assert.Equal(t, true, body["is_flagged"])
	assert.True(t, strings.HasPrefix(body["detection_id"].(string), "phish_"))

	w = do(router, "POST", "/api/v1/phishing-detect/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "POST", "/api/v1/phishing-detect/keywords", `{"text":"urgent: act now, limited time"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, decodeBody(t, w)["score"].(float64), 0.0)
}

func TestOversizedJSONBody(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 0)
	body := `{"text":"` + strings.Repeat("a", maxJSONBody) + `"}`
	w := do(router, "POST", "/api/v1/phishing-detect/keywords", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCVEEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 0)

	w := do(router, "POST", "/api/v1/cve-scanner/scan", `{"url":"example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "https://example.com", body["url"])
	assert.Equal(t, "completed", body["status"])

	w = do(router, "POST", "/api/v1/cve-scanner/scan", `{"url":"ftp://example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "POST", "/api/v1/cve-scanner/lookup", `{"technologies":[{"name":"nothing-known","version":"1.0"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decodeBody(t, w)["total_cves"])

	w = do(router, "POST", "/api/v1/cve-scanner/lookup", `{"technologies":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 0)

	w := do(router, "POST", "/api/v1/password-analyzer/analyze", `{"password":"password"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotContains(t, body, "password")
	assert.LessOrEqual(t, body["score"].(float64), 1.0)

	w = do(router, "POST", "/api/v1/password-analyzer/analyze", `{"password":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportAbuseNotConfigured(t *testing.T) {
	router, _ := newTestRouter(t, "", "", 0)
	w := do(router, "POST", "/api/v1/network-scan/report", `{"ip":"203.0.113.7","categories":[18]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func seedRecord(t *testing.T, repo *repository.MemoryRepository, id string, kind domain.Kind) {
	t.Helper()
	require.NoError(t, repo.Put(context.Background(), domain.ScanRecord{
		ID: id, Kind: kind, Target: "203.0.113.7", Status: domain.StatusCompleted,
		Tier: domain.LevelHigh, Confidence: 0.75, CreatedAt: time.Now().UTC(), Payload: json.RawMessage(`{}`),
	}))
}

func TestScanHistory(t *testing.T) {
	router, repo := newTestRouter(t, "", "", 0)
	seedRecord(t, repo, "scan_00000001", domain.KindNetworkScan)
	seedRecord(t, repo, "phish_00000002", domain.KindPhishing)

	w := do(router, "GET", "/api/v1/scans?kind=phishing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decodeBody(t, w)["count"])

	w = do(router, "GET", "/api/v1/scans?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "GET", "/api/v1/scans?kind=malware", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "GET", "/api/v1/scans/scan_00000001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "high", decodeBody(t, w)["threat_level"])

	w = do(router, "DELETE", "/api/v1/scans/scan_00000001", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, "GET", "/api/v1/scans/scan_00000001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(router, "DELETE", "/api/v1/scans/scan_00000001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReports(t *testing.T) {
	router, repo := newTestRouter(t, "", "", 0)
	seedRecord(t, repo, "scan_00000001", domain.KindNetworkScan)

	w := do(router, "POST", "/api/v1/reports", `{"analysis_ids":["scan_00000001"],"format":"cef"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	id := body["report_id"].(string)
	assert.Equal(t, "cef", body["format"])

	w = do(router, "GET", "/api/v1/reports/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decodeBody(t, w)["report_id"])

	w = do(router, "GET", "/api/v1/reports/"+id+"?download=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "CEF:0|SOC-IA|"))

	w = do(router, "POST", "/api/v1/reports", `{"analysis_ids":["missing"],"format":"json"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, "POST", "/api/v1/reports", `{"analysis_ids":["scan_00000001"],"format":"pdf"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "GET", "/api/v1/reports/scan_00000001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGrpcHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := NewGrpcServer(map[string]bool{"classifier": false, "repository": true}, zap.NewNop())
	go func() { _ = srv.Server().Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		service string
		want    healthpb.HealthCheckResponse_ServingStatus
	}{
		{"", healthpb.HealthCheckResponse_SERVING},
		{"socia.repository", healthpb.HealthCheckResponse_SERVING},
		{"socia.classifier", healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: tt.service})
		require.NoError(t, err)
		assert.Equal(t, tt.want, resp.GetStatus(), tt.service)
	}
}
