package devserver_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/devserver"
	"github.com/ErlanBelekov/points-rebuild/internal/infrastructure/memory"
	"github.com/gin-gonic/gin"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewPointsRepository(memory.SeedEvents("s1", 4, time.Now()))
	engine, _ := devserver.New(logger, repo, devserver.Options{
		Token:         "tok",
		DefaultSeason: "s1",
		IngestBatch:   100,
		StoreName:     "memory",
	})
	return engine
}

func serve(engine *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	engine := newEngine(t)

	if w := serve(engine, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", w.Code)
	}

	w := serve(engine, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/readyz status = %d, want 200", w.Code)
	}
	var body struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "up" || body.Checks["memory"].Status != "up" {
		t.Errorf("readiness = %+v", body)
	}
}

func TestPointsRoutesRequireToken(t *testing.T) {
	engine := newEngine(t)

	for _, path := range []string{"/api/points/reset", "/api/points/ingest", "/api/points/recalc"} {
		if w := serve(engine, http.MethodPost, path, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token = %d, want 401", path, w.Code)
		}
		if w := serve(engine, http.MethodPost, path, "nope"); w.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token = %d, want 401", path, w.Code)
		}
	}
}

func TestIngestThenRecalc(t *testing.T) {
	engine := newEngine(t)

	w := serve(engine, http.MethodPost, "/api/points/ingest", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", w.Code, w.Body.String())
	}
	var ingest map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &ingest)
	if ingest["ingestedWallets"] != float64(4) || ingest["cursorUpdates"] != float64(1) {
		t.Errorf("ingest = %v", ingest)
	}

	w = serve(engine, http.MethodPost, "/api/points/recalc?cursor=0&limit=3", "tok")
	var recalc map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &recalc)
	if recalc["processed"] != float64(3) || recalc["nextCursor"] != float64(3) || recalc["done"] != false {
		t.Errorf("recalc page 1 = %v", recalc)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	engine := newEngine(t)
	serve(engine, http.MethodGet, "/healthz", "")

	w := serve(engine, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "points_devserver_http_requests_total") {
		t.Error("request counter missing from /metrics output")
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	engine := newEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "run-123")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "run-123" {
		t.Errorf("X-Request-ID = %q, want run-123", got)
	}
}
