package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/cli"
	"github.com/ErlanBelekov/points-rebuild/internal/devserver"
	"github.com/ErlanBelekov/points-rebuild/internal/infrastructure/memory"
	"github.com/gin-gonic/gin"
)

type pathCounter struct {
	mu    sync.Mutex
	paths map[string]int
}

func (c *pathCounter) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func (c *pathCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.paths {
		n += v
	}
	return n
}

// startPointsAPI serves the dev server and counts requests per path.
func startPointsAPI(t *testing.T) (*httptest.Server, *pathCounter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewPointsRepository(memory.SeedEvents("s1", 20, time.Now()))
	engine, _ := devserver.New(logger, repo, devserver.Options{
		Token:         "tok",
		DefaultSeason: "s1",
		IngestBatch:   50,
		StoreName:     "memory",
	})

	counter := &pathCounter{paths: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.mu.Lock()
		counter.paths[r.URL.Path]++
		counter.mu.Unlock()
		engine.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, counter
}

func baseEnv(url string) cli.Env {
	return cli.Env{
		"ENV":                   "production",
		"POINTS_API_BASE_URL":   url,
		"POINTS_API_TOKEN":      "tok",
		"SEASON_ID":             "s1",
		"RECALC_LIMIT":          "7",
		"RETRY_BASE_DELAY_MS":   "0",
		"INGEST_ROUND_DELAY_MS": "0",
	}
}

func execute(args []string, env cli.Env) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := cli.Execute(context.Background(), args, env, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_FullRunSucceeds(t *testing.T) {
	srv, counter := startPointsAPI(t)

	code, out, _ := execute(nil, baseEnv(srv.URL))
	if code != cli.ExitOK {
		t.Fatalf("exit = %d, want 0; output:\n%s", code, out)
	}
	if counter.count("/api/points/reset") != 1 {
		t.Errorf("reset calls = %d, want 1", counter.count("/api/points/reset"))
	}
	if counter.count("/api/points/ingest") < 1 {
		t.Error("expected at least one ingest call")
	}
	// 20 wallets at limit 7: cursors 0, 7, 14
	if got := counter.count("/api/points/recalc"); got != 3 {
		t.Errorf("recalc calls = %d, want 3", got)
	}
	if !strings.Contains(out, "points rebuild summary") {
		t.Errorf("summary not logged:\n%s", out)
	}
}

func TestExecute_RunSubcommandWithSkipFlags(t *testing.T) {
	srv, counter := startPointsAPI(t)

	code, out, _ := execute([]string{"run", "--skip-reset", "--skip-ingest"}, baseEnv(srv.URL))
	if code != cli.ExitOK {
		t.Fatalf("exit = %d, want 0; output:\n%s", code, out)
	}
	if counter.count("/api/points/reset") != 0 || counter.count("/api/points/ingest") != 0 {
		t.Errorf("skipped stages were called: %+v", counter.paths)
	}
	// nothing ingested, so the first recalc page is already done
	if got := counter.count("/api/points/recalc"); got != 1 {
		t.Errorf("recalc calls = %d, want 1", got)
	}
}

func TestExecute_MissingRequiredConfigFailsBeforeAnyCall(t *testing.T) {
	srv, counter := startPointsAPI(t)

	for _, key := range []string{"POINTS_API_BASE_URL", "POINTS_API_TOKEN"} {
		t.Run(key, func(t *testing.T) {
			env := baseEnv(srv.URL)
			delete(env, key)

			code, out, _ := execute(nil, env)
			if code != cli.ExitFailure {
				t.Errorf("exit = %d, want %d", code, cli.ExitFailure)
			}
			if !strings.Contains(out, key) {
				t.Errorf("error log does not name %s:\n%s", key, out)
			}
		})
	}

	if n := counter.total(); n != 0 {
		t.Errorf("points API received %d requests, want 0", n)
	}
}

func TestExecute_RemoteFailureExitsNonZero(t *testing.T) {
	srv, counter := startPointsAPI(t)
	env := baseEnv(srv.URL)
	env["POINTS_API_TOKEN"] = "wrong"

	code, out, _ := execute(nil, env)
	if code != cli.ExitFailure {
		t.Errorf("exit = %d, want %d", code, cli.ExitFailure)
	}
	if counter.count("/api/points/reset") != 1 {
		t.Errorf("401 must not be retried, reset calls = %d", counter.count("/api/points/reset"))
	}
	if counter.count("/api/points/ingest") != 0 {
		t.Error("ingest must not run after reset fails")
	}
	if !strings.Contains(out, "points rebuild failed") {
		t.Errorf("failure not logged:\n%s", out)
	}
}

func TestExecute_ConfigShowMasksToken(t *testing.T) {
	code, out, _ := execute([]string{"config", "show"}, baseEnv("http://points.test/"))
	if code != cli.ExitOK {
		t.Fatalf("exit = %d, want 0", code)
	}

	var shown map[string]any
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if shown["token"] != "****" {
		t.Errorf("token = %v, want masked", shown["token"])
	}
	if shown["base_url"] != "http://points.test" {
		t.Errorf("base_url = %v, want trailing slash trimmed", shown["base_url"])
	}
	if shown["recalc_limit"] != float64(7) {
		t.Errorf("recalc_limit = %v, want 7", shown["recalc_limit"])
	}
}

func TestExecute_UnknownArgumentFails(t *testing.T) {
	code, _, errOut := execute([]string{"bogus"}, baseEnv("http://points.test"))
	if code != cli.ExitFailure {
		t.Errorf("exit = %d, want %d", code, cli.ExitFailure)
	}
	if !strings.Contains(errOut, "Error:") {
		t.Errorf("stderr = %q, want an error line", errOut)
	}
}

func TestEnvFrom(t *testing.T) {
	env := cli.EnvFrom([]string{"A=1", "B=x=y", "EMPTY=", "junk", "=nokey"})

	if env["A"] != "1" || env["B"] != "x=y" {
		t.Errorf("env = %v", env)
	}
	if v, ok := env["EMPTY"]; !ok || v != "" {
		t.Errorf("EMPTY = %q (present %v), want empty and present", v, ok)
	}
	if len(env) != 3 {
		t.Errorf("len = %d, want 3", len(env))
	}
}
