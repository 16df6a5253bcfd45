package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/transport/http/handler"
	"github.com/ErlanBelekov/points-rebuild/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// errUnexpectedCall is returned by fakePointsUsecase methods left unset, so a
// request that should never reach the usecase surfaces as a 500.
var errUnexpectedCall = errors.New("unexpected usecase call")

// fakePointsUsecase implements the unexported pointsUsecaser interface via method matching.
type fakePointsUsecase struct {
	reset  func(ctx context.Context, seasonID string) (usecase.ResetOutput, error)
	ingest func(ctx context.Context, input usecase.IngestInput) (usecase.IngestOutput, error)
	recalc func(ctx context.Context, input usecase.RecalcInput) (usecase.RecalcOutput, error)
}

func (f *fakePointsUsecase) Reset(ctx context.Context, seasonID string) (usecase.ResetOutput, error) {
	if f.reset == nil {
		return usecase.ResetOutput{}, errUnexpectedCall
	}
	return f.reset(ctx, seasonID)
}

func (f *fakePointsUsecase) Ingest(ctx context.Context, input usecase.IngestInput) (usecase.IngestOutput, error) {
	if f.ingest == nil {
		return usecase.IngestOutput{}, errUnexpectedCall
	}
	return f.ingest(ctx, input)
}

func (f *fakePointsUsecase) Recalc(ctx context.Context, input usecase.RecalcInput) (usecase.RecalcOutput, error) {
	if f.recalc == nil {
		return usecase.RecalcOutput{}, errUnexpectedCall
	}
	return f.recalc(ctx, input)
}

func newTestEngine(uc *fakePointsUsecase) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewPointsHandler(uc, logger)

	r := gin.New()
	r.POST("/api/points/reset", h.Reset)
	r.POST("/api/points/ingest", h.Ingest)
	r.POST("/api/points/recalc", h.Recalc)
	return r
}

func post(engine *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

// ---- Reset ----

func TestReset_ReturnsDeletedAndSeason(t *testing.T) {
	var gotSeason string
	uc := &fakePointsUsecase{
		reset: func(_ context.Context, seasonID string) (usecase.ResetOutput, error) {
			gotSeason = seasonID
			return usecase.ResetOutput{Deleted: 12, SeasonID: "s1"}, nil
		},
	}

	w := post(newTestEngine(uc), "/api/points/reset?seasonId=s1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotSeason != "s1" {
		t.Errorf("season = %q, want s1", gotSeason)
	}
	body := decode(t, w)
	if body["deleted"] != float64(12) || body["seasonId"] != "s1" {
		t.Errorf("body = %v", body)
	}
}

func TestReset_UsecaseError_Returns500(t *testing.T) {
	uc := &fakePointsUsecase{
		reset: func(context.Context, string) (usecase.ResetOutput, error) {
			return usecase.ResetOutput{}, errors.New("db down")
		},
	}

	w := post(newTestEngine(uc), "/api/points/reset")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := decode(t, w); body["error"] != "Internal server error" {
		t.Errorf("error = %v", body["error"])
	}
}

// ---- Ingest ----

func TestIngest_ForwardsWindowAndReturnsCounts(t *testing.T) {
	updated := time.UnixMilli(1_700_000_000_000)
	var got usecase.IngestInput
	uc := &fakePointsUsecase{
		ingest: func(_ context.Context, input usecase.IngestInput) (usecase.IngestOutput, error) {
			got = input
			return usecase.IngestOutput{IngestedWallets: 3, CursorUpdates: 1, UpdatedAt: updated}, nil
		},
	}

	w := post(newTestEngine(uc), "/api/points/ingest?seasonId=s1&ingestWindowSeconds=600")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.SeasonID != "s1" || got.WindowSeconds != 600 {
		t.Errorf("input = %+v", got)
	}
	body := decode(t, w)
	if body["ingestedWallets"] != float64(3) || body["cursorUpdates"] != float64(1) || body["updatedAt"] != float64(1_700_000_000_000) {
		t.Errorf("body = %v", body)
	}
}

func TestIngest_InvalidWindow_Returns400(t *testing.T) {
	uc := &fakePointsUsecase{}
	for _, q := range []string{"ingestWindowSeconds=-5", "ingestWindowSeconds=abc"} {
		if w := post(newTestEngine(uc), "/api/points/ingest?"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

// ---- Recalc ----

func TestRecalc_ForwardsParams(t *testing.T) {
	next := 500
	var got usecase.RecalcInput
	uc := &fakePointsUsecase{
		recalc: func(_ context.Context, input usecase.RecalcInput) (usecase.RecalcOutput, error) {
			got = input
			return usecase.RecalcOutput{Processed: 500, NextCursor: &next}, nil
		},
	}

	w := post(newTestEngine(uc), "/api/points/recalc?seasonId=s1&cursor=0&limit=500&fast=1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.SeasonID != "s1" || got.Cursor != 0 || got.Limit != 500 || !got.Fast {
		t.Errorf("input = %+v", got)
	}
	body := decode(t, w)
	if body["processed"] != float64(500) || body["nextCursor"] != float64(500) || body["done"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestRecalc_LastPage_NullCursor(t *testing.T) {
	uc := &fakePointsUsecase{
		recalc: func(context.Context, usecase.RecalcInput) (usecase.RecalcOutput, error) {
			return usecase.RecalcOutput{Processed: 10, Done: true}, nil
		},
	}

	w := post(newTestEngine(uc), "/api/points/recalc?cursor=500")
	body := decode(t, w)
	if v, present := body["nextCursor"]; !present || v != nil {
		t.Errorf("nextCursor = %v (present %v), want explicit null", v, present)
	}
	if body["done"] != true {
		t.Errorf("done = %v, want true", body["done"])
	}
}

func TestRecalc_InvalidQuery_Returns400(t *testing.T) {
	uc := &fakePointsUsecase{}
	for _, q := range []string{"cursor=-1", "cursor=x", "limit=0", "limit=100000", "fast=maybe"} {
		if w := post(newTestEngine(uc), "/api/points/recalc?"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestRecalc_LimitOmittedUsesUsecaseDefault(t *testing.T) {
	got := usecase.RecalcInput{Limit: -1}
	uc := &fakePointsUsecase{
		recalc: func(_ context.Context, input usecase.RecalcInput) (usecase.RecalcOutput, error) {
			got = input
			return usecase.RecalcOutput{Done: true}, nil
		},
	}

	if w := post(newTestEngine(uc), "/api/points/recalc?cursor=0"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.Limit != 0 {
		t.Errorf("limit = %d, want 0 so the usecase applies its default", got.Limit)
	}
}
