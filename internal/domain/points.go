package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

type Stage string

const (
	StageReset  Stage = "reset"
	StageIngest Stage = "ingest"
	StageRecalc Stage = "recalc"
)

// Remote endpoint paths.
const (
	PathReset  = "/api/points/reset"
	PathIngest = "/api/points/ingest"
	PathRecalc = "/api/points/recalc"
)

// HTTPError is a failed call. Status 0 means no HTTP response was received
// (network failure or timeout); Err then holds the transport cause.
type HTTPError struct {
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("POST %s: network error: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("POST %s: %s (status %d)", e.Path, e.Message, e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// CallAttempt is one request/response cycle against the points API.
type CallAttempt struct {
	Stage    Stage
	Path     string
	Query    string
	Attempt  int
	Status   int // 0 when no response was received
	Err      error
	Duration time.Duration
}

type ResetResult struct {
	Deleted  int    `json:"deleted"`
	SeasonID string `json:"seasonId"`
}

type IngestResult struct {
	// Counts are any JSON number; 3.0 is as valid as 3.
	IngestedWallets float64 `json:"ingestedWallets"`
	CursorUpdates   float64 `json:"cursorUpdates"`
	UpdatedAt       float64 `json:"updatedAt"`
}

// Exhausted reports whether the round did no work, meaning ingestion is complete.
func (r IngestResult) Exhausted() bool {
	return r.IngestedWallets == 0 && r.CursorUpdates == 0
}

type RecalcResult struct {
	Processed int `json:"processed"`
	// NextCursor is kept raw: the backend may send a number, a numeric string, "" or null.
	NextCursor json.RawMessage `json:"nextCursor"`
	Done       bool            `json:"done"`
}

// RecalcStop names why the recalc loop ended.
type RecalcStop string

const (
	RecalcStopDone          RecalcStop = "done"
	RecalcStopNoCursor      RecalcStop = "no_next_cursor"
	RecalcStopInvalidCursor RecalcStop = "invalid_cursor"
	RecalcStopStalled       RecalcStop = "cursor_not_advancing"
	RecalcStopMaxRounds     RecalcStop = "max_rounds"
)

// RunSummary is what a completed run did.
type RunSummary struct {
	ResetDeleted    int
	SeasonID        string
	IngestRounds    int
	IngestCapped    bool
	RecalcRounds    int
	RecalcProcessed int
	FinalCursor     float64
	RecalcStop      RecalcStop
}
