package rebuild

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/domain"
	"github.com/ErlanBelekov/points-rebuild/internal/runctx"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Response is a successful (2xx) call. Body is always valid JSON.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Caller performs a single authenticated call against the points API.
type Caller interface {
	Call(ctx context.Context, path string, params map[string]string) (Response, error)
}

// Executor is the HTTP implementation of Caller.
type Executor struct {
	client  *http.Client
	baseURL string
	token   string
	timeout time.Duration
}

func NewExecutor(baseURL, token string, timeout time.Duration) *Executor {
	return &Executor{
		client:  &http.Client{}, // no global timeout, each call sets its own
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// Call POSTs to baseURL+path. Parameters with empty values are omitted.
// A call that gets no response within the timeout fails with a Status 0
// *domain.HTTPError; a non-2xx response fails with its status and message.
func (e *Executor) Call(ctx context.Context, path string, params map[string]string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	target := e.baseURL + path
	if q := buildQuery(params); q != "" {
		target += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Accept", "application/json")
	if id := runctx.RunID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Response{}, &domain.HTTPError{Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	// The status decides retriability even when the body is cut short.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &domain.HTTPError{
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(body, resp.StatusCode),
			Err:     readErr,
		}
	}
	if readErr != nil {
		return Response{}, &domain.HTTPError{Path: path, Err: fmt.Errorf("read body: %w", readErr)}
	}

	return Response{Status: resp.StatusCode, Body: decodePayload(body)}, nil
}

func buildQuery(params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		q.Set(k, v)
	}
	return q.Encode()
}

// errorMessage picks the most useful message out of an error response:
// the JSON "error" field, then "message", then the raw text, then "HTTP <status>".
func errorMessage(body []byte, status int) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"error", "message"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "HTTP " + strconv.Itoa(status)
}

// decodePayload returns body when it is valid JSON, {} when it is empty
// and {"raw": "<text>"} otherwise.
func decodePayload(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("{}")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(map[string]string{"raw": string(body)})
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n"))
}
