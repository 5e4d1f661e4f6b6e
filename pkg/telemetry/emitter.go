package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 3 * time.Second
	maxErrorBodySize = 4096
	maxBatch         = 100
)

// ErrUnauthorized indicates the API rejected the bearer token.
var ErrUnauthorized = errors.New("telemetry unauthorized")

// ErrInvalidArgument indicates the API rejected the batch with validation errors.
var ErrInvalidArgument = errors.New("telemetry invalid argument")

// ErrRateLimited indicates the caller exhausted the telemetry quota.
var ErrRateLimited = errors.New("telemetry rate limited")

// Emitter reports client side timings to the performance ingestion endpoint.
type Emitter struct {
	baseURL string
	token   string
	client  *http.Client
	now     func() time.Time
}

// Sample is a single named timing.
type Sample struct {
	Name       string
	Duration   time.Duration
	Failed     bool
	OccurredAt time.Time
}

// NewEmitter creates an emitter for the API at baseURL authenticated with an access token.
func NewEmitter(baseURL, accessToken string, client *http.Client) (*Emitter, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("telemetry base url required")
	}
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errors.New("telemetry access token required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	} else if client.Timeout == 0 {
		client.Timeout = defaultTimeout
	}
	return &Emitter{
		baseURL: strings.TrimRight(trimmed, "/"),
		token:   token,
		client:  client,
		now:     time.Now,
	}, nil
}

// Emit sends samples in batches the API accepts and returns how many were accepted.
func (e *Emitter) Emit(ctx context.Context, samples ...Sample) (int, error) {
	if e == nil {
		return 0, errors.New("telemetry emitter not initialised")
	}
	accepted := 0
	for start := 0; start < len(samples); start += maxBatch {
		end := min(start+maxBatch, len(samples))
		n, err := e.send(ctx, samples[start:end])
		accepted += n
		if err != nil {
			return accepted, err
		}
	}
	return accepted, nil
}

func (e *Emitter) send(ctx context.Context, samples []Sample) (int, error) {
	body, err := json.Marshal(buildPayload(samples, e.now))
	if err != nil {
		return 0, fmt.Errorf("marshal telemetry batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/performance", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build telemetry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send telemetry request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return 0, errorForStatus(resp)
	}
	var out struct {
		Accepted int `json:"accepted"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodySize)).Decode(&out); err != nil {
		return len(samples), nil
	}
	return out.Accepted, nil
}

func errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, summary)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, summary)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, summary)
	default:
		return fmt.Errorf("telemetry request failed: %s", summary)
	}
}

func buildPayload(samples []Sample, nowFn func() time.Time) map[string]any {
	entries := make([]map[string]any, 0, len(samples))
	for _, s := range samples {
		occurred := s.OccurredAt
		if occurred.IsZero() {
			occurred = nowFn()
		}
		duration := s.Duration
		if duration < 0 {
			duration = 0
		}
		entries = append(entries, map[string]any{
			"name":        strings.ToLower(strings.TrimSpace(s.Name)),
			"duration_ms": float64(duration) / float64(time.Millisecond),
			"error":       s.Failed,
			"occurred_at": occurred.UTC().Format(time.RFC3339Nano),
		})
	}
	return map[string]any{"samples": entries}
}
