package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/performance" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Fatalf("unexpected authorization header %s", auth)
		}
		var payload struct {
			Samples []map[string]any `json:"samples"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Samples) != 1 {
			t.Fatalf("expected one sample, got %d", len(payload.Samples))
		}
		sample := payload.Samples[0]
		if sample["name"] != "cli.resource.list" {
			t.Fatalf("unexpected name %v", sample["name"])
		}
		if sample["duration_ms"] != 250.0 {
			t.Fatalf("unexpected duration %v", sample["duration_ms"])
		}
		if sample["occurred_at"] != "2026-10-17T09:00:00Z" {
			t.Fatalf("unexpected occurred_at %v", sample["occurred_at"])
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"accepted":1}`))
	}))
	defer srv.Close()

	emitter, err := NewEmitter(srv.URL+"/", " secret ", nil)
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	emitter.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	accepted, err := emitter.Emit(context.Background(), Sample{Name: " CLI.Resource.List ", Duration: 250 * time.Millisecond})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if accepted != 1 {
		t.Fatalf("expected 1 accepted, got %d", accepted)
	}
}

func TestEmitBatchesLargeInput(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var payload struct {
			Samples []json.RawMessage `json:"samples"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Samples) > maxBatch {
			t.Fatalf("batch too large: %d", len(payload.Samples))
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]int{"accepted": len(payload.Samples)})
	}))
	defer srv.Close()

	emitter, err := NewEmitter(srv.URL, "secret", nil)
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	samples := make([]Sample, 150)
	for i := range samples {
		samples[i] = Sample{Name: "cli.stats", Duration: time.Millisecond}
	}
	accepted, err := emitter.Emit(context.Background(), samples...)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if accepted != 150 {
		t.Fatalf("expected 150 accepted, got %d", accepted)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", calls.Load())
	}
}

func TestEmitUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	emitter, err := NewEmitter(srv.URL, "expired", &http.Client{Timeout: time.Second})
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	_, err = emitter.Emit(context.Background(), Sample{Name: "cli.whoami"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEmitRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	emitter, err := NewEmitter(srv.URL, "secret", nil)
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	_, err = emitter.Emit(context.Background(), Sample{Name: "cli.whoami"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestNewEmitterRequiresToken(t *testing.T) {
	if _, err := NewEmitter("http://localhost:4000", " ", nil); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewEmitter("", "token", nil); err == nil {
		t.Fatal("expected error for missing base url")
	}
}
