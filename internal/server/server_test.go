package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jpalmerr/sensorbridge/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	mu          sync.RWMutex
	statuses    []store.DeviceStatus
	subscribers map[chan store.DeviceStatus]struct{}
	subMu       sync.Mutex
}

func newMockStore() *mockStore {
	return &mockStore{
		statuses:    []store.DeviceStatus{},
		subscribers: make(map[chan store.DeviceStatus]struct{}),
	}
}

func (m *mockStore) Update(status store.DeviceStatus) {
	m.mu.Lock()
	// replace if exists, otherwise append
	found := false
	for i, s := range m.statuses {
		if s.Name == status.Name {
			m.statuses[i] = status
			found = true
			break
		}
	}
	if !found {
		m.statuses = append(m.statuses, status)
	}
	m.mu.Unlock()

	m.subMu.Lock()
	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
	m.subMu.Unlock()
}

func (m *mockStore) Get(name string) (store.DeviceStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.statuses {
		if s.Name == name {
			return s, true
		}
	}
	return store.DeviceStatus{}, false
}

func (m *mockStore) GetAll() []store.DeviceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]store.DeviceStatus, len(m.statuses))
	copy(result, m.statuses)
	return result
}

func (m *mockStore) Subscribe() <-chan store.DeviceStatus {
	ch := make(chan store.DeviceStatus, 100)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *mockStore) Unsubscribe(ch <-chan store.DeviceStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// --- Tests ---

func TestHandleDevices(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.DeviceStatus{
		Name:         "balcony_flower",
		Address:      "C4:7C:8D:6A:1B:2C",
		Availability: "online",
		Readings:     map[string]float64{"temperature": 21.5},
	})
	ms.Update(store.DeviceStatus{
		Name:          "bedroom_thermo",
		Availability:  "offline",
		FailureStreak: 4,
	})

	srv := NewServer(ms, 0, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rec := httptest.NewRecorder()

	srv.handleDevices(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var statuses []store.DeviceStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if statuses[0].Name != "balcony_flower" || statuses[0].Readings["temperature"] != 21.5 {
		t.Errorf("unexpected first status: %+v", statuses[0])
	}
}

func TestHandleDevices_MethodNotAllowed(t *testing.T) {
	srv := NewServer(newMockStore(), 0, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/devices", nil)
	rec := httptest.NewRecorder()

	srv.handleDevices(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	srv := NewServer(newMockStore(), 0, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestHandleSSE_SendsInitialStatuses(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.DeviceStatus{Name: "balcony_flower", Availability: "online"})
	ms.Update(store.DeviceStatus{Name: "bedroom_thermo", Availability: "offline"})

	srv := NewServer(ms, 0, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	// run handler with a short-lived context since it blocks
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "balcony_flower") {
		t.Errorf("initial snapshot missing balcony_flower: %s", body)
	}
	if !strings.Contains(body, "bedroom_thermo") {
		t.Errorf("initial snapshot missing bedroom_thermo: %s", body)
	}
	if !strings.Contains(body, "data: ") {
		t.Errorf("body is not SSE framed: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleSSE(rec, req)
	}()

	// give the handler time to subscribe, then push an update
	time.Sleep(50 * time.Millisecond)
	ms.Update(store.DeviceStatus{Name: "kitchen_basil", Availability: "online"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit on context cancellation")
	}

	if !strings.Contains(rec.Body.String(), "kitchen_basil") {
		t.Errorf("streamed update missing: %s", rec.Body.String())
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.DeviceStatus{Name: "balcony_flower", Availability: "online"})

	registry := prometheus.NewRegistry()
	srv := NewServer(ms, 0, registry, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	base := fmt.Sprintf("http://127.0.0.1:%d", srv.BoundPort())

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", resp.StatusCode)
	}

	cancel()

	// after shutdown the port should stop accepting
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := http.Get(base + "/healthz"); err != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("server still accepting requests after shutdown")
}

func TestServer_PortConflict(t *testing.T) {
	ms := newMockStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := NewServer(ms, 0, nil, zerolog.Nop())
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}

	second := NewServer(ms, first.BoundPort(), nil, zerolog.Nop())
	if err := second.Start(ctx); err == nil {
		t.Error("expected bind error for occupied port")
	}
}
