// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
	"github.com/relabs-tech/barometer_bridge/internal/gauge"
	"github.com/relabs-tech/barometer_bridge/internal/history"
	"github.com/relabs-tech/barometer_bridge/internal/metrics"
	"github.com/relabs-tech/barometer_bridge/internal/native"
)

type fakeNative struct {
	mu    sync.Mutex
	calls []string
	win   native.SuccessFunc
	fail  native.FailureFunc
}

func (f *fakeNative) Exec(_ string, action string, _ []any, win native.SuccessFunc, fail native.FailureFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, action)
	if action == "start" {
		f.win, f.fail = win, fail
	}
}

func (f *fakeNative) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// waitStarts blocks until the bridge has issued n start actions.
func (f *fakeNative) waitStarts(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		starts := 0
		for _, a := range f.actions() {
			if a == "start" {
				starts++
			}
		}
		if starts >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d native starts, got %v", n, f.actions())
}

func (f *fakeNative) emit(val float64, ts int64) {
	f.mu.Lock()
	win := f.win
	f.mu.Unlock()
	win(json.RawMessage(fmt.Sprintf(`{"val":%v,"timestamp":%d}`, val, ts)))
}

func (f *fakeNative) emitError(err error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	fail(err)
}

type fakeStore struct {
	*history.MemoryStore
	pingErr   error
	latestErr error
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) Latest(ctx context.Context, limit int) ([]barometer.Reading, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return s.MemoryStore.Latest(ctx, limit)
}

func newTestServer() (*WebServer, *fakeNative, *fakeStore) {
	fn := &fakeNative{}
	store := &fakeStore{MemoryStore: history.NewMemoryStore(100)}
	server := NewWebServer(barometer.New(fn), store, nil, WebOptions{
		Limits:         gauge.Limits{Min: 1000, Max: 1030},
		PicSize:        100,
		DemoWatchEvery: 5 * time.Millisecond,
	})
	return server, fn, store
}

func TestPressureBeforeFirstReading(t *testing.T) {
	server, _, _ := newTestServer()

	request := httptest.NewRequest(http.MethodGet, "/api/pressure", nil)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, response.Code)
	}
}

func TestPressureReturnsLastReading(t *testing.T) {
	server, fn, _ := newTestServer()

	if err := server.bridge.GetCurrentReading(func(barometer.Reading) {}, nil); err != nil {
		t.Fatalf("GetCurrentReading: %v", err)
	}
	fn.emit(1012.5, 1738886400000)

	request := httptest.NewRequest(http.MethodGet, "/api/pressure", nil)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.Code)
	}
	var got barometer.Reading
	if err := json.NewDecoder(response.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Value != 1012.5 || got.Timestamp != 1738886400000 {
		t.Fatalf("unexpected reading %+v", got)
	}
}

func TestPressureRejectsPost(t *testing.T) {
	server, _, _ := newTestServer()

	request := httptest.NewRequest(http.MethodPost, "/api/pressure", nil)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, response.Code)
	}
}

func TestReadingsLimitValidation(t *testing.T) {
	server, _, _ := newTestServer()

	for _, limit := range []string{"0", "-1", "abc", "10001"} {
		request := httptest.NewRequest(http.MethodGet, "/api/readings?limit="+limit, nil)
		response := httptest.NewRecorder()
		server.Handler().ServeHTTP(response, request)

		if response.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected status %d, got %d", limit, http.StatusBadRequest, response.Code)
		}
	}
}

func TestReadingsReturnsNewestWindow(t *testing.T) {
	server, _, store := newTestServer()
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		store.Add(ctx, barometer.Reading{Value: 1000 + float64(i), Timestamp: i})
	}

	request := httptest.NewRequest(http.MethodGet, "/api/readings?limit=2", nil)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.Code)
	}
	var body struct {
		Readings []barometer.Reading `json:"readings"`
	}
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Readings) != 2 || body.Readings[0].Timestamp != 4 || body.Readings[1].Timestamp != 5 {
		t.Fatalf("unexpected readings %+v", body.Readings)
	}
}

func TestReadingsStoreFailure(t *testing.T) {
	server, _, store := newTestServer()
	store.latestErr = errors.New("db down")

	request := httptest.NewRequest(http.MethodGet, "/api/readings", nil)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, response.Code)
	}
}

func TestHealth(t *testing.T) {
	server, _, store := newTestServer()

	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.Code)
	}

	store.pingErr = errors.New("unreachable")
	response = httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)
	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, response.Code)
	}
	if !strings.Contains(response.Body.String(), `"degraded"`) {
		t.Fatalf("expected degraded status, got %s", response.Body.String())
	}
}

func dialGauge(t *testing.T, server *WebServer) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// nextOfType reads messages until one of the given type arrives.
func nextOfType(t *testing.T, conn *websocket.Conn, typ string) WSResponse {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var resp WSResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("waiting for %q message: %v", typ, err)
		}
		if resp.Type == typ {
			return resp
		}
	}
}

func TestGaugeSessionStreamsFrames(t *testing.T) {
	server, fn, _ := newTestServer()
	conn := dialGauge(t, server)

	limits := nextOfType(t, conn, "limits")
	if limits.Min == nil || *limits.Min != 1000 || limits.Max == nil || *limits.Max != 1030 {
		t.Fatalf("unexpected initial limits %+v", limits)
	}

	if err := conn.WriteJSON(WSMessage{Action: "watch"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	fn.waitStarts(t, 1)
	fn.emit(1015, 1738886400000)

	resp := nextOfType(t, conn, "reading")
	if resp.Val == nil || *resp.Val != 1015 {
		t.Fatalf("unexpected reading %+v", resp)
	}
	if resp.Factor == nil || *resp.Factor != 1.5 {
		t.Fatalf("expected factor 1.5, got %+v", resp.Factor)
	}
	if resp.Size == nil || *resp.Size != 759.375 {
		t.Fatalf("expected size 759.375, got %+v", resp.Size)
	}

	if err := conn.WriteJSON(WSMessage{Action: "clear"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for server.bridge.Watches() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if server.bridge.Watches() != 0 || server.bridge.Running() {
		t.Fatalf("expected watch cleared and bridge stopped, actions %v", fn.actions())
	}
}

func TestGaugeSessionReportsErrors(t *testing.T) {
	server, fn, _ := newTestServer()
	conn := dialGauge(t, server)

	if err := conn.WriteJSON(WSMessage{Action: "watch"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	fn.waitStarts(t, 1)
	fn.emitError(&native.Error{Code: native.ErrCodeFailedToStart, Message: "Barometer could not be started."})

	resp := nextOfType(t, conn, "error")
	if resp.Message != "ERROR" {
		t.Fatalf("expected ERROR, got %q", resp.Message)
	}
}

func TestGaugeSessionEmptyRangeOmitsScale(t *testing.T) {
	server, fn, _ := newTestServer()
	conn := dialGauge(t, server)

	same := 1000
	if err := conn.WriteJSON(WSMessage{Action: "limits", Min: &same, Max: &same}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		l := nextOfType(t, conn, "limits")
		if *l.Min == same && *l.Max == same {
			break
		}
	}

	if err := conn.WriteJSON(WSMessage{Action: "watch"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	fn.waitStarts(t, 1)
	fn.emit(1005, 1738886400000)

	resp := nextOfType(t, conn, "reading")
	if resp.Factor != nil || resp.Size != nil {
		t.Fatalf("expected no scale for an empty range, got factor=%v size=%v", resp.Factor, resp.Size)
	}
}

func TestGaugeSessionUnknownAction(t *testing.T) {
	server, _, _ := newTestServer()
	conn := dialGauge(t, server)

	if err := conn.WriteJSON(WSMessage{Action: "spin"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp := nextOfType(t, conn, "error")
	if !strings.Contains(resp.Message, "spin") {
		t.Fatalf("expected unknown action message, got %q", resp.Message)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fn := &fakeNative{}
	bridge := barometer.New(fn)
	m := metrics.New()
	m.ObserveBridge(bridge)
	server := NewWebServer(bridge, history.NewMemoryStore(10), m, WebOptions{})

	handler := server.Handler()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/pressure", nil))

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if response.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.Code)
	}
	body := response.Body.String()
	if !strings.Contains(body, `http_requests_total{route="/api/pressure",status="503"} 1`) {
		t.Fatalf("expected the 503 counted, got:\n%s", body)
	}
	if !strings.Contains(body, "barometer_subscribers 0") {
		t.Fatalf("expected bridge gauges, got:\n%s", body)
	}
}

func TestHealthReportsLastReadingAge(t *testing.T) {
	server, fn, _ := newTestServer()
	if err := server.bridge.GetCurrentReading(func(barometer.Reading) {}, nil); err != nil {
		t.Fatalf("GetCurrentReading: %v", err)
	}
	fn.emit(1012, time.Now().Add(-3*time.Minute).UnixMilli())

	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["last_reading"] != "3 minutes ago" {
		t.Fatalf("expected last_reading 3 minutes ago, got %v", body["last_reading"])
	}
}
