package diag

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inferd/pkg/types"
)

type fakeSource struct {
	running bool
	status  types.StatusResponse
}

func (f *fakeSource) Running() bool                { return f.running }
func (f *fakeSource) Status() types.StatusResponse { return f.status }

func do(t *testing.T, h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	src := &fakeSource{running: true}
	h := NewMux(src, Options{})
	if rr := do(t, h, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 while running, got %d", rr.Code)
	}
	src.running = false
	if rr := do(t, h, http.MethodGet, "/healthz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when stopped, got %d", rr.Code)
	}
}

func TestStatusJSON(t *testing.T) {
	src := &fakeSource{running: true, status: types.StatusResponse{
		RunID: "r1", State: "running", Plugin: "template", InputWorkers: 2, InferenceWorkers: 3, ModelContexts: 3,
		Stages: []types.StageStats{{Stage: "model_infer", Count: 4, AvgMs: 1.5}},
	}}
	rr := do(t, NewMux(src, Options{}), http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	var got types.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "r1" || got.ModelContexts != 3 || len(got.Stages) != 1 || got.Stages[0].Count != 4 {
		t.Fatalf("unexpected status %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewMux(&fakeSource{running: true}, Options{})
	do(t, h, http.MethodGet, "/healthz", nil)
	rr := do(t, h, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "inferd_http_requests_total") {
		t.Fatalf("expected inferd_http_requests_total in metrics")
	}
	if !strings.Contains(body, `path="/healthz"`) {
		t.Fatalf("expected route pattern label for /healthz")
	}
}

func TestNotFoundJSON(t *testing.T) {
	rr := do(t, NewMux(&fakeSource{}, Options{}), http.MethodGet, "/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Code != http.StatusNotFound {
		t.Fatalf("unexpected error body %q (%v)", rr.Body.String(), err)
	}
}

func TestCORSOptIn(t *testing.T) {
	origin := map[string]string{"Origin": "http://dash.local"}
	rr := do(t, NewMux(&fakeSource{running: true}, Options{}), http.MethodGet, "/status", origin)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("CORS header set without opt-in")
	}
	rr = do(t, NewMux(&fakeSource{running: true}, Options{CORSOrigins: []string{"http://dash.local"}}), http.MethodGet, "/status", origin)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, addr, NewMux(&fakeSource{running: true}, Options{}), nil) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
