package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/transport"
)

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return bytes.NewReader(data)
}

func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return "http://" + ln.Addr().String()
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	srv := NewServer(&mockCompleter{response: chatResponse()}, nil, WithAddr("127.0.0.1:0"))
	base := startServer(t, srv)

	resp, err := gohttp.Post(base+"/v1/chat", "application/json",
		jsonBody(t, api.ChatRequest{Messages: []api.RawTurn{{Role: "user", Content: "What is 2+2?"}}}))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}

	var got api.ChatResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ID != chatResponse().ID {
		t.Errorf("response ID = %q, want %q", got.ID, chatResponse().ID)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Errorf("missing %s header", RequestIDHeader)
	}
}

func TestServerHealthz(t *testing.T) {
	srv := NewServer(&mockCompleter{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/healthz", nil))

	if rec.Code != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, gohttp.StatusOK)
	}
	if rec.Body.String() != "ok\n" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok\n")
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv := NewServer(&mockCompleter{}, nil)

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(gohttp.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/metrics", nil))

	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, gohttp.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "palaver_requests_total") {
		t.Error("metrics output missing palaver_requests_total")
	}
}

func TestServerMetricsDisabled(t *testing.T) {
	srv := NewServer(&mockCompleter{}, nil, WithMetrics(false))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, "/metrics", nil))

	if rec.Code != gohttp.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, gohttp.StatusNotFound)
	}
}

func TestServerRecoversFromPanics(t *testing.T) {
	completer := transport.ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
		panic("boom")
	})
	srv := NewServer(completer, nil)

	req := httptest.NewRequest(gohttp.MethodPost, "/v1/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != gohttp.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, gohttp.StatusInternalServerError)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	slow := transport.ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return chatResponse(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	srv := NewServer(slow, nil, WithShutdownTimeout(5*time.Second))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go srv.httpServer.Serve(ln)

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post("http://"+ln.Addr().String()+"/v1/chat", "application/json",
			strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	if status := <-responseCh; status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestServerShutdownCancelsStragglers(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	stuck := transport.ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})

	srv := NewServer(stuck, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go srv.httpServer.Serve(ln)

	go func() {
		resp, err := gohttp.Post("http://"+ln.Addr().String()+"/v1/chat", "application/json",
			strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(ctx); err == nil {
		t.Error("expected shutdown to report the missed deadline")
	}

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not cancelled")
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(&mockCompleter{}, nil,
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithShutdownTimeout(10*time.Second),
		WithMetrics(false),
		WithMaxConcurrent(4),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.config.Metrics {
		t.Error("metrics should be disabled")
	}
	if srv.config.MaxConcurrent != 4 {
		t.Errorf("max concurrent = %d, want 4", srv.config.MaxConcurrent)
	}
}

func TestServerConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	slow := transport.ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
		entered <- struct{}{}
		<-release
		return chatResponse(), nil
	})
	srv := NewServer(slow, nil, WithMaxConcurrent(1), WithMetrics(false))
	base := startServer(t, srv)

	body := api.ChatRequest{Messages: []api.RawTurn{{Role: "user", Content: "hi"}}}
	first := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post(base+"/v1/chat", "application/json", jsonBody(t, body))
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()
	<-entered

	resp, err := gohttp.Post(base+"/v1/chat", "application/json", jsonBody(t, body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()
	close(release)

	if resp.StatusCode != gohttp.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", resp.StatusCode)
	}
	if got := <-first; got != gohttp.StatusOK {
		t.Errorf("first request status = %d, want 200", got)
	}
}
