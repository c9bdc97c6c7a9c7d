package gatewayproxy

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"agentplane/internal/store"
)

func httpFixture(t *testing.T, upstream http.HandlerFunc) (*Server, *resolved, *fakeRecorder) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	addr := "127.0.0.1"
	rec := &fakeRecorder{}
	s := &Server{
		ledger:      rec,
		gatewayPort: srv.Listener.Addr().(*net.TCPAddr).Port,
	}
	res := &resolved{
		Agent: &store.Agent{ID: uuid.New(), GatewayToken: "gw-secret"},
		Vps:   &store.Vps{ID: uuid.New(), Address: &addr, State: store.VpsRunning},
	}
	return s, res, rec
}

func TestHTTPBlocksToolsInvoke(t *testing.T) {
	s, res, _ := httpFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must never see a tools/invoke request")
	})

	r := httptest.NewRequest(http.MethodPost, "/agents/x/gateway/tools/invoke", nil)
	w := httptest.NewRecorder()
	s.handleHTTP(w, r, res, "tools/invoke")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHTTPBodyAtLimitForwarded(t *testing.T) {
	var gotLen int64
	var gotAuth string
	s, res, rec := httpFixture(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotLen = int64(len(b))
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	})

	body := bytes.Repeat([]byte("a"), maxBodyBytes)
	r := httptest.NewRequest(http.MethodPost, "/agents/x/gateway/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handleHTTP(w, r, res, "chat")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotLen != int64(maxBodyBytes) {
		t.Errorf("upstream body length = %d, want %d", gotLen, maxBodyBytes)
	}
	if gotAuth != "Bearer gw-secret" {
		t.Errorf("upstream Authorization = %q, want the injected gateway token", gotAuth)
	}
	if got := rec.total.Load(); got != int64(maxBodyBytes)+2 {
		t.Errorf("recorded bytes = %d, want %d", got, maxBodyBytes+2)
	}
}

func TestHTTPBodyOverLimitRejected(t *testing.T) {
	s, res, rec := httpFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be reached for an oversized body")
	})

	body := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	r := httptest.NewRequest(http.MethodPost, "/agents/x/gateway/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handleHTTP(w, r, res, "chat")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if rec.total.Load() != 0 {
		t.Errorf("rejected request must not record usage, got %d", rec.total.Load())
	}
}

func TestHTTPStripsIdentityHeaders(t *testing.T) {
	var gotCookie, gotAuth string
	s, res, _ := httpFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotAuth = r.Header.Get("Authorization")
	})

	r := httptest.NewRequest(http.MethodGet, "/agents/x/gateway/status", nil)
	r.Header.Set("Cookie", "session=abc")
	r.Header.Set("Authorization", "Bearer caller-jwt")
	w := httptest.NewRecorder()
	s.handleHTTP(w, r, res, "status")

	if gotCookie != "" {
		t.Errorf("Cookie leaked upstream: %q", gotCookie)
	}
	if gotAuth != "Bearer gw-secret" {
		t.Errorf("Authorization = %q, want only the gateway token", gotAuth)
	}
}
