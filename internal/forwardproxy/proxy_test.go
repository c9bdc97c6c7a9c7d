package forwardproxy

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"agentplane/internal/store"
)

type fakeLedger struct {
	total atomic.Int64
}

func (f *fakeLedger) AddBandwidth(ctx context.Context, vpsID uuid.UUID, delta int64) error {
	f.total.Add(delta)
	return nil
}

func (f *fakeLedger) GetUserAggregate(ctx context.Context, userID uuid.UUID) (*store.AggregateUsage, error) {
	return &store.AggregateUsage{}, nil
}

// echoListener accepts one TCP connection and echoes everything back.
func echoListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestHandleConnectTunnelsAndRecordsBytes(t *testing.T) {
	echo := echoListener(t)
	vpsID := uuid.New()
	rec := &fakeLedger{}
	s := &Server{ledger: rec, limiters: newLimiterSet()}
	agent := &store.Agent{ID: uuid.New(), VpsID: &vpsID}

	clientSide, proxySide := net.Pipe()
	req := &http.Request{Method: http.MethodConnect, Host: echo.Addr().String()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleConnect(context.Background(), proxySide, req, agent)
	}()

	reader := bufio.NewReader(clientSide)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.Contains(status, "200") {
		t.Fatalf("status line = %q, want 200", status)
	}
	// Consume the blank line terminating the response head.
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("read header terminator: %v", err)
	}

	payload := "hello through the tunnel"
	if _, err := clientSide.Write([]byte(payload)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	buf := make([]byte, len(payload))
	if _, err := io.ReadFull(reader, buf); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(buf) != payload {
		t.Errorf("echoed = %q, want %q", buf, payload)
	}

	clientSide.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tunnel did not shut down after client close")
	}

	// Both directions counted: payload out plus the echo back in.
	if got := rec.total.Load(); got != int64(2*len(payload)) {
		t.Errorf("recorded bytes = %d, want %d", got, 2*len(payload))
	}
}

func TestHandleConnectUnreachableTargetReturns502(t *testing.T) {
	rec := &fakeLedger{}
	s := &Server{ledger: rec, limiters: newLimiterSet()}
	vpsID := uuid.New()
	agent := &store.Agent{ID: uuid.New(), VpsID: &vpsID}

	// A local port that was just closed, so the dial is refused immediately.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := ln.Addr().String()
	ln.Close()

	clientSide, proxySide := net.Pipe()
	defer clientSide.Close()
	req := &http.Request{Method: http.MethodConnect, Host: deadAddr}

	go s.handleConnect(context.Background(), proxySide, req, agent)

	clientSide.SetReadDeadline(time.Now().Add(15 * time.Second))
	status, err := bufio.NewReader(clientSide).ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.Contains(status, "502") {
		t.Errorf("status line = %q, want 502", status)
	}
}
