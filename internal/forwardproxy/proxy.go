// Package forwardproxy implements the agent egress proxy: an
// authenticated HTTP/CONNECT proxy every agent's outbound traffic is
// routed through via its HTTP_PROXY/HTTPS_PROXY environment, performing
// per-request admission control and recording bidirectional byte counts
// into the usage ledger.
package forwardproxy

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"agentplane/internal/logger"
	"agentplane/internal/metrics"
	"agentplane/internal/store"

	"github.com/google/uuid"
)

// usageLedger is the slice of the usage ledger the proxy needs: byte
// accounting on stream end and the per-user aggregate for admission.
type usageLedger interface {
	AddBandwidth(ctx context.Context, vpsID uuid.UUID, delta int64) error
	GetUserAggregate(ctx context.Context, userID uuid.UUID) (*store.AggregateUsage, error)
}

// Server is the forward proxy's accept loop and per-connection state.
type Server struct {
	agents  *store.AgentRepo
	vpses   *store.VpsRepo
	users   *store.UserRepo
	plans   *store.PlanRepo
	budgets *store.BudgetRepo
	ledger  usageLedger

	limiters *limiterSet
}

func NewServer(
	agents *store.AgentRepo,
	vpses *store.VpsRepo,
	users *store.UserRepo,
	plans *store.PlanRepo,
	budgets *store.BudgetRepo,
	l usageLedger,
) *Server {
	return &Server{
		agents:   agents,
		vpses:    vpses,
		users:    users,
		plans:    plans,
		budgets:  budgets,
		ledger:   l,
		limiters: newLimiterSet(),
	}
}

// ListenAndServe runs the accept loop until ctx is cancelled. Each
// accepted connection is handled on its own goroutine.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("[ForwardProxy] listening on %s", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Error("[ForwardProxy] accept: %v", err)
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		req, err := http.ReadRequest(reader)
		if err != nil {
			return
		}

		agent, ok := s.authenticate(ctx, req)
		if !ok {
			s.writeStatusLine(conn, http.StatusProxyAuthRequired, "Proxy Authentication Required", map[string]string{
				"Proxy-Authenticate": `Basic realm="agentplane-forward-proxy"`,
			})
			return
		}

		if !s.limiters.allow(agent.ID) {
			s.writeStatusLine(conn, http.StatusTooManyRequests, "Too Many Requests", nil)
			continue
		}

		if appErr := s.admit(ctx, agent); appErr != nil {
			s.writeStatusLine(conn, appErr.Status(), appErr.Msg, nil)
			return
		}

		if req.Method == http.MethodConnect {
			s.handleConnect(ctx, conn, req, agent)
			return // the tunnel consumes the rest of the connection
		}

		if !s.handlePlain(ctx, conn, req, agent) {
			return
		}
	}
}

// writeStatusLine writes a minimal HTTP/1.1 status line response directly
// to the raw connection, used for proxy-level errors that occur before or
// instead of forwarding a request.
func (s *Server) writeStatusLine(conn net.Conn, code int, reason string, headers map[string]string) {
	if reason == "" {
		reason = http.StatusText(code)
	}
	b := []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, reason))
	for k, v := range headers {
		b = append(b, []byte(k+": "+v+"\r\n")...)
	}
	b = append(b, []byte("Content-Length: 0\r\n\r\n")...)
	conn.Write(b)
}

// handleConnect opens a TCP tunnel to req.Host and pumps bytes
// bidirectionally until either side closes, then flushes the total byte
// count into the usage ledger.
func (s *Server) handleConnect(ctx context.Context, client net.Conn, req *http.Request, agent *store.Agent) {
	target, err := net.DialTimeout("tcp", req.Host, 10*time.Second)
	if err != nil {
		s.writeStatusLine(client, http.StatusBadGateway, "Bad Gateway", nil)
		return
	}
	defer target.Close()

	if _, err := client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	var bytesIn, bytesOut atomic.Int64
	done := make(chan struct{}, 2)

	go func() {
		n, _ := io.Copy(target, client)
		bytesOut.Add(n)
		target.Close()
		done <- struct{}{}
	}()
	go func() {
		n, _ := io.Copy(client, target)
		bytesIn.Add(n)
		client.Close()
		done <- struct{}{}
	}()

	<-done
	<-done

	total := bytesIn.Load() + bytesOut.Load()
	s.recordUsage(ctx, agent, bytesIn.Load(), bytesOut.Load())
	logger.Debug("[ForwardProxy] tunnel to %s closed, agent=%s bytes=%d", req.Host, agent.ID, total)
}

// handlePlain relays a single non-CONNECT request/response pair,
// stripping Proxy-Authorization before forwarding, and reports whether
// the connection should stay open for a further request.
func (s *Server) handlePlain(ctx context.Context, conn net.Conn, req *http.Request, agent *store.Agent) bool {
	req.Header.Del("Proxy-Authorization")
	req.RequestURI = ""

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		s.writeStatusLine(conn, http.StatusBadGateway, "Bad Gateway", nil)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	resp.ContentLength = int64(len(respBody))

	reqBodyLen := req.ContentLength
	if reqBodyLen < 0 {
		reqBodyLen = 0
	}

	if err := resp.Write(conn); err != nil {
		return false
	}

	s.recordUsage(ctx, agent, int64(len(respBody)), reqBodyLen)
	return !resp.Close
}

func (s *Server) recordUsage(ctx context.Context, agent *store.Agent, bytesIn, bytesOut int64) {
	total := bytesIn + bytesOut
	metrics.RecordForwardProxyBytes(agent.ID.String(), "in", bytesIn)
	metrics.RecordForwardProxyBytes(agent.ID.String(), "out", bytesOut)
	if total <= 0 || agent.VpsID == nil {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ledger.AddBandwidth(flushCtx, *agent.VpsID, total); err != nil {
		logger.Error("[ForwardProxy] failed to record usage for agent %s: %v", agent.ID, err)
	}
}
