package gatewayproxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/logger"
	"agentplane/internal/metrics"
)

const maxBodyBytes = 10 * 1024 * 1024 // 10 MiB

var hopByHopHeaders = []string{"Host", "Cookie", "Authorization", "Connection", "Transfer-Encoding"}

// handleHTTP relays a single request through to the agent's in-VPS
// gateway at http://{address}:{gatewayPort}/{path}, stripping
// hop-by-hop/identity headers and injecting the real gateway token.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request, res *resolved, path string) {
	if r.Method == http.MethodPost && path == "tools/invoke" {
		apperr.WriteError(w, apperr.BadRequest("tools.invoke is not reachable through the gateway proxy"))
		return
	}

	limited := http.MaxBytesReader(w, r.Body, maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		apperr.WriteError(w, apperr.BadRequest("request body too large"))
		return
	}
	if len(body) > maxBodyBytes {
		apperr.WriteError(w, apperr.BadRequest("request body too large"))
		return
	}

	upstreamURL := fmt.Sprintf("http://%s:%d/%s", *res.Vps.Address, s.gatewayPort, path)
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, bytes.NewReader(body))
	if err != nil {
		apperr.WriteError(w, apperr.Internal("failed to build upstream request"))
		return
	}
	req.Header = r.Header.Clone()
	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}
	req.Header.Set("Authorization", "Bearer "+res.Agent.GatewayToken)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		apperr.WriteError(w, apperr.Infra(err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		apperr.WriteError(w, apperr.Infra(err))
		return
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)

	s.recordUsage(r.Context(), res.Vps.ID, res.Agent.ID, int64(len(body)), int64(len(respBody)))
}

func (s *Server) recordUsage(ctx context.Context, vpsID, agentID uuid.UUID, requestBytes, responseBytes int64) {
	total := requestBytes + responseBytes
	metrics.RecordGatewayProxyBytes(agentID.String(), "request", requestBytes)
	metrics.RecordGatewayProxyBytes(agentID.String(), "response", responseBytes)
	if total <= 0 {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ledger.AddBandwidth(flushCtx, vpsID, total); err != nil {
		logger.Error("[GatewayProxy] failed to record usage for agent %s: %v", agentID, err)
	}
}
