package gatewayproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"agentplane/internal/logger"
	"agentplane/internal/metrics"
)

// mailboxCapacity bounds the client writer's outbound queue: a slow
// client backpressures the upstream reader, which suspends on send
// rather than buffering unboundedly.
const mailboxCapacity = 64

type outboundMsg struct {
	kind websocket.MessageType
	data []byte
}

// handleWS relays a client WebSocket connection to the agent's in-VPS
// gateway WS endpoint, rewriting the connect handshake and filtering
// JSON-RPC methods on the client→upstream direction.
//
// nhooyr.io/websocket answers protocol-level pings transparently and
// never surfaces them to Read, so this relay only ever forwards Text and
// Binary messages; a close from either side ends that side's Read with an
// error, which cancels the relay.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, res *resolved) {
	client, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		logger.Error("[GatewayProxy] accept failed for agent %s: %v", res.Agent.ID, err)
		return
	}
	defer client.Close(websocket.StatusInternalError, "")

	upstreamURL := fmt.Sprintf("ws://%s:%d/ws", *res.Vps.Address, s.gatewayPort)
	relayCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upstream, _, err := websocket.Dial(relayCtx, upstreamURL, nil)
	if err != nil {
		logger.Error("[GatewayProxy] upstream dial failed for agent %s: %v", res.Agent.ID, err)
		client.Close(websocket.StatusInternalError, "upstream unreachable")
		return
	}
	defer upstream.Close(websocket.StatusInternalError, "")

	var bytesCounter atomic.Int64
	mailbox := make(chan outboundMsg, mailboxCapacity)
	done := make(chan struct{}, 2)
	var handshakeDone atomic.Bool

	// client writer: drains the mailbox toward the client.
	go func() {
		for {
			select {
			case <-relayCtx.Done():
				return
			case msg, ok := <-mailbox:
				if !ok {
					return
				}
				if err := client.Write(relayCtx, msg.kind, msg.data); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// upstream reader -> client mailbox.
	go func() {
		defer func() { done <- struct{}{} }()
		for {
			kind, data, err := upstream.Read(relayCtx)
			if err != nil {
				cancel()
				return
			}
			bytesCounter.Add(int64(len(data)))
			select {
			case mailbox <- outboundMsg{kind: kind, data: data}:
			case <-relayCtx.Done():
				return
			}
		}
	}()

	// client reader -> upstream writer.
	go func() {
		defer func() { done <- struct{}{} }()
		for {
			kind, data, err := client.Read(relayCtx)
			if err != nil {
				cancel()
				return
			}
			bytesCounter.Add(int64(len(data)))

			if kind != websocket.MessageText {
				if werr := upstream.Write(relayCtx, kind, data); werr != nil {
					cancel()
					return
				}
				continue
			}

			var parsed map[string]interface{}
			if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
				// Not JSON-RPC shaped; forward verbatim.
				if werr := upstream.Write(relayCtx, kind, data); werr != nil {
					cancel()
					return
				}
				continue
			}

			if !handshakeDone.Load() && isConnectHandshake(parsed) {
				rewriteHandshake(parsed, res.Agent.GatewayToken)
				handshakeDone.Store(true)
				out, _ := json.Marshal(parsed)
				if werr := upstream.Write(relayCtx, kind, out); werr != nil {
					cancel()
					return
				}
				continue
			}

			if method, _ := parsed["method"].(string); method != "" && isBlockedMethod(method) {
				metrics.RecordGatewayProxyBlocked(method)
				reply, _ := json.Marshal(blockedReply(parsed["id"], method))
				select {
				case mailbox <- outboundMsg{kind: websocket.MessageText, data: reply}:
				case <-relayCtx.Done():
				}
				continue
			}

			if werr := upstream.Write(relayCtx, kind, data); werr != nil {
				cancel()
				return
			}
		}
	}()

	<-done
	<-done

	total := bytesCounter.Load()
	metrics.RecordGatewayProxyBytes(res.Agent.ID.String(), "ws", total)
	if total > 0 {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := s.ledger.AddBandwidth(flushCtx, res.Vps.ID, total); err != nil {
			logger.Error("[GatewayProxy] failed to record ws usage for agent %s: %v", res.Agent.ID, err)
		}
	}
}
