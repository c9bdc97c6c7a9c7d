package gatewayproxy

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"agentplane/internal/store"
)

type fakeRecorder struct {
	total atomic.Int64
}

func (f *fakeRecorder) AddBandwidth(ctx context.Context, vpsID uuid.UUID, delta int64) error {
	f.total.Add(delta)
	return nil
}

// upstreamEcho is a stand-in for the in-VPS gateway: it accepts a WS
// connection at any path and forwards every received text frame into msgs.
func upstreamEcho(t *testing.T, msgs chan []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("upstream accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			msgs <- data
		}
	}))
}

// relayFixture wires a client WS connection through handleWS to a fake
// upstream, returning the client connection, the upstream's received
// messages, and the byte recorder.
func relayFixture(t *testing.T, gatewayToken string) (*websocket.Conn, chan []byte, *fakeRecorder) {
	t.Helper()

	msgs := make(chan []byte, 16)
	upstream := upstreamEcho(t, msgs)
	t.Cleanup(upstream.Close)

	port := upstream.Listener.Addr().(*net.TCPAddr).Port
	addr := "127.0.0.1"
	rec := &fakeRecorder{}
	s := &Server{ledger: rec, gatewayPort: port}
	res := &resolved{
		Agent: &store.Agent{ID: uuid.New(), GatewayToken: gatewayToken},
		Vps:   &store.Vps{ID: uuid.New(), Address: &addr, State: store.VpsRunning},
	}

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(w, r, res)
	}))
	t.Cleanup(proxy.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	client, _, err := websocket.Dial(ctx, "ws://"+proxy.Listener.Addr().String(), nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	t.Cleanup(func() { client.Close(websocket.StatusNormalClosure, "") })
	return client, msgs, rec
}

func recvUpstream(t *testing.T, msgs chan []byte) map[string]interface{} {
	t.Helper()
	select {
	case data := <-msgs:
		var parsed map[string]interface{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("upstream received invalid JSON: %v", err)
		}
		return parsed
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for upstream message")
		return nil
	}
}

func TestWSHandshakeRewrite(t *testing.T) {
	client, msgs, _ := relayFixture(t, "gw-secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handshake := `{"id":1,"method":"connect","params":{"auth":{"token":"CLIENT"},"nonce":"abc"}}`
	if err := client.Write(ctx, websocket.MessageText, []byte(handshake)); err != nil {
		t.Fatalf("client write: %v", err)
	}

	got := recvUpstream(t, msgs)
	params := got["params"].(map[string]interface{})
	auth := params["auth"].(map[string]interface{})
	if auth["token"] != "gw-secret" {
		t.Errorf("upstream auth.token = %v, want the real gateway token", auth["token"])
	}
	if params["signedNonce"] != signNonce("gw-secret", "abc") {
		t.Errorf("upstream signedNonce = %v, want hmac of the nonce", params["signedNonce"])
	}

	// Subsequent non-blocked messages pass through untouched.
	follow := `{"id":2,"method":"chat.send","params":{"text":"hi"}}`
	if err := client.Write(ctx, websocket.MessageText, []byte(follow)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	got = recvUpstream(t, msgs)
	if got["method"] != "chat.send" {
		t.Errorf("upstream method = %v, want chat.send", got["method"])
	}
}

func TestWSBlockedMethodRepliesWithErrorAndDoesNotForward(t *testing.T) {
	client, msgs, _ := relayFixture(t, "gw-secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handshake := `{"id":1,"method":"connect","params":{"auth":{"token":"x"}}}`
	if err := client.Write(ctx, websocket.MessageText, []byte(handshake)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	recvUpstream(t, msgs)

	blocked := `{"id":7,"method":"config.patch","params":{}}`
	if err := client.Write(ctx, websocket.MessageText, []byte(blocked)); err != nil {
		t.Fatalf("client write: %v", err)
	}

	_, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	var reply map[string]interface{}
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("client received invalid JSON: %v", err)
	}
	if reply["id"] != float64(7) {
		t.Errorf("reply id = %v, want 7", reply["id"])
	}
	errBody := reply["error"].(map[string]interface{})
	if errBody["code"] != float64(-32601) {
		t.Errorf("reply code = %v, want -32601", errBody["code"])
	}
	if errBody["message"] != "method 'config.patch' is blocked" {
		t.Errorf("reply message = %v", errBody["message"])
	}

	// Prove nothing was forwarded: the next allowed message must be the
	// very next thing upstream sees.
	allowed := `{"id":8,"method":"chat.send","params":{}}`
	if err := client.Write(ctx, websocket.MessageText, []byte(allowed)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	got := recvUpstream(t, msgs)
	if got["id"] != float64(8) {
		t.Errorf("upstream saw id %v next, want 8 (blocked message must not be forwarded)", got["id"])
	}
}

func TestWSNonJSONTextForwardedVerbatim(t *testing.T) {
	client, msgs, _ := relayFixture(t, "gw-secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Write(ctx, websocket.MessageText, []byte("not json at all")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	select {
	case data := <-msgs:
		if string(data) != "not json at all" {
			t.Errorf("upstream received %q", data)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for upstream message")
	}
}

func TestWSFlushesBandwidthOnClose(t *testing.T) {
	client, msgs, rec := relayFixture(t, "gw-secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := `{"id":1,"method":"chat.send","params":{}}`
	if err := client.Write(ctx, websocket.MessageText, []byte(payload)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	recvUpstream(t, msgs)
	client.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(3 * time.Second)
	for rec.total.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := rec.total.Load(); got < int64(len(payload)) {
		t.Errorf("recorded bandwidth = %d, want at least %d", got, len(payload))
	}
}
