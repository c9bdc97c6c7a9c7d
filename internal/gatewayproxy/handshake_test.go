package gatewayproxy

import "testing"

func TestRewriteHandshakeSubstitutesTokenAndSignsNonce(t *testing.T) {
	msg := map[string]interface{}{
		"id":     float64(1),
		"method": "connect",
		"params": map[string]interface{}{
			"auth":  map[string]interface{}{"token": "client-supplied"},
			"nonce": "abc",
		},
	}
	rewriteHandshake(msg, "real-gateway-token")

	params := msg["params"].(map[string]interface{})
	auth := params["auth"].(map[string]interface{})
	if auth["token"] != "real-gateway-token" {
		t.Errorf("auth.token = %v, want real-gateway-token", auth["token"])
	}
	want := signNonce("real-gateway-token", "abc")
	if params["signedNonce"] != want {
		t.Errorf("signedNonce = %v, want %v", params["signedNonce"], want)
	}
}

func TestRewriteHandshakeIgnoresNonConnectMethods(t *testing.T) {
	msg := map[string]interface{}{"method": "chat.send", "params": map[string]interface{}{}}
	rewriteHandshake(msg, "token")
	params := msg["params"].(map[string]interface{})
	if _, ok := params["signedNonce"]; ok {
		t.Error("non-connect messages must not be rewritten")
	}
}

func TestRewriteHandshakeTolerateMissingShape(t *testing.T) {
	// No params at all.
	msg1 := map[string]interface{}{"method": "connect"}
	rewriteHandshake(msg1, "token") // must not panic

	// params present, but no auth and no nonce.
	msg2 := map[string]interface{}{"method": "connect", "params": map[string]interface{}{}}
	rewriteHandshake(msg2, "token") // must not panic
	params := msg2["params"].(map[string]interface{})
	if _, ok := params["signedNonce"]; ok {
		t.Error("signedNonce should not appear when no nonce was supplied")
	}

	// auth present but not a map.
	msg3 := map[string]interface{}{"method": "connect", "params": map[string]interface{}{"auth": "not-a-map"}}
	rewriteHandshake(msg3, "token") // must not panic
}

func TestSignNonceIsDeterministic(t *testing.T) {
	a := signNonce("key", "nonce")
	b := signNonce("key", "nonce")
	if a != b {
		t.Error("signNonce should be deterministic for the same inputs")
	}
	if signNonce("key", "other-nonce") == a {
		t.Error("signNonce should differ across distinct nonces")
	}
}

func TestBlockedReplyEchoesID(t *testing.T) {
	reply := blockedReply(float64(7), "config.patch")
	if reply["id"] != float64(7) {
		t.Errorf("id = %v, want 7", reply["id"])
	}
	errBody, ok := reply["error"].(map[string]interface{})
	if !ok {
		t.Fatal("error field missing or wrong type")
	}
	if errBody["code"] != -32601 {
		t.Errorf("code = %v, want -32601", errBody["code"])
	}
}
