package gatewayproxy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// signNonce computes hex(HMAC-SHA256(key=gatewayToken, msg=nonce)), the
// proof the in-VPS gateway uses to confirm a connect handshake originated
// from the control plane rather than a client that merely knows the
// token.
func signNonce(gatewayToken, nonce string) string {
	mac := hmac.New(sha256.New, []byte(gatewayToken))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// rewriteHandshake substitutes the real gateway token into a client's
// connect handshake message and, if a nonce was supplied, adds its signed
// counterpart. It must tolerate arbitrary JSON shape — missing params,
// missing auth, missing nonce — rewriting only the fields that are
// present, never failing the connection over a shape mismatch.
func rewriteHandshake(msg map[string]interface{}, gatewayToken string) {
	method, _ := msg["method"].(string)
	if method != "connect" {
		return
	}
	params, ok := msg["params"].(map[string]interface{})
	if !ok {
		return
	}
	if auth, ok := params["auth"].(map[string]interface{}); ok {
		auth["token"] = gatewayToken
	}
	if nonce, ok := params["nonce"].(string); ok {
		params["signedNonce"] = signNonce(gatewayToken, nonce)
	}
}

// isConnectHandshake reports whether msg is a connect handshake (method
// "connect"); whether it is the first message is tracked by the caller.
func isConnectHandshake(msg map[string]interface{}) bool {
	method, _ := msg["method"].(string)
	return method == "connect"
}

// blockedReply synthesizes the JSON-RPC error reply sent back to the
// client for a blocked method, echoing the original request id verbatim
// (whatever JSON type it was) so the client's pending-request map can
// still resolve it.
func blockedReply(id interface{}, method string) map[string]interface{} {
	return map[string]interface{}{
		"id": id,
		"error": map[string]interface{}{
			"code":    -32601,
			"message": fmt.Sprintf("method '%s' is blocked", method),
		},
	}
}
