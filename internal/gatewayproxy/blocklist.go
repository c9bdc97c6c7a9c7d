package gatewayproxy

import "strings"

// blockedExact lists JSON-RPC methods blocked regardless of prefix.
var blockedExact = map[string]bool{
	"exec.approval.resolve": true,
	"update.run":            true,
}

// blockedPrefixes lists method-name prefixes blocked wholesale.
var blockedPrefixes = []string{"config.", "exec.approvals."}

// isBlockedMethod is the idempotent predicate gating the client→upstream
// JSON-RPC direction after handshake: an agent's in-VPS gateway exposes
// administrative surface (config rewrite, exec approval, self-update)
// that must only ever be reachable from the server-side orchestrator,
// never directly from the frontend.
func isBlockedMethod(method string) bool {
	if blockedExact[method] {
		return true
	}
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}
