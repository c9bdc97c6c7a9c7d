package gatewayproxy

import "testing"

func TestIsBlockedMethod(t *testing.T) {
	cases := map[string]bool{
		"config.patch":          true,
		"config.get":            true,
		"exec.approvals.list":   true,
		"exec.approval.resolve": true,
		"update.run":            true,
		"tools.invoke":          false,
		"chat.send":             false,
		"":                      false,
		"configuration.get":     false, // must not match on a loose substring
	}
	for method, want := range cases {
		if got := isBlockedMethod(method); got != want {
			t.Errorf("isBlockedMethod(%q) = %v, want %v", method, got, want)
		}
	}
}

func TestIsBlockedMethodIsIdempotent(t *testing.T) {
	for _, method := range []string{"config.patch", "chat.send", "exec.approval.resolve"} {
		first := isBlockedMethod(method)
		second := isBlockedMethod(method)
		if first != second {
			t.Errorf("isBlockedMethod(%q) is not stable across calls", method)
		}
	}
}
