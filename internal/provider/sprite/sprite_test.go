package sprite

import (
	"testing"

	"agentplane/internal/provider"
)

func TestParseState(t *testing.T) {
	cases := map[string]provider.State{
		"running":    provider.StateRunning,
		"created":    provider.StateStarting,
		"restarting": provider.StateStarting,
		"exited":     provider.StateStopped,
		"paused":     provider.StateStopped,
		"removing":   provider.StateDestroyed,
		"dead":       provider.StateDestroyed,
		"bogus":      provider.StateUnknown,
	}
	for raw, want := range cases {
		if got := parseState(raw); got != want {
			t.Errorf("parseState(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestContainerName(t *testing.T) {
	if got := containerName("my-agent"); got != "agentplane-sprite-my-agent" {
		t.Errorf("containerName = %q", got)
	}
}
