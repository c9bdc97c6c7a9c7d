// Package orchestrator drives VPS lifecycle operations (provision, start,
// stop, destroy) and the agent runtime config/workspace that gets seeded
// onto a VPS at creation time.
package orchestrator

import "encoding/json"

// AgentConfig is the agent runtime's own config file, rebuilt and pushed
// to the VPS whenever the operator edits the model or tool policy.
type AgentConfig struct {
	Model *string
	// ToolsDeny lists tool names the agent may never invoke. Defaults to
	// blocking the two tools that would let an agent reach the control
	// plane's own management surface (gateway administration and the
	// node-topology tool) — a compromised agent should not be able to
	// widen its own sandbox.
	ToolsDeny []string
}

var defaultToolsDeny = []string{"gateway", "nodes"}

// agentConfigPath is where the agent runtime reads its config from inside
// the guest.
const agentConfigPath = "/root/.openclaw/openclaw.json"

// Render produces the pretty-printed JSON config file written to
// agentConfigPath on the VPS.
func (c AgentConfig) Render() (string, error) {
	deny := c.ToolsDeny
	if deny == nil {
		deny = defaultToolsDeny
	}

	doc := map[string]interface{}{
		"tools": map[string]interface{}{
			"deny": deny,
			"elevated": map[string]interface{}{
				"enabled": false,
			},
		},
		"agents": map[string]interface{}{
			"defaults": map[string]interface{}{
				"sandbox": map[string]interface{}{
					"mode":            "all",
					"scope":           "agent",
					"workspaceAccess": "readwrite",
					"docker": map[string]interface{}{
						"network": "none",
						"env":     map[string]string{},
					},
				},
			},
		},
		"gateway": map[string]interface{}{
			"bind": "0.0.0.0:18789",
			"auth": map[string]interface{}{
				"mode": "token",
			},
			"bonjour": false,
			"controlUi": map[string]interface{}{
				"basePath": "/agents/{agent_id}/gateway",
			},
		},
		"hooks": map[string]interface{}{
			"enabled": false,
		},
	}
	if c.Model != nil {
		doc["model"] = *c.Model
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
