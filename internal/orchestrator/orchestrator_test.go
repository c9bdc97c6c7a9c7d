package orchestrator

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAgentConfigRenderDefaultsToolsDeny(t *testing.T) {
	out, err := (AgentConfig{}).Render()
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("Render() produced invalid JSON: %v", err)
	}
	tools := doc["tools"].(map[string]interface{})
	deny := tools["deny"].([]interface{})
	if len(deny) != 2 || deny[0] != "gateway" || deny[1] != "nodes" {
		t.Errorf("tools.deny = %v, want [gateway nodes]", deny)
	}
	elevated := tools["elevated"].(map[string]interface{})
	if elevated["enabled"] != false {
		t.Error("tools.elevated.enabled should default to false")
	}
}

func TestAgentConfigRenderWithModel(t *testing.T) {
	model := "sonnet-large"
	out, err := (AgentConfig{Model: &model}).Render()
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, `"model": "sonnet-large"`) {
		t.Errorf("rendered config missing model field: %s", out)
	}
}

func TestWorkspacePathRestrictsToWorkspaceDir(t *testing.T) {
	got := WorkspacePath("AGENTS.md")
	if !strings.HasPrefix(got, workspaceDir+"/") {
		t.Errorf("WorkspacePath = %q, want prefix %q", got, workspaceDir)
	}
}

func TestAllowedWorkspaceFiles(t *testing.T) {
	if !AllowedWorkspaceFiles["SOUL.md"] {
		t.Error("SOUL.md should be allowed")
	}
	if AllowedWorkspaceFiles["config.json"] {
		t.Error("config.json should not be an editable workspace file")
	}
}
