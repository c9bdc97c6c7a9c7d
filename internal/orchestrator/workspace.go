package orchestrator

import "fmt"

// AllowedWorkspaceFiles lists the agent workspace files an operator may
// edit directly through the API. Anything else in the workspace is the
// agent's own working state and isn't exposed for external editing.
var AllowedWorkspaceFiles = map[string]bool{
	"AGENTS.md":    true,
	"SOUL.md":      true,
	"IDENTITY.md":  true,
	"TOOLS.md":     true,
	"USER.md":      true,
	"MEMORY.md":    true,
	"BOOTSTRAP.md": true,
}

const workspaceDir = "/root/.openclaw/workspace"

// WorkspacePath returns the absolute guest path for an allowed workspace
// filename.
func WorkspacePath(filename string) string {
	return fmt.Sprintf("%s/%s", workspaceDir, filename)
}

// DefaultWorkspaceFiles returns the three seed files written into every
// freshly provisioned VPS before the agent process first starts.
func DefaultWorkspaceFiles() map[string]string {
	return map[string]string{
		"IDENTITY.md": "# Identity\n\nYou are an autonomous agent running on a dedicated VPS. " +
			"Your capabilities and boundaries are defined by this workspace and the tool policy in your config.\n",
		"SOUL.md": "# Soul\n\nDescribe the agent's purpose, tone, and values here. " +
			"This file is read on every session start.\n",
		"AGENTS.md": "# Agent Notes\n\nUse this file for operating notes that should persist across sessions.\n",
	}
}
