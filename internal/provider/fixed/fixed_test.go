package fixed

import (
	"strings"
	"testing"

	"agentplane/internal/provider"
)

func TestServerTypeTiers(t *testing.T) {
	cases := []struct {
		cpu, mem int32
		want     string
	}{
		{1000, 1024, "cpx11"},
		{1000, 2048, "cpx11"},
		{1000, 4096, "cpx21"},
		{2000, 2048, "cpx21"},
		{2500, 3072, "cpx31"},
		{3500, 6144, "cpx31"},
		{8000, 16384, "cpx41"},
	}
	for _, c := range cases {
		if got := serverType(c.cpu, c.mem); got != c.want {
			t.Errorf("serverType(%d, %d) = %q, want %q", c.cpu, c.mem, got, c.want)
		}
	}
}

func TestParseState(t *testing.T) {
	cases := map[string]string{
		"running":      "running",
		"initializing": "starting",
		"starting":     "starting",
		"off":          "stopped",
		"stopping":     "stopped",
		"deleting":     "destroyed",
		"bogus":        "unknown",
	}
	for raw, want := range cases {
		if got := string(parseState(raw)); got != want {
			t.Errorf("parseState(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCloudInitUserDataIncludesFilesAndEnv(t *testing.T) {
	spec := provider.Spec{
		Env: map[string]string{"GATEWAY_TOKEN": "secret"},
		Files: []provider.FileMount{
			{GuestPath: "/etc/agentplane/config.json", Content: `{"ok":true}`},
		},
	}
	out := cloudInitUserData(spec)
	if !strings.HasPrefix(out, "#cloud-config\n") {
		t.Error("missing #cloud-config header")
	}
	if !strings.Contains(out, "/etc/agentplane/config.json") {
		t.Error("missing file mount path")
	}
	if !strings.Contains(out, "systemctl start agentplane-agent") {
		t.Error("missing service start command")
	}
}
