package elastic

import "testing"

func TestGuestConfigTiers(t *testing.T) {
	cases := []struct {
		cpuMillicores int32
		wantCPUs      int
		wantKind      string
	}{
		{500, 1, "shared"},
		{1000, 1, "shared"},
		{1500, 2, "shared"},
		{2000, 2, "shared"},
		{3000, 2, "performance"},
		{4000, 2, "performance"},
		{8000, 4, "performance"},
	}
	for _, c := range cases {
		cpus, kind := guestConfig(c.cpuMillicores, 1024)
		if cpus != c.wantCPUs || kind != c.wantKind {
			t.Errorf("guestConfig(%d) = (%d, %q), want (%d, %q)", c.cpuMillicores, cpus, kind, c.wantCPUs, c.wantKind)
		}
	}
}

func TestParseState(t *testing.T) {
	cases := map[string]string{
		"started":    "running",
		"starting":   "starting",
		"created":    "starting",
		"stopped":    "stopped",
		"destroyed":  "destroyed",
		"destroying": "destroyed",
		"bogus":      "unknown",
	}
	for raw, want := range cases {
		if got := string(parseState(raw)); got != want {
			t.Errorf("parseState(%q) = %q, want %q", raw, got, want)
		}
	}
}
