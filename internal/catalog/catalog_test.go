package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPath(t *testing.T) {
	entries, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if entries != nil {
		t.Errorf("Load(\"\") = %v, want nil", entries)
	}
}

func TestLoadParsesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	doc := `
vps_configs:
  - name: small-sprite
    provider: sprite
    image: agentplane/agent-runtime:latest
    cpu_millicores: 500
    memory_mb: 512
    disk_gb: 5
  - name: standard-elastic
    provider: elastic
    image: agentplane/agent-runtime:latest
    location: iad
    cpu_millicores: 1000
    memory_mb: 1024
    disk_gb: 10
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Name != "small-sprite" || entries[0].Provider != "sprite" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Location != "iad" {
		t.Errorf("entries[1].Location = %q, want iad", entries[1].Location)
	}
}
