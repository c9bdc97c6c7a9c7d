// Package catalog seeds the operator-defined menu of VPS provisioning
// templates from a YAML file at startup.
package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agentplane/internal/store"
)

// Entry is one provisioning template as it appears in the catalog file.
type Entry struct {
	Name          string `yaml:"name"`
	Provider      string `yaml:"provider"`
	Image         string `yaml:"image"`
	Location      string `yaml:"location"`
	CPUMillicores int32  `yaml:"cpu_millicores"`
	MemoryMB      int32  `yaml:"memory_mb"`
	DiskGB        int32  `yaml:"disk_gb"`
}

// File is the top-level shape of the catalog YAML document.
type File struct {
	VpsConfigs []Entry `yaml:"vps_configs"`
}

// Load reads and parses a catalog file. An empty path is not an error —
// it means no catalog seeding is configured for this deployment.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return f.VpsConfigs, nil
}

// Seed upserts every catalog entry into the VpsConfig table, keyed by
// name, so re-running with an updated catalog file only ever adds or
// refreshes templates rather than duplicating them.
func Seed(ctx context.Context, repo *store.VpsConfigRepo, entries []Entry) error {
	for _, e := range entries {
		cfg := &store.VpsConfig{
			Name:          e.Name,
			Provider:      e.Provider,
			Image:         e.Image,
			Location:      e.Location,
			CPUMillicores: e.CPUMillicores,
			MemoryMB:      e.MemoryMB,
			DiskGB:        e.DiskGB,
		}
		if err := repo.Upsert(ctx, cfg); err != nil {
			return fmt.Errorf("catalog: seed %s: %w", e.Name, err)
		}
	}
	return nil
}
