// Package sprite provisions VMs as sandboxed Docker containers: the
// cheapest, most local-friendly of the three backends, suited to
// development and single-host deployments. Provisioning is multi-step
// (create, start, write config files, start the agent service) and any
// step failure tears the container back down.
package sprite

import (
	"context"
	"fmt"
	"path"
	"time"

	"agentplane/docker"
	"agentplane/internal/config"
	"agentplane/internal/provider"
)

const (
	serviceName = "agentplane-agent"
	gatewayPort = 18789
)

// Provider provisions one container per VPS on the local Docker engine.
type Provider struct {
	docker *docker.Client
}

// New constructs a Provider, or (nil, nil) if SPRITES_API_TOKEN isn't set
// — gated behind an env var like the other two backends so the registry's
// silent-skip behavior applies uniformly across all three providers.
func New(cfg *config.Config) (provider.VpsProvider, error) {
	if cfg.SpritesAPIToken == "" {
		return nil, nil
	}
	cli, err := docker.New()
	if err != nil {
		return nil, fmt.Errorf("sprite: %w", err)
	}
	return &Provider{docker: cli}, nil
}

func (p *Provider) Name() provider.Name { return provider.NameSprite }

func (p *Provider) MeteredResources() provider.MeteredResources {
	return provider.MeteredResourcesFor(p.Name())
}

// Create provisions a container, writes every file mount into it, and
// starts the agent service bound to gatewayPort. On any failure the
// container is removed before the error is returned, so a half-provisioned
// sprite never lingers.
func (p *Provider) Create(ctx context.Context, spec provider.Spec) (*provider.Info, error) {
	env := make([]string, 0, len(spec.Env)+1)
	env = append(env, fmt.Sprintf("GATEWAY_PORT=%d", gatewayPort))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	id, err := p.docker.CreateContainer(ctx, containerName(spec.Name), spec.Image, env)
	if err != nil {
		return nil, fmt.Errorf("sprite: create container: %w", err)
	}

	if err := p.docker.StartContainer(ctx, id); err != nil {
		_ = p.docker.RemoveContainer(ctx, id, true)
		return nil, fmt.Errorf("sprite: start container: %w", err)
	}

	for _, f := range spec.Files {
		if dir := path.Dir(f.GuestPath); dir != "/" && dir != "." {
			if err := p.docker.ContainerCreateDirectory(ctx, id, dir, 0); err != nil {
				_ = p.docker.RemoveContainer(ctx, id, true)
				return nil, fmt.Errorf("sprite: mkdir %s: %w", dir, err)
			}
		}
		if err := p.docker.ContainerWriteFile(ctx, id, f.GuestPath, []byte(f.Content), 0o644); err != nil {
			_ = p.docker.RemoveContainer(ctx, id, true)
			return nil, fmt.Errorf("sprite: write %s: %w", f.GuestPath, err)
		}
	}

	if _, err := p.docker.ContainerExecRun(ctx, id, []string{"sh", "-c", "exec " + serviceName + " gateway run &"}); err != nil {
		_ = p.docker.RemoveContainer(ctx, id, true)
		return nil, fmt.Errorf("sprite: start agent service: %w", err)
	}

	return p.Get(ctx, provider.Id(id))
}

// PushFile writes content into the container's filesystem and restarts
// the agent service so it picks up the change, the sprite-specific half
// of the config/workspace push path (VM providers instead go through the
// in-guest gateway's HTTP API).
func (p *Provider) PushFile(ctx context.Context, id provider.Id, guestPath, content string) error {
	if err := p.docker.ContainerWriteFile(ctx, string(id), guestPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("sprite: write %s: %w", guestPath, err)
	}
	if _, err := p.docker.ContainerExecRun(ctx, string(id), []string{"sh", "-c", "pkill " + serviceName + "; exec " + serviceName + " gateway run &"}); err != nil {
		return fmt.Errorf("sprite: restart agent service: %w", err)
	}
	return nil
}

func (p *Provider) Start(ctx context.Context, id provider.Id) error {
	return p.docker.StartContainer(ctx, string(id))
}

func (p *Provider) Stop(ctx context.Context, id provider.Id) error {
	return p.docker.StopContainer(ctx, string(id), 10*time.Second)
}

func (p *Provider) Destroy(ctx context.Context, id provider.Id) error {
	return p.docker.RemoveContainer(ctx, string(id), true)
}

func (p *Provider) Get(ctx context.Context, id provider.Id) (*provider.Info, error) {
	inspect, err := p.docker.ContainerInspect(ctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("sprite: inspect: %w", err)
	}

	info := &provider.Info{ID: id, State: parseState(inspect.State.Status)}
	if inspect.NetworkSettings != nil {
		info.Address = inspect.NetworkSettings.IPAddress
	}
	return info, nil
}

// Metrics takes a one-shot Docker stats snapshot and converts it to the
// cumulative counters the enforcement monitor deltas against its stored
// absolute values. CPU nanoseconds convert straight to milliseconds;
// memory is reported as an MB·second integral over the container's
// lifetime (instantaneous usage × seconds running), since cgroups expose
// a point-in-time working set rather than an accumulating memory-time
// counter.
func (p *Provider) Metrics(ctx context.Context, id provider.Id) (provider.Usage, error) {
	stats, err := p.docker.ContainerStats(ctx, string(id))
	if err != nil {
		return provider.Usage{}, fmt.Errorf("sprite: metrics: %w", err)
	}

	inspect, err := p.docker.ContainerInspect(ctx, string(id))
	if err != nil {
		return provider.Usage{}, fmt.Errorf("sprite: metrics inspect: %w", err)
	}

	var uptime time.Duration
	if startedAt, parseErr := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); parseErr == nil {
		uptime = time.Since(startedAt)
	}

	memMB := float64(stats.MemoryBytes) / (1024 * 1024)
	return provider.Usage{
		CPUMs:           int64(stats.CPUNanoseconds / uint64(time.Millisecond)),
		MemoryMBSeconds: int64(memMB * uptime.Seconds()),
	}, nil
}

func parseState(status string) provider.State {
	switch status {
	case "running":
		return provider.StateRunning
	case "created", "restarting":
		return provider.StateStarting
	case "exited", "paused":
		return provider.StateStopped
	case "removing", "dead":
		return provider.StateDestroyed
	default:
		return provider.StateUnknown
	}
}

func containerName(agentName string) string {
	return "agentplane-sprite-" + agentName
}
