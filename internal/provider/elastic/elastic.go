// Package elastic provisions VMs on an elastic-VM platform in the style of
// Fly.io's Machines API: bearer-token authenticated, billed per-second,
// machines created inside a single pre-existing application/org, driven
// through a plain net/http client.
package elastic

import (
	"agentplane/internal/config"
	"agentplane/internal/provider"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.machines.dev/v1"

// Provider provisions machines via the Machines API for a single app.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	token      string
	appName    string
	region     string
}

// New constructs a Provider, or (nil, nil) if FLY_API_TOKEN isn't set —
// this backend is simply not configured for this deployment.
func New(cfg *config.Config) (provider.VpsProvider, error) {
	if cfg.FlyAPIToken == "" {
		return nil, nil
	}
	return &Provider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      cfg.FlyAPIToken,
		appName:    cfg.FlyAppName,
		region:     cfg.FlyRegion,
	}, nil
}

func (p *Provider) Name() provider.Name { return provider.NameElastic }

func (p *Provider) MeteredResources() provider.MeteredResources {
	return provider.MeteredResourcesFor(p.Name())
}

// guestConfig maps a requested cpu_millicores figure to one of the
// platform's shared/performance cpu tiers, since a continuous millicore
// value has no direct translation on a platform that only sells discrete
// vCPU counts and kinds.
func guestConfig(cpuMillicores, memoryMB int32) (cpus int, kind string) {
	switch {
	case cpuMillicores <= 1000:
		return 1, "shared"
	case cpuMillicores <= 2000:
		return 2, "shared"
	case cpuMillicores <= 4000:
		return 2, "performance"
	default:
		return 4, "performance"
	}
}

type machineConfig struct {
	Image string            `json:"image"`
	Env   map[string]string `json:"env,omitempty"`
	Guest guest             `json:"guest"`
	Files []machineFile     `json:"files,omitempty"`
}

type guest struct {
	CPUs     int    `json:"cpus"`
	CPUKind  string `json:"cpu_kind"`
	MemoryMB int32  `json:"memory_mb"`
}

// machineFile seeds one guest file at boot; the API wants the content
// base64-encoded in raw_value.
type machineFile struct {
	GuestPath string `json:"guest_path"`
	RawValue  string `json:"raw_value"`
}

type createMachineRequest struct {
	Name   string        `json:"name"`
	Region string        `json:"region"`
	Config machineConfig `json:"config"`
}

type machineResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	PrivateIP string `json:"private_ip"`
}

func (p *Provider) Create(ctx context.Context, spec provider.Spec) (*provider.Info, error) {
	cpus, kind := guestConfig(spec.CPUMillicores, spec.MemoryMB)

	files := make([]machineFile, 0, len(spec.Files))
	for _, f := range spec.Files {
		files = append(files, machineFile{
			GuestPath: f.GuestPath,
			RawValue:  base64.StdEncoding.EncodeToString([]byte(f.Content)),
		})
	}

	req := createMachineRequest{
		Name:   spec.Name,
		Region: firstNonEmpty(spec.Location, p.region),
		Config: machineConfig{
			Image: spec.Image,
			Env:   spec.Env,
			Guest: guest{CPUs: cpus, CPUKind: kind, MemoryMB: spec.MemoryMB},
			Files: files,
		},
	}

	var resp machineResponse
	if err := p.do(ctx, http.MethodPost, fmt.Sprintf("/apps/%s/machines", p.appName), req, &resp); err != nil {
		return nil, err
	}
	return p.toInfo(&resp), nil
}

func (p *Provider) Start(ctx context.Context, id provider.Id) error {
	return p.do(ctx, http.MethodPost, fmt.Sprintf("/apps/%s/machines/%s/start", p.appName, id), nil, nil)
}

func (p *Provider) Stop(ctx context.Context, id provider.Id) error {
	return p.do(ctx, http.MethodPost, fmt.Sprintf("/apps/%s/machines/%s/stop", p.appName, id), nil, nil)
}

// Destroy deletes the machine, treating 404 as success: a delete retried
// after a partial failure must not error on the already-gone machine.
func (p *Provider) Destroy(ctx context.Context, id provider.Id) error {
	path := fmt.Sprintf("/apps/%s/machines/%s?force=true", p.appName, id)
	err := p.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (p *Provider) Get(ctx context.Context, id provider.Id) (*provider.Info, error) {
	var resp machineResponse
	if err := p.do(ctx, http.MethodGet, fmt.Sprintf("/apps/%s/machines/%s", p.appName, id), nil, &resp); err != nil {
		return nil, err
	}
	return p.toInfo(&resp), nil
}

// Metrics reports zero counters: the Machines API has no cumulative
// cpu/memory accounting endpoint reachable from a plain net/http client,
// so this concrete provider is bandwidth-only in practice even though
// its capability declaration is forward-compatible with all three axes.
func (p *Provider) Metrics(ctx context.Context, id provider.Id) (provider.Usage, error) {
	return provider.Usage{}, nil
}

func (p *Provider) toInfo(m *machineResponse) *provider.Info {
	addr := m.PrivateIP
	if addr == "" {
		addr = fmt.Sprintf("%s.vm.%s.internal", m.ID, p.appName)
	}
	return &provider.Info{ID: provider.Id(m.ID), State: parseState(m.State), Address: addr}
}

func parseState(raw string) provider.State {
	switch raw {
	case "started":
		return provider.StateRunning
	case "starting", "created":
		return provider.StateStarting
	case "stopped":
		return provider.StateStopped
	case "destroyed", "destroying":
		return provider.StateDestroyed
	default:
		return provider.StateUnknown
	}
}

func (p *Provider) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("elastic: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("elastic: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elastic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &apiError{
			status: resp.StatusCode,
			msg:    fmt.Sprintf("elastic: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b))),
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.status == http.StatusNotFound
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
