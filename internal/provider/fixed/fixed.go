// Package fixed provisions VMs on a fixed-allocation IaaS host in the
// style of Hetzner Cloud: a dedicated server billed monthly regardless of
// load, provisioned via a cloud-init userdata document and driven through
// a plain net/http client.
package fixed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentplane/internal/config"
	"agentplane/internal/provider"
)

const baseURL = "https://api.hetzner.cloud/v1"

// Provider provisions servers on a fixed-allocation host.
type Provider struct {
	httpClient  *http.Client
	token       string
	location    string
	networkID   int64
	firewallID  int64
	sshKeyNames []string
}

// New constructs a Provider, or (nil, nil) if HETZNER_API_TOKEN isn't set.
func New(cfg *config.Config) (provider.VpsProvider, error) {
	if cfg.HetznerAPIToken == "" {
		return nil, nil
	}
	var keys []string
	if cfg.HetznerSSHKeyNames != "" {
		for _, k := range strings.Split(cfg.HetznerSSHKeyNames, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return &Provider{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		token:       cfg.HetznerAPIToken,
		location:    cfg.HetznerLocation,
		networkID:   cfg.HetznerNetworkID,
		firewallID:  cfg.HetznerFirewallID,
		sshKeyNames: keys,
	}, nil
}

func (p *Provider) Name() provider.Name { return provider.NameFixed }

func (p *Provider) MeteredResources() provider.MeteredResources {
	return provider.MeteredResourcesFor(p.Name())
}

// serverType maps a requested (cpuMillicores, memoryMB) pair to the
// smallest named server type that covers both, falling through to the
// largest tier.
func serverType(cpuMillicores, memoryMB int32) string {
	switch {
	case cpuMillicores <= 1000 && memoryMB <= 2048:
		return "cpx11"
	case cpuMillicores <= 2000 && memoryMB <= 4096:
		return "cpx21"
	case cpuMillicores <= 4000 && memoryMB <= 8192:
		return "cpx31"
	default:
		return "cpx41"
	}
}

// cloudInitUserData builds the #cloud-config payload that lands the
// agent runtime's env vars and starts its service on first boot.
func cloudInitUserData(spec provider.Spec) string {
	var sb strings.Builder
	sb.WriteString("#cloud-config\n")
	sb.WriteString("write_files:\n")
	for _, f := range spec.Files {
		sb.WriteString(fmt.Sprintf("  - path: %s\n", f.GuestPath))
		sb.WriteString("    encoding: b64\n")
		sb.WriteString("    content: " + base64.StdEncoding.EncodeToString([]byte(f.Content)) + "\n")
	}
	sb.WriteString("runcmd:\n")
	sb.WriteString("  - mkdir -p /etc/agentplane\n")
	for k, v := range spec.Env {
		sb.WriteString(fmt.Sprintf("  - echo 'export %s=%q' >> /etc/agentplane/env\n", k, v))
	}
	sb.WriteString("  - systemctl start agentplane-agent\n")
	return sb.String()
}

type server struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	PrivateNet []struct {
		IP string `json:"ip"`
	} `json:"private_net"`
}

type createServerRequest struct {
	Name       string   `json:"name"`
	ServerType string   `json:"server_type"`
	Image      string   `json:"image"`
	Location   string   `json:"location"`
	UserData   string   `json:"user_data"`
	SSHKeys    []string `json:"ssh_keys,omitempty"`
	Networks   []int64  `json:"networks,omitempty"`
	Firewalls  []struct {
		Firewall int64 `json:"firewall"`
	} `json:"firewalls,omitempty"`
}

type createServerResponse struct {
	Server server `json:"server"`
}

type getServerResponse struct {
	Server server `json:"server"`
}

func (p *Provider) Create(ctx context.Context, spec provider.Spec) (*provider.Info, error) {
	req := createServerRequest{
		Name:       spec.Name,
		ServerType: serverType(spec.CPUMillicores, spec.MemoryMB),
		Image:      spec.Image,
		Location:   firstNonEmpty(spec.Location, p.location),
		UserData:   cloudInitUserData(spec),
		SSHKeys:    p.sshKeyNames,
	}
	if p.networkID != 0 {
		req.Networks = []int64{p.networkID}
	}
	if p.firewallID != 0 {
		req.Firewalls = append(req.Firewalls, struct {
			Firewall int64 `json:"firewall"`
		}{Firewall: p.firewallID})
	}

	var resp createServerResponse
	if err := p.do(ctx, http.MethodPost, "/servers", req, &resp); err != nil {
		return nil, err
	}
	return toInfo(&resp.Server), nil
}

func (p *Provider) Start(ctx context.Context, id provider.Id) error {
	return p.action(ctx, id, "poweron")
}

func (p *Provider) Stop(ctx context.Context, id provider.Id) error {
	return p.action(ctx, id, "poweroff")
}

func (p *Provider) action(ctx context.Context, id provider.Id, action string) error {
	return p.do(ctx, http.MethodPost, fmt.Sprintf("/servers/%s/actions/%s", id, action), nil, nil)
}

// Destroy tolerates a 404: a server already gone is the desired end
// state, not a failure.
func (p *Provider) Destroy(ctx context.Context, id provider.Id) error {
	err := p.do(ctx, http.MethodDelete, fmt.Sprintf("/servers/%s", id), nil, nil)
	if err != nil && strings.Contains(err.Error(), "status 404") {
		return nil
	}
	return err
}

func (p *Provider) Get(ctx context.Context, id provider.Id) (*provider.Info, error) {
	var resp getServerResponse
	if err := p.do(ctx, http.MethodGet, fmt.Sprintf("/servers/%s", id), nil, &resp); err != nil {
		return nil, err
	}
	return toInfo(&resp.Server), nil
}

// Metrics reports zero: a fixed-allocation host only meters bandwidth
// (MeteredResourcesFor(NameFixed)), so the monitor never calls this.
func (p *Provider) Metrics(ctx context.Context, id provider.Id) (provider.Usage, error) {
	return provider.Usage{}, nil
}

func toInfo(s *server) *provider.Info {
	info := &provider.Info{ID: provider.Id(strconv.FormatInt(s.ID, 10)), State: parseState(s.Status)}
	if len(s.PrivateNet) > 0 {
		info.Address = s.PrivateNet[0].IP
	}
	return info
}

func parseState(status string) provider.State {
	switch status {
	case "running":
		return provider.StateRunning
	case "initializing", "starting":
		return provider.StateStarting
	case "off", "stopping":
		return provider.StateStopped
	case "deleting":
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
			return fmt.Errorf("fixed: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("fixed: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fixed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("fixed: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
