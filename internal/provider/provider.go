// Package provider abstracts over the three backends a VPS can be
// provisioned on: an elastic-VM platform billed by the second, a
// fixed-allocation IaaS host billed by the month, and a container-based
// "sprite" runtime. Each backend implements VpsProvider; the control plane
// never branches on provider identity except to decide which axes get
// metered (see MeteredResourcesFor).
package provider

import "context"

// Name identifies one of the three supported provisioning backends.
type Name string

const (
	NameElastic Name = "elastic" // billed per-second, scales to zero
	NameFixed   Name = "fixed"   // a dedicated host, billed monthly regardless of load
	NameSprite  Name = "sprite"  // a container sandboxed to run a single agent runtime
)

// ParseName validates a provider string from a VpsConfig row.
func ParseName(s string) (Name, bool) {
	switch Name(s) {
	case NameElastic, NameFixed, NameSprite:
		return Name(s), true
	default:
		return "", false
	}
}

// MeteredResources says which usage axes actually vary for a provider.
// A fixed-allocation host's CPU and memory are dedicated and constant
// regardless of load, so metering them would only ever read the ceiling;
// bandwidth is the one axis that meaningfully varies there.
type MeteredResources struct {
	Bandwidth bool
	CPU       bool
	Memory    bool
}

var (
	MeteredAll           = MeteredResources{Bandwidth: true, CPU: true, Memory: true}
	MeteredBandwidthOnly = MeteredResources{Bandwidth: true, CPU: false, Memory: false}
)

// MeteredResourcesFor returns which axes a provider meters, defaulting to
// MeteredAll (the safer, over-enforcing default) for any name it doesn't
// recognize, rather than silently under-enforcing quotas.
func MeteredResourcesFor(name Name) MeteredResources {
	switch name {
	case NameFixed:
		return MeteredBandwidthOnly
	default:
		return MeteredAll
	}
}

// Id is an opaque provider-assigned identifier for a provisioned VM.
type Id string

// FileMount is a file to be written into a VM's filesystem at creation
// time — used to seed the agent runtime's config and workspace files
// before the agent process ever starts.
type FileMount struct {
	GuestPath string
	Content   string
}

// Spec describes the VM to provision.
type Spec struct {
	Name          string
	Image         string
	Location      string
	CPUMillicores int32
	MemoryMB      int32
	DiskGB        int32
	Env           map[string]string
	Files         []FileMount
}

// State is the provider's own view of VM lifecycle, distinct from the
// control plane's store.VpsState: a provider never reports "provisioning"
// (that's a control-plane-side bookkeeping state before the provider call
// returns) and reports Unknown for statuses it can't map cleanly.
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateDestroyed State = "destroyed"
	StateUnknown   State = "unknown"
)

// Info is what a provider reports back about a VM.
type Info struct {
	ID      Id
	State   State
	Address string // empty if not yet assigned
}

// Usage is a provider's absolute, cumulative view of a VM's consumption at
// the moment it was asked — not a delta. The enforcement monitor subtracts
// the previously stored absolute value itself, clamping to zero across a
// provider-side counter reset (e.g. a VM restart).
type Usage struct {
	CPUMs           int64
	MemoryMBSeconds int64
	StorageBytes    int64
}

// Pusher is an optional capability for backends that can write a file
// directly into a running VM without going through its in-guest gateway
// HTTP API. Only the sprite provider implements it, via a local docker
// exec path; VM-style providers push config/workspace updates over the
// gateway's own tools.invoke HTTP endpoint instead (see
// internal/orchestrator's config/workspace push path).
type Pusher interface {
	PushFile(ctx context.Context, id Id, guestPath, content string) error
}

// VpsProvider is implemented by each of the three provisioning backends.
type VpsProvider interface {
	Name() Name
	MeteredResources() MeteredResources
	Create(ctx context.Context, spec Spec) (*Info, error)
	Start(ctx context.Context, id Id) error
	Stop(ctx context.Context, id Id) error
	Destroy(ctx context.Context, id Id) error
	Get(ctx context.Context, id Id) (*Info, error)
	Metrics(ctx context.Context, id Id) (Usage, error)
}
