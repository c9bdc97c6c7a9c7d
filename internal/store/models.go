// Package store holds the GORM models and repositories backing the control
// plane's durable state, one struct per table with explicit TableName.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan defines per-axis resource ceilings and overage pricing for a tier of
// service. Overage cost is computed by billing.OverageCost, not stored here.
type Plan struct {
	ID                              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name                            string    `gorm:"uniqueIndex;not null" json:"name"`
	MaxAgents                       int32     `json:"max_agents"`
	MaxVpses                        int32     `json:"max_vpses"`
	MaxBandwidthBytes               int64     `json:"max_bandwidth_bytes"`
	MaxStorageBytes                 int64     `json:"max_storage_bytes"`
	MaxCPUMs                        int64     `json:"max_cpu_ms"`
	MaxMemoryMBSeconds              int64     `json:"max_memory_mb_seconds"`
	OverageBandwidthCostPerGBCents  int64     `json:"overage_bandwidth_cost_per_gb_cents"`
	OverageCPUCostPerHourCents      int64     `json:"overage_cpu_cost_per_hour_cents"`
	OverageMemoryCostPerGBHourCents int64     `json:"overage_memory_cost_per_gb_hour_cents"`
	CreatedAt                       time.Time `json:"created_at"`
	UpdatedAt                       time.Time `json:"updated_at"`

	VpsConfigs []VpsConfig `gorm:"many2many:plan_vps_configs;" json:"-"`
}

func (Plan) TableName() string { return "plans" }

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// VpsConfig is an operator-defined provisioning template: which provider,
// image, and size an agent's VPS is created with.
type VpsConfig struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Provider      string    `gorm:"not null;index" json:"provider"`
	Image         string    `json:"image"`
	Location      string    `json:"location"`
	CPUMillicores int32     `json:"cpu_millicores"`
	MemoryMB      int32     `json:"memory_mb"`
	DiskGB        int32     `json:"disk_gb"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (VpsConfig) TableName() string { return "vps_configs" }

func (c *VpsConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// UserRole distinguishes operators from ordinary tenants.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// UserStatus gates whether a user may provision or operate anything.
// New accounts start Pending until an admin activates them.
type UserStatus string

const (
	StatusPending   UserStatus = "pending"
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
)

// User is the control plane's view of an identity whose authentication is
// handled entirely outside this service (see internal/httpapi/auth.go).
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Name      *string    `json:"name"`
	PlanID    *uuid.UUID `gorm:"type:uuid;index" json:"plan_id"`
	Role      UserRole   `gorm:"type:varchar(16);not null;default:user" json:"role"`
	Status    UserStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = StatusPending
	}
	return nil
}

// VpsState is the lifecycle state of a Vps row. Destroyed is terminal.
type VpsState string

const (
	VpsProvisioning VpsState = "provisioning"
	VpsRunning      VpsState = "running"
	VpsStopped      VpsState = "stopped"
	VpsDestroyed    VpsState = "destroyed"
)

// Vps is a single agent's virtual machine, backed by one of the three
// provider implementations under internal/provider.
type Vps struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	VpsConfigID         uuid.UUID `gorm:"type:uuid;index;not null" json:"vps_config_id"`
	Name                string    `json:"name"`
	Provider            string    `gorm:"not null" json:"provider"`
	ProviderVMID        *string   `json:"provider_vm_id"`
	Address             *string   `json:"address"`
	State               VpsState  `gorm:"type:varchar(16);not null;index" json:"state"`
	StorageUsedBytes    int64     `json:"storage_used_bytes"`
	CPUUsedMs           *int64    `json:"cpu_used_ms"`
	MemoryUsedMBSeconds *int64    `json:"memory_used_mb_seconds"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Vps) TableName() string { return "vpses" }

func (v *Vps) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.State == "" {
		v.State = VpsProvisioning
	}
	return nil
}

// Agent is a single user-owned agent identity. At most one Vps is attached
// at a time via VpsID; GatewayToken authenticates both the forward-proxy
// Basic-auth credential and the gateway reverse-proxy handshake rewrite.
type Agent struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	VpsID        *uuid.UUID `gorm:"type:uuid;index" json:"vps_id"`
	Name         string     `json:"name"`
	GatewayToken string     `gorm:"not null" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Agent) TableName() string { return "agents" }

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.GatewayToken == "" {
		a.GatewayToken = generateToken()
	}
	return nil
}

// VpsUsagePeriod accumulates a Vps's metered usage for one calendar month.
// Rows are upserted with add-in-place semantics (ON CONFLICT DO UPDATE SET
// x = x + EXCLUDED.x), never overwritten, so concurrent writers never lose
// an increment.
type VpsUsagePeriod struct {
	VpsID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"vps_id"`
	PeriodStart         time.Time `gorm:"type:date;primaryKey" json:"period_start"`
	BandwidthBytes      int64     `json:"bandwidth_bytes"`
	CPUUsedMs           int64     `json:"cpu_used_ms"`
	MemoryUsedMBSeconds int64     `json:"memory_used_mb_seconds"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (VpsUsagePeriod) TableName() string { return "vps_usage_periods" }

// AggregateUsage sums a user's usage across all non-destroyed VPSes for the
// current period. It is a query projection, not a table.
type AggregateUsage struct {
	BandwidthBytes      int64
	CPUUsedMs           int64
	MemoryUsedMBSeconds int64
}

// OverageBudget is a per-user monthly allowance, in cents, for spend beyond
// plan limits. A missing row means a $0 budget — no overage permitted.
type OverageBudget struct {
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	PeriodStart time.Time `gorm:"type:date;primaryKey" json:"period_start"`
	BudgetCents int64     `json:"budget_cents"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (OverageBudget) TableName() string { return "overage_budgets" }

// AgentChannel is a messaging-channel binding (Telegram, Discord, ...)
// configured for an agent. Delivery/webhook verification for a real
// provider is out of scope; this is CRUD over the configuration only.
type AgentChannel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_agent_channel_kind" json:"agent_id"`
	ChannelKind   string    `gorm:"not null;uniqueIndex:idx_agent_channel_kind" json:"channel_kind"`
	Credentials   JSONMap   `gorm:"type:jsonb" json:"-"`
	Enabled       bool      `gorm:"default:true" json:"enabled"`
	WebhookSecret string    `gorm:"not null" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (AgentChannel) TableName() string { return "agent_channels" }

func (c *AgentChannel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.WebhookSecret == "" {
		c.WebhookSecret = generateToken()
	}
	return nil
}

// AllModels lists every model for AutoMigrate, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Plan{},
		&VpsConfig{},
		&User{},
		&Vps{},
		&Agent{},
		&VpsUsagePeriod{},
		&OverageBudget{},
		&AgentChannel{},
	}
}
