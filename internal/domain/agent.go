package domain

import "time"

// CapabilityType enumerates the action surfaces an agent may be granted.
type CapabilityType string

const (
	CapabilityFilesystem CapabilityType = "filesystem"
	CapabilityShell      CapabilityType = "shell"
	CapabilityNetwork    CapabilityType = "network"
	CapabilityEcho       CapabilityType = "echo"
)

// Agent is a registered caller identified by a per-agent API key. Agents are
// created and destroyed only through explicit admin action.
type Agent struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	APIKeyHash string     `json:"-"` // never serialized to a client
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// AgentCapability is a per-agent, per-type grant. Absent or disabled means
// blocked — the model is default-deny.
type AgentCapability struct {
	ID      string                 `json:"id"`
	AgentID string                 `json:"agent_id"`
	Type    CapabilityType         `json:"type"`
	Enabled bool                   `json:"enabled"`
	Config  map[string]interface{} `json:"config"`
}
