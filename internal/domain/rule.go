package domain

import "time"

// Protocols accepted on a firewall rule.
const (
	ProtocolTCP  = "tcp"
	ProtocolUDP  = "udp"
	ProtocolICMP = "icmp"
	ProtocolAH   = "ah"
	ProtocolESP  = "esp"
	ProtocolAll  = "all"
)

// Address-family selectors for a firewall rule.
const (
	ApplyToIPv4 = "ipv4"
	ApplyToIPv6 = "ipv6"
	ApplyToAll  = "all"
	ApplyToAuto = "auto"
)

// DefaultOrder is the rule order used when a rule does not specify one.
const DefaultOrder = 11

// FirewallRule represents one high-level firewall intent: allow the given
// protocol (and optionally ports or ICMP types) from the trusted networks.
// The compiler lowers each rule into concrete firewalld objects.
type FirewallRule struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"` // User-supplied identifier, unique
	Enabled     bool       `json:"enabled" db:"enabled"`
	Protocol    string     `json:"protocol" db:"protocol"`
	Ports       []PortSpec `json:"ports,omitempty" db:"-"`       // Stored in separate table
	TrustedNets []string   `json:"trustedNets,omitempty" db:"-"` // Stored in separate table
	ICMPTypes   []string   `json:"icmpTypes,omitempty" db:"-"`   // Stored in separate table
	Order       int        `json:"order" db:"rule_order"`
	ApplyTo     string     `json:"applyTo" db:"apply_to"`        // ipv4, ipv6, all, or auto
	Prefix      string     `json:"prefix,omitempty" db:"prefix"` // Override of the default naming prefix
	Zone        string     `json:"zone,omitempty" db:"zone"`     // Override of the default zone
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// PortSpec is a single port or hyphenated port range, with an optional
// per-port protocol overriding the rule protocol.
type PortSpec struct {
	Port     string `json:"port" db:"port"`
	Protocol string `json:"protocol,omitempty" db:"protocol"`
}

// CreateFirewallRuleRequest is the request body for creating a rule.
type CreateFirewallRuleRequest struct {
	Name        string     `json:"name"`
	Enabled     *bool      `json:"enabled,omitempty"`
	Protocol    string     `json:"protocol"`
	Ports       []PortSpec `json:"ports,omitempty"`
	TrustedNets []string   `json:"trustedNets,omitempty"`
	ICMPTypes   []string   `json:"icmpTypes,omitempty"`
	Order       *int       `json:"order,omitempty"`
	ApplyTo     string     `json:"applyTo,omitempty"`
	Prefix      string     `json:"prefix,omitempty"`
	Zone        string     `json:"zone,omitempty"`
}

// UpdateFirewallRuleRequest is the request body for updating a rule.
type UpdateFirewallRuleRequest struct {
	Enabled     *bool      `json:"enabled,omitempty"`
	Protocol    *string    `json:"protocol,omitempty"`
	Ports       []PortSpec `json:"ports,omitempty"`
	TrustedNets []string   `json:"trustedNets,omitempty"`
	ICMPTypes   []string   `json:"icmpTypes,omitempty"`
	Order       *int       `json:"order,omitempty"`
	ApplyTo     *string    `json:"applyTo,omitempty"`
	Prefix      *string    `json:"prefix,omitempty"`
	Zone        *string    `json:"zone,omitempty"`
}

// RuleSetState is the request body for bulk-replacing the entire rule set.
// Used by configuration management agents that own the full desired state.
type RuleSetState struct {
	Rules []CreateFirewallRuleRequest `json:"rules"`
}
