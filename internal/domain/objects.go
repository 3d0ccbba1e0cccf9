package domain

import (
	"fmt"
	"strings"
)

// ObjectKind identifies the type of a compiled firewalld object.
type ObjectKind string

// Object kinds emitted by the compiler.
const (
	ObjectKindIPSet       ObjectKind = "ipset"
	ObjectKindService     ObjectKind = "service"
	ObjectKindZoneService ObjectKind = "zone-service"
	ObjectKindRichRule    ObjectKind = "rich-rule"
)

// Object is one declarative object-creation request for firewalld.
// Exactly one of the payload fields is set, matching Kind. DependsOn names
// objects that must be created first; the applier (or any external
// reconciler) must honor these edges.
type Object struct {
	Kind        ObjectKind         `json:"kind"`
	Name        string             `json:"name"`
	DependsOn   []string           `json:"dependsOn,omitempty"`
	IPSet       *IPSetObject       `json:"ipset,omitempty"`
	Service     *ServiceObject     `json:"service,omitempty"`
	ZoneService *ZoneServiceObject `json:"zoneService,omitempty"`
	RichRule    *RichRuleObject    `json:"richRule,omitempty"`
}

// IPSetObject is a firewalld ipset definition.
type IPSetObject struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"` // hash:net
	Family  Family   `json:"family"`
	Entries []string `json:"entries"`
}

// ServiceObject is a firewalld service definition binding a name to ports.
type ServiceObject struct {
	Name  string     `json:"name"`
	Ports []PortSpec `json:"ports"`
}

// ZoneServiceObject binds a service to a zone directly, allowing the
// service's ports from any source.
type ZoneServiceObject struct {
	Zone    string `json:"zone"`
	Service string `json:"service"`
}

// RichRuleObject is a firewalld rich rule. The Name is not part of the
// firewalld rich-rule language; it keys idempotency records and dependency
// edges.
type RichRuleObject struct {
	Name          string   `json:"name"`
	Zone          string   `json:"zone"`
	Family        Family   `json:"family"`
	SourceIPSet   string   `json:"sourceIpset,omitempty"`
	SourceAddress string   `json:"sourceAddress,omitempty"`
	Service       string   `json:"service,omitempty"`
	Protocol      string   `json:"protocol,omitempty"`
	ICMPBlocks    []string `json:"icmpBlocks,omitempty"`
	Action        string   `json:"action,omitempty"`
}

// Render returns the rich-rule strings for the object in firewalld's rich
// language. A rich rule carries at most one icmp-block element, so an
// object with multiple ICMP blocks renders to one string per block.
func (r *RichRuleObject) Render() []string {
	var base strings.Builder
	fmt.Fprintf(&base, "rule family=%q", string(r.Family))
	if r.SourceIPSet != "" {
		fmt.Fprintf(&base, " source ipset=%q", r.SourceIPSet)
	} else if r.SourceAddress != "" {
		fmt.Fprintf(&base, " source address=%q", r.SourceAddress)
	}

	if len(r.ICMPBlocks) > 0 {
		rules := make([]string, 0, len(r.ICMPBlocks))
		for _, block := range r.ICMPBlocks {
			rules = append(rules, fmt.Sprintf("%s icmp-block name=%q", base.String(), block))
		}
		return rules
	}

	rule := base.String()
	if r.Service != "" {
		rule += fmt.Sprintf(" service name=%q", r.Service)
	}
	if r.Protocol != "" {
		rule += fmt.Sprintf(" protocol value=%q", r.Protocol)
	}
	if r.Action != "" {
		rule += " " + r.Action
	}
	return []string{rule}
}

// ObjectSet is the ordered output of a compilation. Objects appear in a
// valid creation order (every object after its dependencies). Warnings
// carry non-fatal diagnostics such as unparseable network entries.
type ObjectSet struct {
	Objects  []Object `json:"objects"`
	Warnings []string `json:"warnings,omitempty"`
}

// Add appends an object unless an object with the same kind and name is
// already present. Deterministic naming guarantees that two objects sharing
// a name are identical, so the duplicate is safe to drop.
func (s *ObjectSet) Add(obj Object) {
	for _, existing := range s.Objects {
		if existing.Kind == obj.Kind && existing.Name == obj.Name {
			return
		}
	}
	s.Objects = append(s.Objects, obj)
}

// Warn appends a warning.
func (s *ObjectSet) Warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}
