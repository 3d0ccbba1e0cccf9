// Package compiler lowers high-level firewall rule intents into concrete
// firewalld objects: ipsets, services, zone bindings and rich rules. The
// compilation is pure and single-threaded; identical inputs always produce
// identical object names, so the applier can safely re-request creation of
// objects that already exist.
package compiler

import (
	"fmt"
	"sort"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// DefaultTrustedNets is the effective trusted-network list for rules that
// do not specify one: loopback only.
var DefaultTrustedNets = []string{"127.0.0.1", "::1"}

// Defaults carries the process-wide settings owned by the configuration
// layer: the naming prefix and the target zone used when a rule does not
// override them.
type Defaults struct {
	Prefix string
	Zone   string
}

// Compiler compiles firewall rules into ordered firewalld object sets.
type Compiler struct {
	defaults Defaults
}

// New creates a new Compiler.
func New(defaults Defaults) *Compiler {
	return &Compiler{defaults: defaults}
}

// protoClass groups protocols by how they are emitted.
type protoClass int

const (
	classTransport protoClass = iota // tcp, udp, all
	classICMP                        // icmp
	classIPProto                     // ah, esp
)

func protocolClass(protocol string) (protoClass, error) {
	switch protocol {
	case domain.ProtocolTCP, domain.ProtocolUDP, domain.ProtocolAll:
		return classTransport, nil
	case domain.ProtocolICMP:
		return classICMP, nil
	case domain.ProtocolAH, domain.ProtocolESP:
		return classIPProto, nil
	default:
		return 0, fmt.Errorf("%w: unknown protocol %q", domain.ErrInvalidInput, protocol)
	}
}

// CompileAll compiles every enabled rule, ordered by rule order then name,
// into one object set. Objects shared between rules (identical address
// sets) are emitted once.
func (c *Compiler) CompileAll(rules []*domain.FirewallRule) (*domain.ObjectSet, error) {
	sorted := make([]*domain.FirewallRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].Name < sorted[j].Name
	})

	combined := &domain.ObjectSet{}
	for _, rule := range sorted {
		if !rule.Enabled {
			continue
		}
		set, err := c.Compile(rule)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %q: %w", rule.Name, err)
		}
		for _, obj := range set.Objects {
			combined.Add(obj)
		}
		combined.Warnings = append(combined.Warnings, set.Warnings...)
	}
	return combined, nil
}

// Compile lowers one rule into its firewalld objects. Objects appear in a
// valid creation order: address sets, then the service, then rich rules.
// Unparseable trusted-network entries become warnings, never errors.
func (c *Compiler) Compile(rule *domain.FirewallRule) (*domain.ObjectSet, error) {
	class, err := protocolClass(rule.Protocol)
	if err != nil {
		return nil, err
	}

	set := &domain.ObjectSet{}

	prefix := rule.Prefix
	if prefix == "" {
		prefix = c.defaults.Prefix
	}
	zone := rule.Zone
	if zone == "" {
		zone = c.defaults.Zone
	}
	order := rule.Order
	if order == 0 {
		order = domain.DefaultOrder
	}

	trusted := rule.TrustedNets
	if len(trusted) == 0 {
		trusted = DefaultTrustedNets
	}

	specs, allowAll := NormalizeNetworks(trusted)
	buckets := Classify(specs)
	for _, spec := range buckets[domain.FamilyUnknown] {
		set.Warn("rule %q: trusted network %q does not parse as an IP or CIDR, treating as hostname and skipping", rule.Name, spec.Original)
	}

	ports := normalizePorts(rule.Ports, rule.Protocol)

	// An open rule with explicit ports needs no rich rules and no address
	// sets: the named service is bound to the zone directly.
	if allowAll && class == classTransport && len(ports) > 0 {
		svcName := ServiceName(prefix, order, rule.Name)
		set.Add(domain.Object{
			Kind:    domain.ObjectKindService,
			Name:    svcName,
			Service: &domain.ServiceObject{Name: svcName, Ports: ports},
		})
		set.Add(domain.Object{
			Kind:        domain.ObjectKindZoneService,
			Name:        joinName(zone, svcName),
			DependsOn:   []string{svcName},
			ZoneService: &domain.ZoneServiceObject{Zone: zone, Service: svcName},
		})
		return set, nil
	}

	families := resolveFamilies(rule.ApplyTo, buckets, allowAll)
	c.emit(set, &emitInput{
		rule:     rule,
		class:    class,
		prefix:   prefix,
		zone:     zone,
		order:    order,
		ports:    ports,
		trusted:  trusted,
		allowAll: allowAll,
		families: families,
		buckets:  buckets,
	})

	return set, nil
}

// resolveFamilies enumerates the address families a rule compiles for,
// resolved once at compile time. "auto" follows the classified input; an
// open rule covers both families.
func resolveFamilies(applyTo string, buckets map[domain.Family][]domain.NetworkSpec, allowAll bool) []domain.Family {
	both := []domain.Family{domain.FamilyIPv4, domain.FamilyIPv6}

	switch applyTo {
	case domain.ApplyToIPv4:
		return []domain.Family{domain.FamilyIPv4}
	case domain.ApplyToIPv6:
		return []domain.Family{domain.FamilyIPv6}
	case domain.ApplyToAuto:
		if allowAll {
			return both
		}
		var families []domain.Family
		if len(buckets[domain.FamilyIPv4]) > 0 {
			families = append(families, domain.FamilyIPv4)
		}
		if len(buckets[domain.FamilyIPv6]) > 0 {
			families = append(families, domain.FamilyIPv6)
		}
		return families
	default: // "" and "all"
		return both
	}
}

// normalizePorts canonicalizes range notation and fills in the per-port
// protocol. Ports on an "all" rule default to tcp.
func normalizePorts(ports []domain.PortSpec, ruleProtocol string) []domain.PortSpec {
	if len(ports) == 0 {
		return nil
	}
	out := make([]domain.PortSpec, 0, len(ports))
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			if ruleProtocol == domain.ProtocolTCP || ruleProtocol == domain.ProtocolUDP {
				proto = ruleProtocol
			} else {
				proto = domain.ProtocolTCP
			}
		}
		out = append(out, domain.PortSpec{Port: NormalizePortRange(p.Port), Protocol: proto})
	}
	return out
}
