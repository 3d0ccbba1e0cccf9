package compiler

import "github.com/bcnelson/firewalld-rule-manager/internal/domain"

// emitInput carries one rule's resolved compilation state into the emitter.
type emitInput struct {
	rule     *domain.FirewallRule
	class    protoClass
	prefix   string
	zone     string
	order    int
	ports    []domain.PortSpec
	trusted  []string // effective original trusted-net strings (naming seed)
	allowAll bool
	families []domain.Family
	buckets  map[domain.Family][]domain.NetworkSpec
}

// source is one rich-rule source: either a generated address set or the
// family's literal any-address when the rule is open.
type source struct {
	tag     string // name component for the rich-rule name
	ipset   string
	address string
	deps    []string
}

// anyAddress is the literal "from anywhere" source per family.
var anyAddress = map[domain.Family]string{
	domain.FamilyIPv4: "0.0.0.0/0",
	domain.FamilyIPv6: "::/0",
}

// emit implements the rule decision table: it derives the sources for each
// family (creating address sets as needed), creates the named service when
// explicit ports are given, and emits one rich rule per (family, source).
// A family with no members and no open rule gets no rule at all.
func (c *Compiler) emit(set *domain.ObjectSet, in *emitInput) {
	sources := make(map[domain.Family][]source)
	total := 0
	for _, family := range in.families {
		famSources := c.familySources(set, in, family)
		sources[family] = famSources
		total += len(famSources)
	}
	if total == 0 {
		return
	}

	// The service definition is created once and ordered before every
	// rich rule that references it.
	var svcName string
	if in.class == classTransport && len(in.ports) > 0 {
		svcName = ServiceName(in.prefix, in.order, in.rule.Name)
		set.Add(domain.Object{
			Kind:    domain.ObjectKindService,
			Name:    svcName,
			Service: &domain.ServiceObject{Name: svcName, Ports: in.ports},
		})
	}

	for _, family := range in.families {
		for _, src := range sources[family] {
			rr := &domain.RichRuleObject{
				Name:   RuleName(in.prefix, in.order, in.rule.Name, src.tag),
				Zone:   in.zone,
				Family: family,
			}
			if src.ipset != "" {
				rr.SourceIPSet = src.ipset
			} else {
				rr.SourceAddress = src.address
			}

			deps := src.deps
			switch in.class {
			case classICMP:
				rr.ICMPBlocks = in.rule.ICMPTypes
			case classIPProto:
				rr.Protocol = in.rule.Protocol
				rr.Action = "accept"
			case classTransport:
				if svcName != "" {
					rr.Service = svcName
					deps = append(deps, svcName)
				}
				rr.Action = "accept"
			}

			set.Add(domain.Object{
				Kind:      domain.ObjectKindRichRule,
				Name:      rr.Name,
				DependsOn: deps,
				RichRule:  rr,
			})
		}
	}
}

// familySources derives the rich-rule sources for one family. An open rule
// uses the literal any-address and skips ipset creation entirely; otherwise
// each non-empty host/net split becomes an address set backed by an ipset
// object.
func (c *Compiler) familySources(set *domain.ObjectSet, in *emitInput, family domain.Family) []source {
	if in.allowAll {
		return []source{{tag: string(family), address: anyAddress[family]}}
	}

	hosts, nets := Partition(family, in.buckets[family])

	var sources []source
	for _, split := range []struct {
		kind    domain.SetKind
		members []string
	}{
		{domain.SetKindHost, hosts},
		{domain.SetKindNet, nets},
	} {
		if len(split.members) == 0 {
			continue
		}
		name := IPSetName(in.prefix, family, split.kind, in.trusted)
		set.Add(domain.Object{
			Kind: domain.ObjectKindIPSet,
			Name: name,
			IPSet: &domain.IPSetObject{
				Name:    name,
				Type:    "hash:net",
				Family:  family,
				Entries: split.members,
			},
		})
		sources = append(sources, source{tag: name, ipset: name, deps: []string{name}})
	}
	return sources
}
