// Package validation provides validation functions for firewall rule
// fields. The vocabulary follows firewalld: its protocol set, zone naming
// rules, ipset name length limit and icmptype catalog.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// maxZoneNameLen is firewalld's zone name length limit.
const maxZoneNameLen = 17

// maxPrefixLen keeps generated ipset names inside firewalld's 31-character
// ipset name limit once the seeded suffix is appended.
const maxPrefixLen = 12

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// ValidateRuleName validates a rule identifier. Identifiers may contain
// arbitrary punctuation (the compiler sanitizes them for generated object
// names), but must be non-empty and reasonably short.
func ValidateRuleName(name string) error {
	if name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("rule name must be at most 64 characters")
	}
	return nil
}

// validProtocols is the set of protocols a rule may carry.
var validProtocols = map[string]bool{
	domain.ProtocolTCP:  true,
	domain.ProtocolUDP:  true,
	domain.ProtocolICMP: true,
	domain.ProtocolAH:   true,
	domain.ProtocolESP:  true,
	domain.ProtocolAll:  true,
}

// ValidateProtocol validates the rule protocol.
func ValidateProtocol(protocol string) error {
	if !validProtocols[protocol] {
		return fmt.Errorf("protocol must be one of tcp, udp, icmp, ah, esp, all")
	}
	return nil
}

// ValidateApplyTo validates the address-family selector.
func ValidateApplyTo(applyTo string) error {
	switch applyTo {
	case "", domain.ApplyToIPv4, domain.ApplyToIPv6, domain.ApplyToAll, domain.ApplyToAuto:
		return nil
	}
	return fmt.Errorf("applyTo must be one of ipv4, ipv6, all, auto")
}

// ValidatePort validates a port or port range. Both hyphenated and
// colon-delimited ranges are accepted; the compiler normalizes the latter.
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port must not be empty")
	}

	sep := "-"
	if strings.Contains(port, ":") {
		sep = ":"
	}
	parts := strings.Split(port, sep)
	if len(parts) > 2 {
		return fmt.Errorf("port range must have the form low%shigh", sep)
	}

	nums := make([]int, 0, 2)
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("port must be a number between 1 and 65535")
		}
		nums = append(nums, n)
	}
	if len(nums) == 2 && nums[0] > nums[1] {
		return fmt.Errorf("port range low bound exceeds high bound")
	}
	return nil
}

// ValidatePortProtocol validates a per-port protocol override.
func ValidatePortProtocol(protocol string) error {
	if protocol == "" || protocol == domain.ProtocolTCP || protocol == domain.ProtocolUDP {
		return nil
	}
	return fmt.Errorf("port protocol must be tcp or udp")
}

// ValidateZoneName validates a firewalld zone name.
func ValidateZoneName(zone string) error {
	if zone == "" {
		return fmt.Errorf("zone must not be empty")
	}
	if len(zone) > maxZoneNameLen {
		return fmt.Errorf("zone must be at most %d characters", maxZoneNameLen)
	}
	for _, b := range []byte(zone) {
		if !isAlpha(b) && !isNum(b) && b != '_' && b != '-' {
			return fmt.Errorf("zone can only contain letters, numbers, underscores, or hyphens")
		}
	}
	return nil
}

// ValidatePrefix validates a naming prefix for generated objects.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix must not be empty")
	}
	if len(prefix) > maxPrefixLen {
		return fmt.Errorf("prefix must be at most %d characters", maxPrefixLen)
	}
	if !isAlpha(prefix[0]) {
		return fmt.Errorf("prefix must start with a letter")
	}
	for _, b := range []byte(prefix) {
		if !isAlpha(b) && !isNum(b) && b != '_' && b != '-' {
			return fmt.Errorf("prefix can only contain letters, numbers, underscores, or hyphens")
		}
	}
	return nil
}

// validICMPTypes is the catalog of icmptypes firewalld ships by default.
var validICMPTypes = map[string]bool{
	"address-unreachable":        true,
	"bad-header":                 true,
	"beyond-scope":               true,
	"communication-prohibited":   true,
	"destination-unreachable":    true,
	"echo-reply":                 true,
	"echo-request":               true,
	"failed-policy":              true,
	"fragmentation-needed":       true,
	"host-precedence-violation":  true,
	"host-prohibited":            true,
	"host-redirect":              true,
	"host-unknown":               true,
	"host-unreachable":           true,
	"ip-header-bad":              true,
	"neighbour-advertisement":    true,
	"neighbour-solicitation":     true,
	"network-prohibited":         true,
	"network-redirect":           true,
	"network-unknown":            true,
	"network-unreachable":        true,
	"no-route":                   true,
	"packet-too-big":             true,
	"parameter-problem":          true,
	"port-unreachable":           true,
	"precedence-cutoff":          true,
	"protocol-unreachable":       true,
	"redirect":                   true,
	"reject-route":               true,
	"required-option-missing":    true,
	"router-advertisement":       true,
	"router-solicitation":        true,
	"source-quench":              true,
	"source-route-failed":        true,
	"time-exceeded":              true,
	"timestamp-reply":            true,
	"timestamp-request":          true,
	"tos-host-redirect":          true,
	"tos-host-unreachable":       true,
	"tos-network-redirect":       true,
	"tos-network-unreachable":    true,
	"ttl-zero-during-reassembly": true,
	"ttl-zero-during-transit":    true,
	"unknown-header-type":        true,
	"unknown-option":             true,
}

// ValidICMPTypes returns the list of recognized icmptype names.
func ValidICMPTypes() []string {
	types := make([]string, 0, len(validICMPTypes))
	for t := range validICMPTypes {
		types = append(types, t)
	}
	return types
}

// ValidateICMPType validates an icmptype name against firewalld's default
// catalog.
func ValidateICMPType(name string) error {
	if !validICMPTypes[name] {
		return fmt.Errorf("unknown icmp type: %s", name)
	}
	return nil
}

// ValidateRule validates a complete firewall rule, collecting every field
// error instead of stopping at the first.
func ValidateRule(rule *domain.FirewallRule) ValidationErrors {
	var errs ValidationErrors

	if err := ValidateRuleName(rule.Name); err != nil {
		errs.Add("name", rule.Name, err.Error())
	}
	if err := ValidateProtocol(rule.Protocol); err != nil {
		errs.Add("protocol", rule.Protocol, err.Error())
	}
	if err := ValidateApplyTo(rule.ApplyTo); err != nil {
		errs.Add("applyTo", rule.ApplyTo, err.Error())
	}
	if rule.Zone != "" {
		if err := ValidateZoneName(rule.Zone); err != nil {
			errs.Add("zone", rule.Zone, err.Error())
		}
	}
	if rule.Prefix != "" {
		if err := ValidatePrefix(rule.Prefix); err != nil {
			errs.Add("prefix", rule.Prefix, err.Error())
		}
	}

	for i, port := range rule.Ports {
		if err := ValidatePort(port.Port); err != nil {
			errs.Add(fmt.Sprintf("ports[%d].port", i), port.Port, err.Error())
		}
		if err := ValidatePortProtocol(port.Protocol); err != nil {
			errs.Add(fmt.Sprintf("ports[%d].protocol", i), port.Protocol, err.Error())
		}
	}
	if len(rule.Ports) > 0 && rule.Protocol != domain.ProtocolTCP &&
		rule.Protocol != domain.ProtocolUDP && rule.Protocol != domain.ProtocolAll {
		errs.Add("ports", "", "ports are only valid for tcp, udp, or all protocols")
	}

	for i, icmpType := range rule.ICMPTypes {
		if err := ValidateICMPType(icmpType); err != nil {
			errs.Add(fmt.Sprintf("icmpTypes[%d]", i), icmpType, err.Error())
		}
	}
	if rule.Protocol == domain.ProtocolICMP && len(rule.ICMPTypes) == 0 {
		errs.Add("icmpTypes", "", "at least one icmp type is required for the icmp protocol")
	}
	if len(rule.ICMPTypes) > 0 && rule.Protocol != domain.ProtocolICMP {
		errs.Add("icmpTypes", "", "icmp types are only valid for the icmp protocol")
	}

	return errs
}
