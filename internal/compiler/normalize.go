package compiler

import (
	"net"
	"strings"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// anySentinels are the recognized "allow from anywhere" values. Matching is
// case-insensitive.
var anySentinels = map[string]bool{
	"0.0.0.0/0": true,
	"::/0":      true,
	"all":       true,
	"any":       true,
}

// IsAnySentinel reports whether the entry means "allow from anywhere".
func IsAnySentinel(s string) bool {
	return anySentinels[strings.ToLower(strings.TrimSpace(s))]
}

// NormalizeNetworks coerces heterogeneous trusted-network input into a
// canonical ordered sequence of NetworkSpec entries. Each input element may
// itself be a comma-separated list. Entries that do not parse as an IP or
// CIDR land in the unknown family; this never fails.
//
// The second return value reports whether any entry is an any-address
// sentinel, in which case the whole rule is treated as open. A sentinel
// does not stop classification of the remaining entries: hostname warnings
// still surface for rules that are open to everyone.
func NormalizeNetworks(nets []string) ([]domain.NetworkSpec, bool) {
	var specs []domain.NetworkSpec
	allowAll := false

	for _, raw := range nets {
		for _, entry := range strings.Split(raw, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if IsAnySentinel(entry) {
				allowAll = true
				continue
			}
			specs = append(specs, parseNetwork(entry))
		}
	}

	return specs, allowAll
}

// parseNetwork normalizes one trusted-network entry. A bare address has a
// nil CIDR; anything unparseable keeps its original text and is classified
// as unknown (treated as a hostname downstream).
func parseNetwork(entry string) domain.NetworkSpec {
	if ip, ipnet, err := net.ParseCIDR(entry); err == nil {
		ones, _ := ipnet.Mask.Size()
		cidr := ones
		return domain.NetworkSpec{
			Family:   familyOf(ip),
			Address:  ip.String(),
			CIDR:     &cidr,
			Original: entry,
		}
	}

	if ip := net.ParseIP(entry); ip != nil {
		return domain.NetworkSpec{
			Family:   familyOf(ip),
			Address:  ip.String(),
			Original: entry,
		}
	}

	return domain.NetworkSpec{
		Family:   domain.FamilyUnknown,
		Address:  entry,
		Original: entry,
	}
}

// familyOf returns the address family of a parsed IP.
func familyOf(ip net.IP) domain.Family {
	if ip.To4() != nil {
		return domain.FamilyIPv4
	}
	return domain.FamilyIPv6
}

// NormalizePortRange converts colon-delimited range notation ("1024:65535")
// into firewalld's hyphenated form ("1024-65535"). Other values pass
// through unchanged.
func NormalizePortRange(port string) string {
	return strings.ReplaceAll(strings.TrimSpace(port), ":", "-")
}
