package compiler

import (
	"fmt"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// hostBits returns the full host mask length for a family.
func hostBits(family domain.Family) int {
	if family == domain.FamilyIPv6 {
		return 128
	}
	return 32
}

// Partition splits one family's entries into single-host members and
// subnet members. A bare address or a full host mask counts as a host;
// everything else is a net. The two kinds never share a set.
func Partition(family domain.Family, specs []domain.NetworkSpec) (hosts, nets []string) {
	full := hostBits(family)
	for _, spec := range specs {
		if spec.CIDR == nil || *spec.CIDR == full {
			hosts = append(hosts, spec.Address)
			continue
		}
		nets = append(nets, fmt.Sprintf("%s/%d", spec.Address, *spec.CIDR))
	}
	return hosts, nets
}
