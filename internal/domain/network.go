package domain

// Family is the address family of a normalized network entry.
type Family string

// Address families recognized by the classifier. Entries that do not parse
// as an IP address or CIDR are classified as FamilyUnknown and treated as
// hostnames: they are surfaced as a warning and never reach a generated set.
const (
	FamilyIPv4    Family = "ipv4"
	FamilyIPv6    Family = "ipv6"
	FamilyUnknown Family = "unknown"
)

// NetworkSpec is one normalized trusted-network entry. Immutable once parsed.
type NetworkSpec struct {
	Family   Family `json:"family"`
	Address  string `json:"address"`
	CIDR     *int   `json:"cidr,omitempty"`
	Original string `json:"original"` // The input string before normalization
}

// SetKind distinguishes single-host address sets from subnet address sets.
// The generated set name is a pure function of (family, kind, original
// trusted nets), so repeated compilations with identical input reuse the
// same set.
type SetKind string

// Address-set kinds produced by the partitioner. The two kinds are never
// mixed in one set.
const (
	SetKindHost SetKind = "host"
	SetKindNet  SetKind = "net"
)
