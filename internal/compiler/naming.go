package compiler

import (
	"crypto/sha256"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// maxIPSetNameLen is firewalld's ipset name length limit.
const maxIPSetNameLen = 31

// seededStringLen is the length of the pseudo-random part of an ipset name.
const seededStringLen = 16

const seedAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	nonWord     = regexp.MustCompile(`[^\w-]`)
	repeatedSep = regexp.MustCompile(`_{2,}`)
)

// seededString returns a deterministic pseudo-random alphanumeric string
// derived from the seed. Identical seeds always yield identical strings,
// which is what makes re-runs reuse existing objects instead of creating
// duplicates.
func seededString(n int, seed string) string {
	sum := sha256.Sum256([]byte(seed))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		if i > 0 && i%len(sum) == 0 {
			sum = sha256.Sum256(sum[:])
		}
		out[i] = seedAlphabet[int(sum[i%len(sum)])%len(seedAlphabet)]
	}
	return string(out)
}

// IPSetName derives the stable, length-bounded name for a generated address
// set. The seed covers the family tag, the set kind, and the sorted unique
// original trusted-network strings, so any change to the inputs produces a
// different name while identical inputs always collide on purpose.
func IPSetName(prefix string, family domain.Family, kind domain.SetKind, trustedNets []string) string {
	seed := strings.Join([]string{
		string(family),
		string(kind),
		strings.Join(sortedUnique(trustedNets), ","),
	}, "|")

	name := prefix + "-" + seededString(seededStringLen, seed)
	if len(name) > maxIPSetNameLen {
		name = name[:maxIPSetNameLen]
	}
	return name
}

// SanitizeIdentifier maps every non-word, non-hyphen rune in a
// user-supplied identifier to an underscore.
func SanitizeIdentifier(identifier string) string {
	return nonWord.ReplaceAllString(identifier, "_")
}

// RuleName builds the name of a generated rich rule from the naming prefix,
// the rule order, the sanitized identifier and the referenced address-set
// name (or family tag when no set applies). Repeated separators collapse.
func RuleName(prefix string, order int, identifier, setName string) string {
	return joinName(prefix, strconv.Itoa(order), SanitizeIdentifier(identifier), setName)
}

// ServiceName builds the name of a generated port service.
func ServiceName(prefix string, order int, identifier string) string {
	return joinName(prefix, strconv.Itoa(order), SanitizeIdentifier(identifier))
}

func joinName(parts ...string) string {
	name := strings.Join(parts, "_")
	name = repeatedSep.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

func sortedUnique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
