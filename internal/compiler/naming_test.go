package compiler_test

import (
	"strings"
	"testing"

	"github.com/bcnelson/firewalld-rule-manager/internal/compiler"
	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

func TestIPSetName_Deterministic(t *testing.T) {
	nets := []string{"10.0.0.1", "10.0.0.0/24"}

	a := compiler.IPSetName("fwm", domain.FamilyIPv4, domain.SetKindHost, nets)
	b := compiler.IPSetName("fwm", domain.FamilyIPv4, domain.SetKindHost, nets)
	if a != b {
		t.Errorf("Identical inputs produced different names: %s vs %s", a, b)
	}
}

func TestIPSetName_OrderAndDuplicatesIgnored(t *testing.T) {
	a := compiler.IPSetName("fwm", domain.FamilyIPv4, domain.SetKindNet, []string{"10.0.0.0/24", "10.1.0.0/24"})
	b := compiler.IPSetName("fwm", domain.FamilyIPv4, domain.SetKindNet, []string{"10.1.0.0/24", "10.0.0.0/24", " 10.0.0.0/24 "})
	if a != b {
		t.Errorf("Permuted/duplicated inputs should share a name: %s vs %s", a, b)
	}
}

func TestIPSetName_VariesWithInputs(t *testing.T) {
	base := compiler.IPSetName("fwm", domain.FamilyIPv4, domain.SetKindHost, []string{"10.0.0.1"})

	cases := map[string]string{
		"family": compiler.IPSetName("fwm", domain.FamilyIPv6, domain.SetKindHost, []string{"10.0.0.1"}),
		"kind":   compiler.IPSetName("fwm", domain.FamilyIPv4, domain.SetKindNet, []string{"10.0.0.1"}),
		"nets":   compiler.IPSetName("fwm", domain.FamilyIPv4, domain.SetKindHost, []string{"10.0.0.2"}),
	}
	for what, name := range cases {
		if name == base {
			t.Errorf("Changing %s should change the name", what)
		}
	}
}

func TestIPSetName_LengthBound(t *testing.T) {
	name := compiler.IPSetName("longprefixname", domain.FamilyIPv4, domain.SetKindHost, []string{"10.0.0.1"})
	if len(name) > 31 {
		t.Errorf("Name %q exceeds firewalld's 31-character limit", name)
	}
	if !strings.HasPrefix(name, "longprefixname-") {
		t.Errorf("Name %q should start with the prefix", name)
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"with space", "with_space"},
		{"dots.and.colons:here", "dots_and_colons_here"},
		{"keep-hyphens_and_underscores", "keep-hyphens_and_underscores"},
		{"slash/back\\slash", "slash_back_slash"},
	}
	for _, tt := range tests {
		if got := compiler.SanitizeIdentifier(tt.in); got != tt.want {
			t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRuleName(t *testing.T) {
	got := compiler.RuleName("fwm", 11, "allow web", "fwm-abcdef")
	want := "fwm_11_allow_web_fwm-abcdef"
	if got != want {
		t.Errorf("RuleName = %q, want %q", got, want)
	}
}

func TestRuleName_CollapsesSeparators(t *testing.T) {
	got := compiler.RuleName("fwm", 11, "a  b", "set")
	if strings.Contains(got, "__") {
		t.Errorf("Repeated separators should collapse: %q", got)
	}
}

func TestServiceName(t *testing.T) {
	got := compiler.ServiceName("fwm", 11, "web")
	want := "fwm_11_web"
	if got != want {
		t.Errorf("ServiceName = %q, want %q", got, want)
	}
}
