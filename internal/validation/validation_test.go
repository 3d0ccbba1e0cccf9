package validation_test

import (
	"testing"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
	"github.com/bcnelson/firewalld-rule-manager/internal/validation"
)

func TestValidateProtocol(t *testing.T) {
	for _, proto := range []string{"tcp", "udp", "icmp", "ah", "esp", "all"} {
		if err := validation.ValidateProtocol(proto); err != nil {
			t.Errorf("ValidateProtocol(%q) = %v, want nil", proto, err)
		}
	}
	for _, proto := range []string{"", "gre", "TCP", "sctp"} {
		if err := validation.ValidateProtocol(proto); err == nil {
			t.Errorf("ValidateProtocol(%q) = nil, want error", proto)
		}
	}
}

func TestValidatePort(t *testing.T) {
	valid := []string{"1", "80", "65535", "80-443", "80:443", "5000-5000"}
	for _, port := range valid {
		if err := validation.ValidatePort(port); err != nil {
			t.Errorf("ValidatePort(%q) = %v, want nil", port, err)
		}
	}

	invalid := []string{"", "0", "65536", "-1", "443-80", "80-", "a", "1-2-3"}
	for _, port := range invalid {
		if err := validation.ValidatePort(port); err == nil {
			t.Errorf("ValidatePort(%q) = nil, want error", port)
		}
	}
}

func TestValidateZoneName(t *testing.T) {
	valid := []string{"public", "dmz", "my_zone", "zone-1"}
	for _, zone := range valid {
		if err := validation.ValidateZoneName(zone); err != nil {
			t.Errorf("ValidateZoneName(%q) = %v, want nil", zone, err)
		}
	}

	invalid := []string{"", "this-zone-name-is-too-long", "bad zone", "zone.dot"}
	for _, zone := range invalid {
		if err := validation.ValidateZoneName(zone); err == nil {
			t.Errorf("ValidateZoneName(%q) = nil, want error", zone)
		}
	}
}

func TestValidatePrefix(t *testing.T) {
	valid := []string{"fwm", "fw-mgr", "a1"}
	for _, prefix := range valid {
		if err := validation.ValidatePrefix(prefix); err != nil {
			t.Errorf("ValidatePrefix(%q) = %v, want nil", prefix, err)
		}
	}

	invalid := []string{"", "1fw", "toolongprefixname", "bad prefix", "-fw"}
	for _, prefix := range invalid {
		if err := validation.ValidatePrefix(prefix); err == nil {
			t.Errorf("ValidatePrefix(%q) = nil, want error", prefix)
		}
	}
}

func TestValidateICMPType(t *testing.T) {
	if err := validation.ValidateICMPType("echo-request"); err != nil {
		t.Errorf("echo-request should be valid: %v", err)
	}
	if err := validation.ValidateICMPType("not-a-type"); err == nil {
		t.Error("Expected error for unknown icmp type")
	}
}

func TestValidateRule_Valid(t *testing.T) {
	rule := &domain.FirewallRule{
		Name:        "web",
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "80"}, {Port: "443", Protocol: "tcp"}},
		TrustedNets: []string{"10.0.0.0/24"},
		ApplyTo:     "auto",
	}
	if errs := validation.ValidateRule(rule); errs.HasErrors() {
		t.Errorf("Expected valid rule, got %v", errs)
	}
}

func TestValidateRule_PortsRequireTransport(t *testing.T) {
	rule := &domain.FirewallRule{
		Name:      "bad",
		Protocol:  "icmp",
		ICMPTypes: []string{"echo-request"},
		Ports:     []domain.PortSpec{{Port: "80"}},
	}
	errs := validation.ValidateRule(rule)
	if !errs.HasErrors() {
		t.Fatal("Expected validation errors")
	}
	found := false
	for _, e := range errs {
		if e.Field == "ports" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a ports error, got %v", errs)
	}
}

func TestValidateRule_ICMPRequiresTypes(t *testing.T) {
	rule := &domain.FirewallRule{Name: "ping", Protocol: "icmp"}
	errs := validation.ValidateRule(rule)
	if !errs.HasErrors() {
		t.Fatal("Expected validation errors for icmp without types")
	}
}

func TestValidateRule_ICMPTypesOnlyForICMP(t *testing.T) {
	rule := &domain.FirewallRule{
		Name:      "bad",
		Protocol:  "tcp",
		ICMPTypes: []string{"echo-request"},
	}
	errs := validation.ValidateRule(rule)
	if !errs.HasErrors() {
		t.Fatal("Expected validation errors for icmp types on a tcp rule")
	}
}

func TestValidateRule_CollectsAllErrors(t *testing.T) {
	rule := &domain.FirewallRule{
		Name:     "",
		Protocol: "bogus",
		Zone:     "bad zone",
	}
	errs := validation.ValidateRule(rule)
	if len(errs) < 3 {
		t.Errorf("Expected at least 3 errors, got %d: %v", len(errs), errs)
	}
}
