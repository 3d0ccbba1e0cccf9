package compiler_test

import (
	"strings"
	"testing"

	"github.com/bcnelson/firewalld-rule-manager/internal/compiler"
	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

func newCompiler() *compiler.Compiler {
	return compiler.New(compiler.Defaults{Prefix: "fwm", Zone: "public"})
}

func countKind(set *domain.ObjectSet, kind domain.ObjectKind) int {
	n := 0
	for _, obj := range set.Objects {
		if obj.Kind == kind {
			n++
		}
	}
	return n
}

func findObject(set *domain.ObjectSet, kind domain.ObjectKind, name string) *domain.Object {
	for i, obj := range set.Objects {
		if obj.Kind == kind && obj.Name == name {
			return &set.Objects[i]
		}
	}
	return nil
}

func TestCompile_HostAndNetSplit(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "web",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "80"}},
		TrustedNets: []string{"10.0.0.1", "10.0.0.0/24"},
		Order:       11,
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if got := countKind(set, domain.ObjectKindIPSet); got != 2 {
		t.Errorf("Expected 2 ipsets (host and net), got %d", got)
	}
	if got := countKind(set, domain.ObjectKindService); got != 1 {
		t.Errorf("Expected 1 service, got %d", got)
	}
	if got := countKind(set, domain.ObjectKindRichRule); got != 2 {
		t.Errorf("Expected 2 rich rules, got %d", got)
	}
	if got := countKind(set, domain.ObjectKindZoneService); got != 0 {
		t.Errorf("Expected no zone-service bindings, got %d", got)
	}

	// Hosts and nets never share a set
	for _, obj := range set.Objects {
		if obj.Kind != domain.ObjectKindIPSet {
			continue
		}
		for _, entry := range obj.IPSet.Entries {
			hasSlash := strings.Contains(entry, "/")
			for _, other := range obj.IPSet.Entries {
				if strings.Contains(other, "/") != hasSlash {
					t.Errorf("ipset %s mixes hosts and nets: %v", obj.Name, obj.IPSet.Entries)
				}
			}
		}
	}
}

func TestCompile_ServiceOrderedBeforeRichRules(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "web",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "80"}, {Port: "443"}},
		TrustedNets: []string{"10.0.0.0/24"},
		Order:       11,
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	serviceIdx := -1
	firstRichIdx := -1
	for i, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindService && serviceIdx == -1 {
			serviceIdx = i
		}
		if obj.Kind == domain.ObjectKindRichRule && firstRichIdx == -1 {
			firstRichIdx = i
		}
	}
	if serviceIdx == -1 || firstRichIdx == -1 {
		t.Fatalf("Expected both a service and rich rules, got %+v", set.Objects)
	}
	if serviceIdx > firstRichIdx {
		t.Errorf("Service at index %d appears after rich rule at index %d", serviceIdx, firstRichIdx)
	}

	// Every rich rule must depend on the service and its ipset
	for _, obj := range set.Objects {
		if obj.Kind != domain.ObjectKindRichRule {
			continue
		}
		if obj.RichRule.Service == "" {
			t.Errorf("Rich rule %s does not reference the service", obj.Name)
		}
		foundService := false
		for _, dep := range obj.DependsOn {
			if dep == obj.RichRule.Service {
				foundService = true
			}
		}
		if !foundService {
			t.Errorf("Rich rule %s missing dependency on service %s", obj.Name, obj.RichRule.Service)
		}
	}
}

func TestCompile_AllowAllWithPorts(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "ssh-open",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "22"}},
		TrustedNets: []string{"0.0.0.0/0"},
		Order:       11,
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if len(set.Objects) != 2 {
		t.Fatalf("Expected exactly 2 objects, got %d: %+v", len(set.Objects), set.Objects)
	}
	if got := countKind(set, domain.ObjectKindService); got != 1 {
		t.Errorf("Expected 1 service, got %d", got)
	}
	if got := countKind(set, domain.ObjectKindZoneService); got != 1 {
		t.Errorf("Expected 1 zone-service binding, got %d", got)
	}
	if got := countKind(set, domain.ObjectKindIPSet); got != 0 {
		t.Errorf("Open rule with ports must not create ipsets, got %d", got)
	}
	if got := countKind(set, domain.ObjectKindRichRule); got != 0 {
		t.Errorf("Open rule with ports must not create rich rules, got %d", got)
	}
}

func TestCompile_AllowAllSentinels(t *testing.T) {
	c := newCompiler()

	// All spellings of "anywhere" behave identically
	for _, sentinel := range []string{"0.0.0.0/0", "::/0", "ALL", "any", "Any"} {
		rule := &domain.FirewallRule{
			Name:        "open",
			Enabled:     true,
			Protocol:    "tcp",
			Ports:       []domain.PortSpec{{Port: "443"}},
			TrustedNets: []string{sentinel},
			ApplyTo:     "auto",
		}
		set, err := c.Compile(rule)
		if err != nil {
			t.Fatalf("Compile(%q) failed: %v", sentinel, err)
		}
		if got := countKind(set, domain.ObjectKindIPSet); got != 0 {
			t.Errorf("Sentinel %q: expected no ipsets, got %d", sentinel, got)
		}
		if got := countKind(set, domain.ObjectKindZoneService); got != 1 {
			t.Errorf("Sentinel %q: expected 1 zone-service binding, got %d", sentinel, got)
		}
	}
}

func TestCompile_AllowAllNoPorts(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "trust-everything",
		Enabled:     true,
		Protocol:    "all",
		TrustedNets: []string{"any"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if got := countKind(set, domain.ObjectKindIPSet); got != 0 {
		t.Errorf("Open rule must not create ipsets, got %d", got)
	}
	if got := countKind(set, domain.ObjectKindRichRule); got != 2 {
		t.Fatalf("Expected one rich rule per family, got %d", countKind(set, domain.ObjectKindRichRule))
	}

	addresses := map[string]bool{}
	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindRichRule {
			if obj.RichRule.SourceIPSet != "" {
				t.Errorf("Open rule rich rule %s references an ipset", obj.Name)
			}
			addresses[obj.RichRule.SourceAddress] = true
		}
	}
	if !addresses["0.0.0.0/0"] || !addresses["::/0"] {
		t.Errorf("Expected literal any-addresses for both families, got %v", addresses)
	}
}

func TestCompile_ICMP(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "no-ping",
		Enabled:     true,
		Protocol:    "icmp",
		ICMPTypes:   []string{"echo-request", "echo-reply"},
		TrustedNets: []string{"192.168.1.0/24"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if got := countKind(set, domain.ObjectKindService); got != 0 {
		t.Errorf("ICMP rule must not create a service, got %d", got)
	}
	if got := countKind(set, domain.ObjectKindRichRule); got != 1 {
		t.Fatalf("Expected 1 rich rule, got %d", got)
	}

	for _, obj := range set.Objects {
		if obj.Kind != domain.ObjectKindRichRule {
			continue
		}
		if len(obj.RichRule.ICMPBlocks) != 2 {
			t.Errorf("Expected 2 icmp blocks, got %v", obj.RichRule.ICMPBlocks)
		}
		rendered := obj.RichRule.Render()
		if len(rendered) != 2 {
			t.Errorf("Expected one rendered string per icmp block, got %d", len(rendered))
		}
		for _, r := range rendered {
			if !strings.Contains(r, "icmp-block name=") {
				t.Errorf("Rendered rule missing icmp-block element: %s", r)
			}
		}
	}
}

func TestCompile_IPProtocol(t *testing.T) {
	c := newCompiler()

	for _, proto := range []string{"ah", "esp"} {
		rule := &domain.FirewallRule{
			Name:        "vpn-" + proto,
			Enabled:     true,
			Protocol:    proto,
			TrustedNets: []string{"10.1.0.0/16"},
			ApplyTo:     "auto",
		}

		set, err := c.Compile(rule)
		if err != nil {
			t.Fatalf("Compile(%s) failed: %v", proto, err)
		}

		if got := countKind(set, domain.ObjectKindService); got != 0 {
			t.Errorf("%s rule must not create a service, got %d", proto, got)
		}
		found := false
		for _, obj := range set.Objects {
			if obj.Kind == domain.ObjectKindRichRule {
				found = true
				if obj.RichRule.Protocol != proto {
					t.Errorf("Expected protocol %s in rich rule, got %s", proto, obj.RichRule.Protocol)
				}
				rendered := obj.RichRule.Render()
				if !strings.Contains(rendered[0], `protocol value="`+proto+`"`) {
					t.Errorf("Rendered rule missing protocol element: %s", rendered[0])
				}
			}
		}
		if !found {
			t.Errorf("%s rule produced no rich rules", proto)
		}
	}
}

func TestCompile_SourceOnlyAccept(t *testing.T) {
	c := newCompiler()

	// tcp with no ports: trust the sources entirely, no service
	rule := &domain.FirewallRule{
		Name:        "trusted-lan",
		Enabled:     true,
		Protocol:    "all",
		TrustedNets: []string{"192.168.0.0/16"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if got := countKind(set, domain.ObjectKindService); got != 0 {
		t.Errorf("Portless rule must not create a service, got %d", got)
	}
	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindRichRule {
			if obj.RichRule.Action != "accept" {
				t.Errorf("Expected accept action, got %q", obj.RichRule.Action)
			}
			if obj.RichRule.Service != "" {
				t.Errorf("Portless rule must not reference a service")
			}
		}
	}
}

func TestCompile_HostnameSkippedWithWarning(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "by-hostname",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "8080"}},
		TrustedNets: []string{"backup.example.com"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if len(set.Objects) != 0 {
		t.Errorf("Hostname-only rule must emit no objects, got %+v", set.Objects)
	}
	if len(set.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", set.Warnings)
	}
	if !strings.Contains(set.Warnings[0], "backup.example.com") {
		t.Errorf("Warning should name the skipped entry: %s", set.Warnings[0])
	}
}

func TestCompile_HostnameMixedWithAddresses(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "mixed",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "22"}},
		TrustedNets: []string{"10.0.0.5", "backup.example.com"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	// The parseable address still compiles
	if got := countKind(set, domain.ObjectKindIPSet); got != 1 {
		t.Errorf("Expected 1 ipset for the parseable address, got %d", got)
	}
	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindIPSet {
			for _, entry := range obj.IPSet.Entries {
				if entry == "backup.example.com" {
					t.Errorf("Hostname leaked into ipset members")
				}
			}
		}
	}
	if len(set.Warnings) != 1 {
		t.Errorf("Expected 1 warning for the hostname, got %v", set.Warnings)
	}
}

func TestCompile_DefaultTrustedNets(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:     "loopback-only",
		Enabled:  true,
		Protocol: "tcp",
		Ports:    []domain.PortSpec{{Port: "9090"}},
		ApplyTo:  "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	entries := map[string]bool{}
	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindIPSet {
			for _, e := range obj.IPSet.Entries {
				entries[e] = true
			}
		}
	}
	if !entries["127.0.0.1"] || !entries["::1"] {
		t.Errorf("Expected loopback defaults, got %v", entries)
	}
}

func TestCompile_ApplyToRestrictsFamily(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "v4-only",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "53"}},
		TrustedNets: []string{"10.0.0.0/8", "fd00::/8"},
		ApplyTo:     "ipv4",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindIPSet && obj.IPSet.Family != domain.FamilyIPv4 {
			t.Errorf("applyTo=ipv4 emitted a %s ipset", obj.IPSet.Family)
		}
		if obj.Kind == domain.ObjectKindRichRule && obj.RichRule.Family != domain.FamilyIPv4 {
			t.Errorf("applyTo=ipv4 emitted a %s rich rule", obj.RichRule.Family)
		}
	}
}

func TestCompile_AutoFollowsInput(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "v4-input",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "53"}},
		TrustedNets: []string{"10.0.0.0/8"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindRichRule && obj.RichRule.Family == domain.FamilyIPv6 {
			t.Errorf("auto with v4-only input emitted an ipv6 rich rule")
		}
	}
}

func TestCompile_CommaSeparatedEntries(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "comma",
		Enabled:     true,
		Protocol:    "tcp",
		Ports:       []domain.PortSpec{{Port: "443"}},
		TrustedNets: []string{"10.0.0.1, 10.0.0.2,10.0.0.3"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	var entries []string
	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindIPSet {
			entries = obj.IPSet.Entries
		}
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 entries from comma-separated input, got %v", entries)
	}
}

func TestCompile_PortRangeNormalization(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:        "range",
		Enabled:     true,
		Protocol:    "udp",
		Ports:       []domain.PortSpec{{Port: "5000:5100"}},
		TrustedNets: []string{"10.0.0.0/24"},
		ApplyTo:     "auto",
	}

	set, err := c.Compile(rule)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindService {
			if obj.Service.Ports[0].Port != "5000-5100" {
				t.Errorf("Expected colon range normalized to hyphen, got %s", obj.Service.Ports[0].Port)
			}
			if obj.Service.Ports[0].Protocol != "udp" {
				t.Errorf("Expected rule protocol filled in, got %s", obj.Service.Ports[0].Protocol)
			}
		}
	}
}

func TestCompile_UnknownProtocol(t *testing.T) {
	c := newCompiler()

	rule := &domain.FirewallRule{
		Name:     "bogus",
		Enabled:  true,
		Protocol: "gre",
		ApplyTo:  "auto",
	}

	if _, err := c.Compile(rule); err == nil {
		t.Error("Expected an error for an unknown protocol")
	}
}

func TestCompileAll_OrderAndDedup(t *testing.T) {
	c := newCompiler()

	trusted := []string{"10.0.0.0/24"}
	rules := []*domain.FirewallRule{
		{Name: "b-later", Enabled: true, Protocol: "tcp", Ports: []domain.PortSpec{{Port: "81"}}, TrustedNets: trusted, Order: 20, ApplyTo: "auto"},
		{Name: "a-early", Enabled: true, Protocol: "tcp", Ports: []domain.PortSpec{{Port: "80"}}, TrustedNets: trusted, Order: 10, ApplyTo: "auto"},
		{Name: "disabled", Enabled: false, Protocol: "tcp", Ports: []domain.PortSpec{{Port: "82"}}, TrustedNets: trusted, Order: 5, ApplyTo: "auto"},
	}

	set, err := c.CompileAll(rules)
	if err != nil {
		t.Fatalf("CompileAll failed: %v", err)
	}

	// Identical trusted nets share one ipset across rules
	if got := countKind(set, domain.ObjectKindIPSet); got != 1 {
		t.Errorf("Expected shared ipset emitted once, got %d", got)
	}

	// Disabled rule contributes nothing
	for _, obj := range set.Objects {
		if strings.Contains(obj.Name, "disabled") {
			t.Errorf("Disabled rule leaked object %s", obj.Name)
		}
	}

	// Lower order compiles first
	firstService := -1
	for i, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindService {
			firstService = i
			break
		}
	}
	if firstService == -1 {
		t.Fatal("Expected services in combined set")
	}
	if !strings.Contains(set.Objects[firstService].Name, "a-early") {
		t.Errorf("Expected order-10 rule first, got %s", set.Objects[firstService].Name)
	}
}

func TestCompileAll_SameOrderSortsByName(t *testing.T) {
	c := newCompiler()

	rules := []*domain.FirewallRule{
		{Name: "zeta", Enabled: true, Protocol: "tcp", Ports: []domain.PortSpec{{Port: "1"}}, TrustedNets: []string{"10.0.0.0/24"}, Order: 11, ApplyTo: "auto"},
		{Name: "alpha", Enabled: true, Protocol: "tcp", Ports: []domain.PortSpec{{Port: "2"}}, TrustedNets: []string{"10.0.0.0/24"}, Order: 11, ApplyTo: "auto"},
	}

	set, err := c.CompileAll(rules)
	if err != nil {
		t.Fatalf("CompileAll failed: %v", err)
	}

	var serviceNames []string
	for _, obj := range set.Objects {
		if obj.Kind == domain.ObjectKindService {
			serviceNames = append(serviceNames, obj.Name)
		}
	}
	if len(serviceNames) != 2 {
		t.Fatalf("Expected 2 services, got %v", serviceNames)
	}
	if !strings.Contains(serviceNames[0], "alpha") {
		t.Errorf("Expected alpha before zeta, got %v", serviceNames)
	}
}
