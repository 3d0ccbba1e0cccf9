package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
	"github.com/bcnelson/firewalld-rule-manager/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	apiKeys   map[string]*domain.APIKey       // key: id
	rules     map[string]*domain.FirewallRule // key: id
	ruleNames map[string]string               // name -> id
	versions  map[string]*domain.ApplyVersion // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:   make(map[string]*domain.APIKey),
		rules:     make(map[string]*domain.FirewallRule),
		ruleNames: make(map[string]string),
		versions:  make(map[string]*domain.ApplyVersion),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{store: s}, nil
}

// Tx is a no-op transaction for in-memory store.
type Tx struct {
	store *Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// Forward all Tx methods to the underlying store
func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return t.store.CreateAPIKey(ctx, key)
}
func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return t.store.GetAPIKeyByHash(ctx, keyHash)
}
func (t *Tx) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return t.store.ListAPIKeys(ctx)
}
func (t *Tx) DeleteAPIKey(ctx context.Context, id string) error {
	return t.store.DeleteAPIKey(ctx, id)
}
func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return t.store.UpdateAPIKeyLastUsed(ctx, id)
}
func (t *Tx) CountAPIKeys(ctx context.Context) (int, error) {
	return t.store.CountAPIKeys(ctx)
}
func (t *Tx) CreateRule(ctx context.Context, rule *domain.FirewallRule) error {
	return t.store.CreateRule(ctx, rule)
}
func (t *Tx) GetRule(ctx context.Context, id string) (*domain.FirewallRule, error) {
	return t.store.GetRule(ctx, id)
}
func (t *Tx) GetRuleByName(ctx context.Context, name string) (*domain.FirewallRule, error) {
	return t.store.GetRuleByName(ctx, name)
}
func (t *Tx) ListRules(ctx context.Context) ([]*domain.FirewallRule, error) {
	return t.store.ListRules(ctx)
}
func (t *Tx) UpdateRule(ctx context.Context, rule *domain.FirewallRule) error {
	return t.store.UpdateRule(ctx, rule)
}
func (t *Tx) DeleteRule(ctx context.Context, id string) error {
	return t.store.DeleteRule(ctx, id)
}
func (t *Tx) DeleteAllRules(ctx context.Context) error {
	return t.store.DeleteAllRules(ctx)
}
func (t *Tx) CreateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	return t.store.CreateApplyVersion(ctx, version)
}
func (t *Tx) GetApplyVersion(ctx context.Context, id string) (*domain.ApplyVersion, error) {
	return t.store.GetApplyVersion(ctx, id)
}
func (t *Tx) GetLatestApplyVersion(ctx context.Context) (*domain.ApplyVersion, error) {
	return t.store.GetLatestApplyVersion(ctx)
}
func (t *Tx) ListApplyVersions(ctx context.Context, limit, offset int) ([]*domain.ApplyVersion, error) {
	return t.store.ListApplyVersions(ctx, limit, offset)
}
func (t *Tx) UpdateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	return t.store.UpdateApplyVersion(ctx, version)
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.apiKeys {
		if existing.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	s.apiKeys[key.ID] = copyAPIKey(key)
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			return copyAPIKey(key), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		keys = append(keys, copyAPIKey(key))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Firewall Rules
// ============================================

func (s *Store) CreateRule(ctx context.Context, rule *domain.FirewallRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ruleNames[rule.Name]; ok {
		return domain.ErrAlreadyExists
	}
	s.rules[rule.ID] = copyRule(rule)
	s.ruleNames[rule.Name] = rule.ID
	return nil
}

func (s *Store) GetRule(ctx context.Context, id string) (*domain.FirewallRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRule(rule), nil
}

func (s *Store) GetRuleByName(ctx context.Context, name string) (*domain.FirewallRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ruleNames[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRule(s.rules[id]), nil
}

func (s *Store) ListRules(ctx context.Context) ([]*domain.FirewallRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*domain.FirewallRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, copyRule(rule))
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Order != rules[j].Order {
			return rules[i].Order < rules[j].Order
		}
		return rules[i].Name < rules[j].Name
	})
	return rules, nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.FirewallRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.ruleNames, existing.Name)
	s.rules[rule.ID] = copyRule(rule)
	s.ruleNames[rule.Name] = rule.ID
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.ruleNames, rule.Name)
	delete(s.rules, id)
	return nil
}

func (s *Store) DeleteAllRules(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = make(map[string]*domain.FirewallRule)
	s.ruleNames = make(map[string]string)
	return nil
}

// ============================================
// Apply Versions
// ============================================

func (s *Store) CreateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[version.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.versions[version.ID] = copyVersion(version)
	return nil
}

func (s *Store) GetApplyVersion(ctx context.Context, id string) (*domain.ApplyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyVersion(version), nil
}

func (s *Store) GetLatestApplyVersion(ctx context.Context) (*domain.ApplyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.ApplyVersion
	for _, version := range s.versions {
		if latest == nil || version.VersionNumber > latest.VersionNumber {
			latest = version
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return copyVersion(latest), nil
}

func (s *Store) ListApplyVersions(ctx context.Context, limit, offset int) ([]*domain.ApplyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make([]*domain.ApplyVersion, 0, len(s.versions))
	for _, version := range s.versions {
		versions = append(versions, copyVersion(version))
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})

	if offset >= len(versions) {
		return nil, nil
	}
	versions = versions[offset:]
	if limit < len(versions) {
		versions = versions[:limit]
	}
	return versions, nil
}

func (s *Store) UpdateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[version.ID]; !ok {
		return domain.ErrNotFound
	}
	s.versions[version.ID] = copyVersion(version)
	return nil
}

// copy helpers keep callers from mutating stored state.

func copyAPIKey(key *domain.APIKey) *domain.APIKey {
	out := *key
	if key.LastUsedAt != nil {
		t := *key.LastUsedAt
		out.LastUsedAt = &t
	}
	return &out
}

func copyRule(rule *domain.FirewallRule) *domain.FirewallRule {
	out := *rule
	out.Ports = append([]domain.PortSpec(nil), rule.Ports...)
	out.TrustedNets = append([]string(nil), rule.TrustedNets...)
	out.ICMPTypes = append([]string(nil), rule.ICMPTypes...)
	return &out
}

func copyVersion(version *domain.ApplyVersion) *domain.ApplyVersion {
	out := *version
	if version.AppliedAt != nil {
		t := *version.AppliedAt
		out.AppliedAt = &t
	}
	return &out
}
