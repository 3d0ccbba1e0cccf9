package storage

import (
	"context"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Firewall Rules
	CreateRule(ctx context.Context, rule *domain.FirewallRule) error
	GetRule(ctx context.Context, id string) (*domain.FirewallRule, error)
	GetRuleByName(ctx context.Context, name string) (*domain.FirewallRule, error)
	ListRules(ctx context.Context) ([]*domain.FirewallRule, error)
	UpdateRule(ctx context.Context, rule *domain.FirewallRule) error
	DeleteRule(ctx context.Context, id string) error
	DeleteAllRules(ctx context.Context) error

	// Apply Versions
	CreateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error
	GetApplyVersion(ctx context.Context, id string) (*domain.ApplyVersion, error)
	GetLatestApplyVersion(ctx context.Context) (*domain.ApplyVersion, error)
	ListApplyVersions(ctx context.Context, limit, offset int) ([]*domain.ApplyVersion, error)
	UpdateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
