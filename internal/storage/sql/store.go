package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
	"github.com/bcnelson/firewalld-rule-manager/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// API Keys
// ============================================

func createAPIKey(ctx context.Context, db dbInterface, key *domain.APIKey) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, s.db, key)
}

func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, t.tx, key)
}

func getAPIKeyByHash(ctx context.Context, db dbInterface, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.GetContext(ctx, &key,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys WHERE key_hash = $1`, keyHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, s.db, keyHash)
}

func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, t.tx, keyHash)
}

func listAPIKeys(ctx context.Context, db dbInterface) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := db.SelectContext(ctx, &keys,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys ORDER BY created_at`)
	return keys, err
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, s.db)
}

func (t *Tx) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, t.tx)
}

func deleteAPIKey(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, s.db, id)
}

func (t *Tx) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, t.tx, id)
}

func updateAPIKeyLastUsed(ctx context.Context, db dbInterface, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	return err
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, s.db, id)
}

func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, t.tx, id)
}

func countAPIKeys(ctx context.Context, db dbInterface) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, s.db)
}

func (t *Tx) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, t.tx)
}

// ============================================
// Firewall Rules
// ============================================

func createRule(ctx context.Context, db dbInterface, rule *domain.FirewallRule) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO rules (id, name, enabled, protocol, rule_order, apply_to, prefix, zone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rule.ID, rule.Name, rule.Enabled, rule.Protocol, rule.Order, rule.ApplyTo,
		rule.Prefix, rule.Zone, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return wrapUniqueError(err)
	}
	return insertRuleChildren(ctx, db, rule)
}

func (s *Store) CreateRule(ctx context.Context, rule *domain.FirewallRule) error {
	return createRule(ctx, s.db, rule)
}

func (t *Tx) CreateRule(ctx context.Context, rule *domain.FirewallRule) error {
	return createRule(ctx, t.tx, rule)
}

func insertRuleChildren(ctx context.Context, db dbInterface, rule *domain.FirewallRule) error {
	for i, net := range rule.TrustedNets {
		_, err := db.ExecContext(ctx,
			`INSERT INTO rule_trusted_nets (rule_id, position, net) VALUES ($1, $2, $3)`,
			rule.ID, i, net)
		if err != nil {
			return err
		}
	}
	for i, port := range rule.Ports {
		_, err := db.ExecContext(ctx,
			`INSERT INTO rule_ports (rule_id, position, port, protocol) VALUES ($1, $2, $3, $4)`,
			rule.ID, i, port.Port, port.Protocol)
		if err != nil {
			return err
		}
	}
	for i, icmpType := range rule.ICMPTypes {
		_, err := db.ExecContext(ctx,
			`INSERT INTO rule_icmp_types (rule_id, position, icmp_type) VALUES ($1, $2, $3)`,
			rule.ID, i, icmpType)
		if err != nil {
			return err
		}
	}
	return nil
}

func deleteRuleChildren(ctx context.Context, db dbInterface, ruleID string) error {
	for _, table := range []string{"rule_trusted_nets", "rule_ports", "rule_icmp_types"} {
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rule_id = $1`, table), ruleID); err != nil {
			return err
		}
	}
	return nil
}

func loadRuleChildren(ctx context.Context, db dbInterface, rule *domain.FirewallRule) error {
	if err := db.SelectContext(ctx, &rule.TrustedNets,
		`SELECT net FROM rule_trusted_nets WHERE rule_id = $1 ORDER BY position`, rule.ID); err != nil {
		return err
	}
	if err := db.SelectContext(ctx, &rule.Ports,
		`SELECT port, protocol FROM rule_ports WHERE rule_id = $1 ORDER BY position`, rule.ID); err != nil {
		return err
	}
	return db.SelectContext(ctx, &rule.ICMPTypes,
		`SELECT icmp_type FROM rule_icmp_types WHERE rule_id = $1 ORDER BY position`, rule.ID)
}

const ruleColumns = `id, name, enabled, protocol, rule_order, apply_to, prefix, zone, created_at, updated_at`

func getRule(ctx context.Context, db dbInterface, id string) (*domain.FirewallRule, error) {
	var rule domain.FirewallRule
	err := db.GetContext(ctx, &rule,
		`SELECT `+ruleColumns+` FROM rules WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, loadRuleChildren(ctx, db, &rule)
}

func (s *Store) GetRule(ctx context.Context, id string) (*domain.FirewallRule, error) {
	return getRule(ctx, s.db, id)
}

func (t *Tx) GetRule(ctx context.Context, id string) (*domain.FirewallRule, error) {
	return getRule(ctx, t.tx, id)
}

func getRuleByName(ctx context.Context, db dbInterface, name string) (*domain.FirewallRule, error) {
	var rule domain.FirewallRule
	err := db.GetContext(ctx, &rule,
		`SELECT `+ruleColumns+` FROM rules WHERE name = $1`, name)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, loadRuleChildren(ctx, db, &rule)
}

func (s *Store) GetRuleByName(ctx context.Context, name string) (*domain.FirewallRule, error) {
	return getRuleByName(ctx, s.db, name)
}

func (t *Tx) GetRuleByName(ctx context.Context, name string) (*domain.FirewallRule, error) {
	return getRuleByName(ctx, t.tx, name)
}

func listRules(ctx context.Context, db dbInterface) ([]*domain.FirewallRule, error) {
	var rules []*domain.FirewallRule
	err := db.SelectContext(ctx, &rules,
		`SELECT `+ruleColumns+` FROM rules ORDER BY rule_order, name`)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if err := loadRuleChildren(ctx, db, rule); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func (s *Store) ListRules(ctx context.Context) ([]*domain.FirewallRule, error) {
	return listRules(ctx, s.db)
}

func (t *Tx) ListRules(ctx context.Context) ([]*domain.FirewallRule, error) {
	return listRules(ctx, t.tx)
}

func updateRule(ctx context.Context, db dbInterface, rule *domain.FirewallRule) error {
	result, err := db.ExecContext(ctx,
		`UPDATE rules SET enabled = $1, protocol = $2, rule_order = $3, apply_to = $4,
		 prefix = $5, zone = $6, updated_at = $7 WHERE id = $8`,
		rule.Enabled, rule.Protocol, rule.Order, rule.ApplyTo,
		rule.Prefix, rule.Zone, rule.UpdatedAt, rule.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	if err := deleteRuleChildren(ctx, db, rule.ID); err != nil {
		return err
	}
	return insertRuleChildren(ctx, db, rule)
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.FirewallRule) error {
	return updateRule(ctx, s.db, rule)
}

func (t *Tx) UpdateRule(ctx context.Context, rule *domain.FirewallRule) error {
	return updateRule(ctx, t.tx, rule)
}

func deleteRule(ctx context.Context, db dbInterface, id string) error {
	if err := deleteRuleChildren(ctx, db, id); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	return deleteRule(ctx, s.db, id)
}

func (t *Tx) DeleteRule(ctx context.Context, id string) error {
	return deleteRule(ctx, t.tx, id)
}

func deleteAllRules(ctx context.Context, db dbInterface) error {
	for _, table := range []string{"rule_trusted_nets", "rule_ports", "rule_icmp_types", "rules"} {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteAllRules(ctx context.Context) error {
	return deleteAllRules(ctx, s.db)
}

func (t *Tx) DeleteAllRules(ctx context.Context) error {
	return deleteAllRules(ctx, t.tx)
}

// ============================================
// Apply Versions
// ============================================

func createApplyVersion(ctx context.Context, db dbInterface, version *domain.ApplyVersion) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO apply_versions (id, version_number, rendered_objects, apply_status, apply_error, created_at, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		version.ID, version.VersionNumber, version.RenderedObjects,
		version.ApplyStatus, version.ApplyError, version.CreatedAt, version.AppliedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	return createApplyVersion(ctx, s.db, version)
}

func (t *Tx) CreateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	return createApplyVersion(ctx, t.tx, version)
}

const versionColumns = `id, version_number, rendered_objects, apply_status, apply_error, created_at, applied_at`

func getApplyVersion(ctx context.Context, db dbInterface, id string) (*domain.ApplyVersion, error) {
	var version domain.ApplyVersion
	err := db.GetContext(ctx, &version,
		`SELECT `+versionColumns+` FROM apply_versions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &version, err
}

func (s *Store) GetApplyVersion(ctx context.Context, id string) (*domain.ApplyVersion, error) {
	return getApplyVersion(ctx, s.db, id)
}

func (t *Tx) GetApplyVersion(ctx context.Context, id string) (*domain.ApplyVersion, error) {
	return getApplyVersion(ctx, t.tx, id)
}

func getLatestApplyVersion(ctx context.Context, db dbInterface) (*domain.ApplyVersion, error) {
	var version domain.ApplyVersion
	err := db.GetContext(ctx, &version,
		`SELECT `+versionColumns+` FROM apply_versions ORDER BY version_number DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &version, err
}

func (s *Store) GetLatestApplyVersion(ctx context.Context) (*domain.ApplyVersion, error) {
	return getLatestApplyVersion(ctx, s.db)
}

func (t *Tx) GetLatestApplyVersion(ctx context.Context) (*domain.ApplyVersion, error) {
	return getLatestApplyVersion(ctx, t.tx)
}

func listApplyVersions(ctx context.Context, db dbInterface, limit, offset int) ([]*domain.ApplyVersion, error) {
	var versions []*domain.ApplyVersion
	err := db.SelectContext(ctx, &versions,
		`SELECT `+versionColumns+` FROM apply_versions ORDER BY version_number DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	return versions, err
}

func (s *Store) ListApplyVersions(ctx context.Context, limit, offset int) ([]*domain.ApplyVersion, error) {
	return listApplyVersions(ctx, s.db, limit, offset)
}

func (t *Tx) ListApplyVersions(ctx context.Context, limit, offset int) ([]*domain.ApplyVersion, error) {
	return listApplyVersions(ctx, t.tx, limit, offset)
}

func updateApplyVersion(ctx context.Context, db dbInterface, version *domain.ApplyVersion) error {
	result, err := db.ExecContext(ctx,
		`UPDATE apply_versions SET apply_status = $1, apply_error = $2, applied_at = $3 WHERE id = $4`,
		version.ApplyStatus, version.ApplyError, version.AppliedAt, version.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	return updateApplyVersion(ctx, s.db, version)
}

func (t *Tx) UpdateApplyVersion(ctx context.Context, version *domain.ApplyVersion) error {
	return updateApplyVersion(ctx, t.tx, version)
}
