package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/bcnelson/firewalld-rule-manager/internal/compiler"
	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
	"github.com/bcnelson/firewalld-rule-manager/internal/firewalld"
	"github.com/bcnelson/firewalld-rule-manager/internal/storage"
	"github.com/google/uuid"
)

// SyncService compiles the stored rules and applies the resulting object
// set to firewalld. It owns the process-wide enabled toggle: when disabled,
// no apply produces any object requests.
type SyncService struct {
	store     storage.Storage
	compiler  *compiler.Compiler
	client    firewalld.ConfigClient
	debounce  time.Duration
	autoApply bool
	enabled   bool

	mu           sync.Mutex
	applyTimer   *time.Timer
	applyPending bool
}

// NewSyncService creates a new SyncService.
func NewSyncService(store storage.Storage, client firewalld.ConfigClient, defaults compiler.Defaults, debounce time.Duration, autoApply, enabled bool) *SyncService {
	return &SyncService{
		store:     store,
		compiler:  compiler.New(defaults),
		client:    client,
		debounce:  debounce,
		autoApply: autoApply,
		enabled:   enabled,
	}
}

// TriggerApply triggers a debounced apply operation.
// Multiple triggers within the debounce period will result in a single apply.
func (s *SyncService) TriggerApply() {
	if !s.autoApply {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancel existing timer
	if s.applyTimer != nil {
		s.applyTimer.Stop()
	}

	s.applyPending = true
	s.applyTimer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.applyPending = false
		s.mu.Unlock()

		ctx := context.Background()
		if _, err := s.doApply(ctx); err != nil {
			log.Printf("Auto-apply failed: %v", err)
		}
	})
}

// GetCompiledObjects compiles the current rule set without applying it.
func (s *SyncService) GetCompiledObjects(ctx context.Context) (*domain.ObjectSet, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return s.compiler.CompileAll(rules)
}

// ForceApply forces an immediate apply to firewalld.
func (s *SyncService) ForceApply(ctx context.Context) (*domain.SyncResponse, error) {
	s.mu.Lock()
	// Cancel any pending debounced apply
	if s.applyTimer != nil {
		s.applyTimer.Stop()
	}
	s.applyPending = false
	s.mu.Unlock()

	return s.doApply(ctx)
}

// doApply performs the actual compile-and-apply operation.
func (s *SyncService) doApply(ctx context.Context) (*domain.SyncResponse, error) {
	if !s.enabled {
		log.Printf("Warning: firewall management is administratively disabled, skipping apply")
		return &domain.SyncResponse{
			Status:   "skipped",
			Warnings: []string{"firewall management is administratively disabled"},
		}, nil
	}

	set, err := s.GetCompiledObjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, warning := range set.Warnings {
		log.Printf("Warning: %s", warning)
	}

	rendered, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}

	version, err := s.createVersion(ctx, string(rendered))
	if err != nil {
		return nil, err
	}

	return s.applyVersion(ctx, version, set)
}

// Rollback re-applies a previously recorded object set.
func (s *SyncService) Rollback(ctx context.Context, versionID string) (*domain.SyncResponse, error) {
	if !s.enabled {
		log.Printf("Warning: firewall management is administratively disabled, skipping rollback")
		return &domain.SyncResponse{
			Status:   "skipped",
			Warnings: []string{"firewall management is administratively disabled"},
		}, nil
	}

	previous, err := s.store.GetApplyVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	var set domain.ObjectSet
	if err := json.Unmarshal([]byte(previous.RenderedObjects), &set); err != nil {
		return nil, err
	}

	version, err := s.createVersion(ctx, previous.RenderedObjects)
	if err != nil {
		return nil, err
	}

	return s.applyVersion(ctx, version, &set)
}

// createVersion records a new pending apply version with the next version
// number.
func (s *SyncService) createVersion(ctx context.Context, rendered string) (*domain.ApplyVersion, error) {
	nextVersion := 1
	latest, err := s.store.GetLatestApplyVersion(ctx)
	if err == nil {
		nextVersion = latest.VersionNumber + 1
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	version := &domain.ApplyVersion{
		ID:              uuid.New().String(),
		VersionNumber:   nextVersion,
		RenderedObjects: rendered,
		ApplyStatus:     "pending",
		CreatedAt:       time.Now(),
	}
	if err := s.store.CreateApplyVersion(ctx, version); err != nil {
		return nil, err
	}
	return version, nil
}

// applyVersion pushes the object set to firewalld and records the outcome
// on the version row.
func (s *SyncService) applyVersion(ctx context.Context, version *domain.ApplyVersion, set *domain.ObjectSet) (*domain.SyncResponse, error) {
	now := time.Now()
	if err := firewalld.Apply(ctx, s.client, set); err != nil {
		version.ApplyStatus = "failed"
		version.ApplyError = err.Error()
		version.AppliedAt = &now
		_ = s.store.UpdateApplyVersion(ctx, version)

		return &domain.SyncResponse{
			VersionID:     version.ID,
			VersionNumber: version.VersionNumber,
			Status:        "failed",
			Error:         err.Error(),
			Warnings:      set.Warnings,
		}, nil
	}

	version.ApplyStatus = "success"
	version.AppliedAt = &now
	if err := s.store.UpdateApplyVersion(ctx, version); err != nil {
		log.Printf("Warning: Failed to update version record: %v", err)
	}

	return &domain.SyncResponse{
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
		Status:        "success",
		Warnings:      set.Warnings,
	}, nil
}
