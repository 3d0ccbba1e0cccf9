package firewalld

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// ShimState is the on-disk representation of the shim's firewalld state.
type ShimState struct {
	IPSets       map[string]*domain.IPSetObject   `json:"ipsets,omitempty"`
	Services     map[string]*domain.ServiceObject `json:"services,omitempty"`
	ZoneServices map[string][]string              `json:"zoneServices,omitempty"` // zone -> service names
	RichRules    map[string][]string              `json:"richRules,omitempty"`    // zone -> rendered rules
	Generation   int                              `json:"generation"`
}

func newState() *ShimState {
	return &ShimState{
		IPSets:       make(map[string]*domain.IPSetObject),
		Services:     make(map[string]*domain.ServiceObject),
		ZoneServices: make(map[string][]string),
		RichRules:    make(map[string][]string),
	}
}

// FileShim is a testing implementation that records requested objects in a
// JSON file instead of talking to a real firewalld daemon. Like firewalld,
// it treats duplicate creation requests as no-ops.
type FileShim struct {
	filePath string
	mu       sync.Mutex
}

// Ensure FileShim implements ConfigClient.
var _ ConfigClient = (*FileShim)(nil)

// NewFileShim creates a new file-based shim.
func NewFileShim(filePath string) *FileShim {
	return &FileShim{filePath: filePath}
}

// load reads the current state, returning an empty state if the file does
// not exist yet.
func (f *FileShim) load() (*ShimState, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return newState(), nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	state := newState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	return state, nil
}

func (f *FileShim) save(state *ShimState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// mutate runs fn against the loaded state and persists the result.
func (f *FileShim) mutate(fn func(state *ShimState)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return err
	}
	fn(state)
	return f.save(state)
}

// EnsureIPSet records an ipset definition. Existing definitions are kept
// as-is, matching firewalld's NAME_CONFLICT no-op behavior.
func (f *FileShim) EnsureIPSet(ctx context.Context, obj *domain.IPSetObject) error {
	return f.mutate(func(state *ShimState) {
		if _, ok := state.IPSets[obj.Name]; ok {
			return
		}
		state.IPSets[obj.Name] = obj
	})
}

// EnsureService records a service definition.
func (f *FileShim) EnsureService(ctx context.Context, obj *domain.ServiceObject) error {
	return f.mutate(func(state *ShimState) {
		if _, ok := state.Services[obj.Name]; ok {
			return
		}
		state.Services[obj.Name] = obj
	})
}

// EnsureZoneService records a service binding on a zone.
func (f *FileShim) EnsureZoneService(ctx context.Context, obj *domain.ZoneServiceObject) error {
	return f.mutate(func(state *ShimState) {
		if slices.Contains(state.ZoneServices[obj.Zone], obj.Service) {
			return
		}
		state.ZoneServices[obj.Zone] = append(state.ZoneServices[obj.Zone], obj.Service)
	})
}

// EnsureRichRule records the object's rendered rich rules on its zone.
func (f *FileShim) EnsureRichRule(ctx context.Context, obj *domain.RichRuleObject) error {
	return f.mutate(func(state *ShimState) {
		for _, rule := range obj.Render() {
			if slices.Contains(state.RichRules[obj.Zone], rule) {
				continue
			}
			state.RichRules[obj.Zone] = append(state.RichRules[obj.Zone], rule)
		}
	})
}

// Reload bumps the state generation, standing in for a daemon reload.
func (f *FileShim) Reload(ctx context.Context) error {
	return f.mutate(func(state *ShimState) {
		state.Generation++
	})
}

// State returns the current shim state. Test helper.
func (f *FileShim) State() (*ShimState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}
