// Package firewalld talks to the firewalld configuration daemon. The
// package does not enforce anything itself: it requests the creation of
// declarative objects computed by the compiler and relies on firewalld for
// all enforcement.
package firewalld

import (
	"context"
	"fmt"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// ConfigClient defines the interface for requesting firewalld objects.
// Every Ensure method is create-or-reuse: requesting an object that already
// exists is a no-op, which is what makes repeated applies of identically
// named objects safe.
type ConfigClient interface {
	EnsureIPSet(ctx context.Context, obj *domain.IPSetObject) error
	EnsureService(ctx context.Context, obj *domain.ServiceObject) error
	EnsureZoneService(ctx context.Context, obj *domain.ZoneServiceObject) error
	EnsureRichRule(ctx context.Context, obj *domain.RichRuleObject) error
	Reload(ctx context.Context) error
}

// Apply walks an object set in its declared order and requests each object
// from the client. The set's order already satisfies every DependsOn edge,
// so a service or ipset is always requested before the rich rules that
// reference it.
//
// Every kind of object, zone attachments included, lands in the permanent
// configuration; the single reload at the end activates the whole set at
// once. Attachments must not be written to the runtime, both because a
// runtime attachment cannot reference a permanent-only definition and
// because the reload would discard it. The reload is skipped when any
// object fails, leaving the previous runtime configuration in force.
func Apply(ctx context.Context, client ConfigClient, set *domain.ObjectSet) error {
	for i := range set.Objects {
		obj := &set.Objects[i]
		var err error
		switch obj.Kind {
		case domain.ObjectKindIPSet:
			err = client.EnsureIPSet(ctx, obj.IPSet)
		case domain.ObjectKindService:
			err = client.EnsureService(ctx, obj.Service)
		case domain.ObjectKindZoneService:
			err = client.EnsureZoneService(ctx, obj.ZoneService)
		case domain.ObjectKindRichRule:
			err = client.EnsureRichRule(ctx, obj.RichRule)
		default:
			err = fmt.Errorf("unknown object kind %q", obj.Kind)
		}
		if err != nil {
			return fmt.Errorf("applying %s %q: %w", obj.Kind, obj.Name, err)
		}
	}
	return client.Reload(ctx)
}
