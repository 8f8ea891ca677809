package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// Snapshot is the outcome of one fan-out discovery pass. Version is a
// content hash over the qualified operation names, so an unchanged provider
// population yields an identical version.
type Snapshot struct {
	TenantID    contractx.TenantID
	Version     string
	Descriptors []contractx.CapabilityDescriptor
	TakenAt     time.Time

	// Errors holds per-provider failures; a failed provider never blocks
	// the others.
	Errors map[string]error
}

func (s Snapshot) Degraded() bool {
	return len(s.Errors) > 0
}

type providerResult struct {
	providerID  string
	descriptors []contractx.CapabilityDescriptor
	err         error
}

// DiscoverAll fans out across every registered provider and joins the
// results under a bounded overall timeout. ErrAllSourcesUnavailable is
// returned only when no provider yielded a descriptor set, live or cached.
func (e *Engine) DiscoverAll(ctx context.Context, tenant contractx.TenantID, force bool) (Snapshot, error) {
	providers := e.registry.All()

	fctx, cancel := context.WithTimeout(ctx, e.fanoutTimeout)
	defer cancel()

	results := make(chan providerResult, len(providers))
	for _, provider := range providers {
		go func(p contractx.CapabilityProvider) {
			descriptors, err := e.Discover(fctx, tenant, p.ID, force)
			results <- providerResult{providerID: p.ID, descriptors: descriptors, err: err}
		}(provider)
	}

	snapshot := Snapshot{
		TenantID: tenant,
		TakenAt:  e.now(),
		Errors:   make(map[string]error),
	}
	for range providers {
		res := <-results
		if res.err != nil {
			snapshot.Errors[res.providerID] = res.err
			continue
		}
		snapshot.Descriptors = append(snapshot.Descriptors, res.descriptors...)
	}

	sort.Slice(snapshot.Descriptors, func(i, j int) bool {
		return snapshot.Descriptors[i].QualifiedName() < snapshot.Descriptors[j].QualifiedName()
	})
	snapshot.Version = snapshotVersion(snapshot.Descriptors)

	if len(providers) > 0 && len(snapshot.Descriptors) == 0 && len(snapshot.Errors) == len(providers) {
		return snapshot, contractx.ErrAllSourcesUnavailable
	}
	return snapshot, nil
}

func snapshotVersion(descriptors []contractx.CapabilityDescriptor) string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.QualifiedName())
	}
	sum := sha256.Sum256([]byte(strings.Join(names, "\n")))
	return hex.EncodeToString(sum[:8])
}
