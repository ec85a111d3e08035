// Package analyzer contains the Engine facade wiring the cache, ARM client,
// capability fetcher, classifier, comparator and quota enricher together for
// the CLI and Lambda entry points.
package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/bschooled/azure-regional-analysis/internal/azure"
	"github.com/bschooled/azure-regional-analysis/internal/cache"
	"github.com/bschooled/azure-regional-analysis/internal/capability"
	"github.com/bschooled/azure-regional-analysis/internal/config"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
)

// Engine bundles the regional analysis subsystems behind one construction
// point. All region inputs accepted by Engine methods are raw strings;
// canonicalization happens exactly once per run through ResolveRegion and
// the canonical names are what every downstream lookup uses.
type Engine struct {
	store    *cache.Store
	client   *azure.Client
	catalog  *azure.RegionCatalog
	fetcher  *capability.Fetcher
	enricher *QuotaEnricher

	concurrency int
}

// NewEngine wires an Engine from application configuration.
func NewEngine(cfg *config.Config) (*Engine, error) {
	store, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}

	client := azure.NewClient(cfg)
	fetcher := capability.NewFetcher(client, store, cfg.Cache.TTL)

	return &Engine{
		store:       store,
		client:      client,
		catalog:     azure.NewRegionCatalog(client, store, cfg.Cache.TTL),
		fetcher:     fetcher,
		enricher:    NewQuotaEnricher(azure.NewUsageFetcher(client), cfg.Analysis.Concurrency),
		concurrency: cfg.Analysis.Concurrency,
	}, nil
}

// ResolveRegion canonicalizes free-form region input.
func (e *Engine) ResolveRegion(ctx context.Context, input string) (string, error) {
	return e.catalog.ResolveRegion(ctx, input)
}

// ListRegions returns the region catalog.
func (e *Engine) ListRegions(ctx context.Context) ([]domain.Region, error) {
	return e.catalog.ListRegions(ctx)
}

// Catalog exposes the region catalog for confirmation-hook overrides.
func (e *Engine) Catalog() *azure.RegionCatalog {
	return e.catalog
}

// CheckAvailability classifies one (resourceType, sku) tuple against the
// target region. Both regions must already be canonical.
func (e *Engine) CheckAvailability(ctx context.Context, resourceType, sku, sourceRegion, targetRegion string) domain.Verdict {
	classifier := capability.NewClassifier(e.fetcher, sourceRegion)
	return classifier.CheckAvailability(ctx, resourceType, sku, targetRegion)
}

// CompareProviders produces one comparison record per provider across the
// region pair. Both regions must already be canonical.
func (e *Engine) CompareProviders(ctx context.Context, sourceRegion, targetRegion string, providerIDs []string) []domain.ComparisonRecord {
	return NewComparator(e.fetcher, e.concurrency).CompareProviders(ctx, sourceRegion, targetRegion, providerIDs)
}

// AllProviders returns every registered provider namespace, for full
// enumeration comparisons.
func (e *Engine) AllProviders(ctx context.Context) []string {
	namespaces := e.fetcher.ProviderNamespaces(ctx)
	sort.Strings(namespaces)
	return namespaces
}

// EnrichWithQuota joins quota usage onto inventory tuples.
func (e *Engine) EnrichWithQuota(ctx context.Context, tuples []domain.ResourceTuple, region string) []domain.ResourceTuple {
	return e.enricher.EnrichWithQuota(ctx, tuples, region)
}

// CacheStats returns the run's cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.store.GetStats()
}

// ClearCache removes every on-disk cache entry.
func (e *Engine) ClearCache() error {
	return e.store.Clear()
}

// ProvidersFromInventory derives the distinct provider namespaces present
// in an inventory, in sorted order.
func ProvidersFromInventory(tuples []domain.ResourceTuple) []string {
	seen := make(map[string]bool)
	var providers []string
	for _, t := range tuples {
		ns := domain.ProviderNamespace(t.Type)
		if ns == "" {
			continue
		}
		key := strings.ToLower(ns)
		if seen[key] {
			continue
		}
		seen[key] = true
		providers = append(providers, ns)
	}
	sort.Strings(providers)
	return providers
}
