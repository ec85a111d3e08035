// Package analyzer contains quota deduplication and inventory enrichment.
package analyzer

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

var (
	quotaEndpointsMu sync.RWMutex

	// quotaEndpoints maps a lowercase namespaced resource type to the usage
	// endpoints that carry its quota metrics. Types with no mapping are
	// skipped silently; that is expected for most types, not an error.
	quotaEndpoints = map[string][]string{
		"microsoft.compute/virtualmachines":          {"Microsoft.Compute/cores", "Microsoft.Compute/virtualMachines"},
		"microsoft.compute/virtualmachinescalesets":  {"Microsoft.Compute/virtualMachineScaleSets"},
		"microsoft.compute/disks":                    {"Microsoft.Compute/PremiumDiskCount"},
		"microsoft.compute/availabilitysets":         {"Microsoft.Compute/availabilitySets"},
		"microsoft.network/virtualnetworks":          {"Microsoft.Network/VirtualNetworks"},
		"microsoft.network/publicipaddresses":        {"Microsoft.Network/PublicIPAddresses"},
		"microsoft.network/networksecuritygroups":    {"Microsoft.Network/NetworkSecurityGroups"},
		"microsoft.network/loadbalancers":            {"Microsoft.Network/LoadBalancers"},
		"microsoft.network/networkinterfaces":        {"Microsoft.Network/NetworkInterfaces"},
		"microsoft.storage/storageaccounts":          {"Microsoft.Storage/StorageAccounts"},
	}
)

// RegisterQuotaEndpoint maps a resource type to an additional usage
// endpoint. Exposed so new types are supported by registration.
func RegisterQuotaEndpoint(resourceType, endpointID string) {
	quotaEndpointsMu.Lock()
	defer quotaEndpointsMu.Unlock()
	key := strings.ToLower(resourceType)
	quotaEndpoints[key] = append(quotaEndpoints[key], endpointID)
}

func lookupQuotaEndpoints(resourceType string) []string {
	quotaEndpointsMu.RLock()
	defer quotaEndpointsMu.RUnlock()
	return quotaEndpoints[strings.ToLower(resourceType)]
}

// QuotaEnricher joins region-scoped quota usage onto inventory tuples.
type QuotaEnricher struct {
	fetcher     domain.QuotaUsageFetcher
	concurrency int
}

// NewQuotaEnricher creates an enricher over the given usage fetcher.
func NewQuotaEnricher(fetcher domain.QuotaUsageFetcher, concurrency int) *QuotaEnricher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &QuotaEnricher{fetcher: fetcher, concurrency: concurrency}
}

// BuildQuotaSpecs extracts the deduplicated (resourceType, endpoint) pairs
// present in an inventory. However many tuples share a type, each pair
// appears exactly once, in first-seen order.
func BuildQuotaSpecs(tuples []domain.ResourceTuple) []domain.QuotaSpec {
	seen := make(map[domain.QuotaSpec]bool)
	var specs []domain.QuotaSpec

	for _, tuple := range tuples {
		resourceType := strings.ToLower(tuple.Type)
		for _, endpoint := range lookupQuotaEndpoints(resourceType) {
			spec := domain.QuotaSpec{ResourceType: resourceType, EndpointID: endpoint}
			if seen[spec] {
				continue
			}
			seen[spec] = true
			specs = append(specs, spec)
		}
	}
	return specs
}

// EnrichWithQuota fetches quota usage once per unique (type, endpoint) pair
// and left-joins the results onto the tuples. The returned slice has the
// same shape and order as the input; tuples with no matching quota keep nil
// quota fields rather than being dropped.
func (q *QuotaEnricher) EnrichWithQuota(ctx context.Context, tuples []domain.ResourceTuple, region string) []domain.ResourceTuple {
	specs := BuildQuotaSpecs(tuples)
	logging.Debug("Fetching quota usage for %d unique endpoint pairs in %s", len(specs), region)

	// Each worker fills its own slot; no endpoint is queried more than once
	// per region per run.
	results := make([][]domain.QuotaMetric, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			metrics, err := q.fetcher.FetchQuotaUsage(gctx, spec, region)
			if err != nil {
				// Dropped, not fatal: the tuple keeps nil quota fields.
				logging.Debug("Quota fetch dropped for %s (%s): %v", spec.ResourceType, spec.EndpointID, err)
				return nil
			}
			results[i] = metrics
			return nil
		})
	}
	g.Wait()

	// Index each resource type to its first matching metric, in spec order.
	index := make(map[string]domain.QuotaMetric)
	for i, spec := range specs {
		for _, metric := range results[i] {
			if _, ok := index[spec.ResourceType]; !ok {
				index[spec.ResourceType] = metric
			}
		}
	}

	enriched := make([]domain.ResourceTuple, len(tuples))
	for i, tuple := range tuples {
		if metric, ok := index[strings.ToLower(tuple.Type)]; ok {
			m := metric
			usage := m.CurrentValue
			tuple.Quota = &m
			tuple.QuotaUsage = &usage
		} else {
			tuple.Quota = nil
			tuple.QuotaUsage = nil
		}
		enriched[i] = tuple
	}
	return enriched
}
