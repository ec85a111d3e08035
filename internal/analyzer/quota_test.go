package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bschooled/azure-regional-analysis/internal/domain"
)

// stubQuotaFetcher records every spec it is asked for and serves canned
// metrics keyed by endpoint id.
type stubQuotaFetcher struct {
	mu      sync.Mutex
	calls   []domain.QuotaSpec
	metrics map[string][]domain.QuotaMetric
	err     error
}

func (s *stubQuotaFetcher) FetchQuotaUsage(_ context.Context, spec domain.QuotaSpec, region string) ([]domain.QuotaMetric, error) {
	s.mu.Lock()
	s.calls = append(s.calls, spec)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.metrics[spec.EndpointID], nil
}

func vmTuple(name string) domain.ResourceTuple {
	return domain.ResourceTuple{
		Name:     name,
		Type:     "Microsoft.Compute/virtualMachines",
		SKU:      "Standard_B2ms",
		Location: "centralus",
	}
}

func TestBuildQuotaSpecsDeduplicates(t *testing.T) {
	tuples := []domain.ResourceTuple{
		vmTuple("vm-1"),
		vmTuple("vm-2"),
		vmTuple("vm-3"),
		{Name: "vnet-1", Type: "Microsoft.Network/virtualNetworks"},
		{Name: "vm-4", Type: "microsoft.compute/VIRTUALMACHINES"}, // case variant
	}

	specs := BuildQuotaSpecs(tuples)

	// virtualMachines maps to two endpoints, virtualNetworks to one; the
	// five tuples must not multiply that
	require.Len(t, specs, 3)
	assert.Equal(t, domain.QuotaSpec{
		ResourceType: "microsoft.compute/virtualmachines",
		EndpointID:   "Microsoft.Compute/cores",
	}, specs[0], "first-seen order must be preserved")

	seen := make(map[domain.QuotaSpec]int)
	for _, spec := range specs {
		seen[spec]++
	}
	for spec, n := range seen {
		assert.Equal(t, 1, n, "spec %+v duplicated", spec)
	}
}

func TestBuildQuotaSpecsSkipsUnmappedTypes(t *testing.T) {
	tuples := []domain.ResourceTuple{
		{Name: "kv-1", Type: "Microsoft.KeyVault/vaults"},
		{Name: "site-1", Type: "Microsoft.Web/sites"},
	}
	assert.Empty(t, BuildQuotaSpecs(tuples))
}

func TestEnrichWithQuotaFetchesOncePerSpec(t *testing.T) {
	fetcher := &stubQuotaFetcher{
		metrics: map[string][]domain.QuotaMetric{
			"Microsoft.Compute/cores": {
				{ResourceType: "microsoft.compute/virtualmachines", Region: "centralus", MetricName: "cores", Limit: 100, CurrentValue: 22},
			},
		},
	}
	enricher := NewQuotaEnricher(fetcher, 4)

	tuples := []domain.ResourceTuple{vmTuple("vm-1"), vmTuple("vm-2"), vmTuple("vm-3")}
	enriched := enricher.EnrichWithQuota(context.Background(), tuples, "centralus")

	// Three tuples share one type; its two endpoints are fetched once each
	assert.Len(t, fetcher.calls, 2)

	require.Len(t, enriched, 3)
	for i, tuple := range enriched {
		require.NotNil(t, tuple.Quota, "tuple %d missing quota", i)
		assert.Equal(t, "cores", tuple.Quota.MetricName)
		assert.Equal(t, float64(100), tuple.Quota.Limit)
		require.NotNil(t, tuple.QuotaUsage)
		assert.Equal(t, float64(22), *tuple.QuotaUsage)
	}
}

func TestEnrichWithQuotaLeftJoin(t *testing.T) {
	fetcher := &stubQuotaFetcher{
		metrics: map[string][]domain.QuotaMetric{
			"Microsoft.Compute/cores": {
				{ResourceType: "microsoft.compute/virtualmachines", MetricName: "cores", Limit: 100, CurrentValue: 10},
			},
		},
	}
	enricher := NewQuotaEnricher(fetcher, 1)

	tuples := []domain.ResourceTuple{
		vmTuple("vm-1"),
		{Name: "kv-1", Type: "Microsoft.KeyVault/vaults"},
		vmTuple("vm-2"),
	}
	enriched := enricher.EnrichWithQuota(context.Background(), tuples, "centralus")

	// Same shape and order as the input, unmatched tuples kept with nil
	// quota fields
	require.Len(t, enriched, 3)
	assert.Equal(t, "vm-1", enriched[0].Name)
	assert.Equal(t, "kv-1", enriched[1].Name)
	assert.Equal(t, "vm-2", enriched[2].Name)

	assert.NotNil(t, enriched[0].Quota)
	assert.Nil(t, enriched[1].Quota)
	assert.Nil(t, enriched[1].QuotaUsage)
	assert.NotNil(t, enriched[2].Quota)
}

func TestEnrichWithQuotaDropsFailedFetches(t *testing.T) {
	fetcher := &stubQuotaFetcher{err: errors.New("throttled")}
	enricher := NewQuotaEnricher(fetcher, 2)

	tuples := []domain.ResourceTuple{vmTuple("vm-1")}
	enriched := enricher.EnrichWithQuota(context.Background(), tuples, "centralus")

	require.Len(t, enriched, 1)
	assert.Nil(t, enriched[0].Quota, "failed fetches must degrade to nil quota, not drop the tuple")
}

func TestRegisterQuotaEndpoint(t *testing.T) {
	RegisterQuotaEndpoint("Microsoft.Test/widgets", "Microsoft.Test/widgetCount")

	specs := BuildQuotaSpecs([]domain.ResourceTuple{
		{Name: "w-1", Type: "microsoft.test/widgets"},
	})
	require.Len(t, specs, 1)
	assert.Equal(t, "Microsoft.Test/widgetCount", specs[0].EndpointID)
}
