package analyzer

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bschooled/azure-regional-analysis/internal/domain"
)

// stubSource serves canned capability sets keyed by provider and region.
type stubSource struct {
	providers  map[string]bool                      // registered namespaces
	capability map[string][]domain.CapabilityRecord // keyed by "provider|region"
	fetchCalls atomic.Int64
}

func (s *stubSource) FetchCapabilities(_ context.Context, providerID string, opts domain.FetchOptions) []domain.CapabilityRecord {
	s.fetchCalls.Add(1)
	return s.capability[providerID+"|"+opts.Region]
}

func (s *stubSource) ProviderExists(_ context.Context, providerID, _ string) bool {
	return s.providers[providerID]
}

func (s *stubSource) ResourceTypeInRegion(context.Context, string, string) bool {
	return true
}

func record(name string, restricted bool) domain.CapabilityRecord {
	r := domain.CapabilityRecord{Name: name, ResourceType: "virtualMachines"}
	if restricted {
		r.Restrictions = []domain.Restriction{{Type: "Location", ReasonCode: "NotAvailableForSubscription"}}
	}
	return r
}

func records(count int, restricted bool) []domain.CapabilityRecord {
	out := make([]domain.CapabilityRecord, count)
	for i := range out {
		out[i] = record(fmt.Sprintf("Standard_D%ds_v5", i+2), restricted)
	}
	return out
}

func TestCompareProvidersFullMatch(t *testing.T) {
	same := records(12, false)
	source := &stubSource{
		providers: map[string]bool{"Microsoft.Compute": true},
		capability: map[string][]domain.CapabilityRecord{
			"Microsoft.Compute|centralus":     same,
			"Microsoft.Compute|swedencentral": same,
		},
	}

	results := NewComparator(source, 4).CompareProviders(context.Background(),
		"centralus", "swedencentral", []string{"Microsoft.Compute"})

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, domain.StatusFullMatch, r.Status)
	assert.Equal(t, 12, r.Source.CapabilityCount)
	assert.Equal(t, 12, r.Target.CapabilityCount)
	assert.Empty(t, r.SourceOnly)
	assert.Empty(t, r.TargetOnly)
	assert.Len(t, r.Common, 12)
}

func TestCompareProvidersPreservesInputOrder(t *testing.T) {
	source := &stubSource{
		providers: map[string]bool{"Microsoft.Compute": true, "Microsoft.Network": true},
	}
	ids := []string{"Microsoft.Network", "Microsoft.Fabric", "Microsoft.Compute"}

	results := NewComparator(source, 2).CompareProviders(context.Background(),
		"centralus", "swedencentral", ids)

	require.Len(t, results, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, results[i].Provider, "record %d out of order", i)
	}
}

func TestCompareProvidersCapabilityDiff(t *testing.T) {
	source := &stubSource{
		providers: map[string]bool{"Microsoft.Compute": true},
		capability: map[string][]domain.CapabilityRecord{
			"Microsoft.Compute|centralus": {
				record("Standard_B2ms", false),
				record("Standard_D4s_v5", false),
			},
			"Microsoft.Compute|swedencentral": {
				record("Standard_B2ms", false),
				record("Standard_E8s_v5", false),
				record("Standard_F16s_v2", false),
			},
		},
	}

	results := NewComparator(source, 1).CompareProviders(context.Background(),
		"centralus", "swedencentral", []string{"Microsoft.Compute"})

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, domain.StatusTargetExtended, r.Status)
	assert.Equal(t, []string{"virtualMachines|Standard_D4s_v5"}, r.SourceOnly)
	assert.Equal(t, []string{"virtualMachines|Standard_E8s_v5", "virtualMachines|Standard_F16s_v2"}, r.TargetOnly)
	assert.Equal(t, []string{"virtualMachines|Standard_B2ms"}, r.Common)
}

func TestCompareProvidersRestrictedSummaries(t *testing.T) {
	source := &stubSource{
		providers: map[string]bool{"Microsoft.Compute": true},
		capability: map[string][]domain.CapabilityRecord{
			"Microsoft.Compute|centralus":     records(3, true),
			"Microsoft.Compute|swedencentral": records(3, false),
		},
	}

	results := NewComparator(source, 1).CompareProviders(context.Background(),
		"centralus", "swedencentral", []string{"Microsoft.Compute"})

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, domain.StatusSourceRestricted, r.Status)
	assert.True(t, r.Source.Restricted)
	assert.Zero(t, r.Source.CapabilityCount, "restricted records are not deployable capabilities")
	assert.False(t, r.Target.Restricted)
	assert.Equal(t, 3, r.Target.CapabilityCount)
}

// TestClassifyStatusTotality drives the classifier over the cross-product of
// summary shapes and checks that exactly one known status comes back for
// every combination.
func TestClassifyStatusTotality(t *testing.T) {
	known := map[domain.ComparisonStatus]bool{
		domain.StatusNotAvailable:     true,
		domain.StatusTargetOnly:       true,
		domain.StatusSourceOnly:       true,
		domain.StatusRestrictedBoth:   true,
		domain.StatusSourceRestricted: true,
		domain.StatusTargetRestricted: true,
		domain.StatusAvailableNoSKUs:  true,
		domain.StatusFullMatch:        true,
		domain.StatusSourceExtended:   true,
		domain.StatusTargetExtended:   true,
	}

	summaries := func(region string) []domain.RegionSummary {
		var out []domain.RegionSummary
		for _, exists := range []bool{false, true} {
			for _, count := range []int{0, 1, 5} {
				for _, restricted := range []bool{false, true} {
					if !exists && (count > 0 || restricted) {
						continue
					}
					if count > 0 && restricted {
						// A summary is restricted only when nothing is deployable
						continue
					}
					out = append(out, domain.RegionSummary{
						Region:          region,
						ProviderExists:  exists,
						CapabilityCount: count,
						Restricted:      restricted,
					})
				}
			}
		}
		return out
	}

	for _, source := range summaries("centralus") {
		for _, target := range summaries("swedencentral") {
			status := ClassifyStatus(source, target)
			assert.True(t, known[status],
				"unknown status %q for source=%+v target=%+v", status, source, target)
		}
	}
}

func TestClassifyStatusRules(t *testing.T) {
	exists := func(count int, restricted bool) domain.RegionSummary {
		return domain.RegionSummary{ProviderExists: true, CapabilityCount: count, Restricted: restricted}
	}
	missing := domain.RegionSummary{}

	tests := []struct {
		name   string
		source domain.RegionSummary
		target domain.RegionSummary
		want   domain.ComparisonStatus
	}{
		{"neither exists", missing, missing, domain.StatusNotAvailable},
		{"target only", missing, exists(3, false), domain.StatusTargetOnly},
		{"source only", exists(3, false), missing, domain.StatusSourceOnly},
		{"both restricted", exists(0, true), exists(0, true), domain.StatusRestrictedBoth},
		{"source restricted", exists(0, true), exists(3, false), domain.StatusSourceRestricted},
		{"target restricted", exists(3, false), exists(0, true), domain.StatusTargetRestricted},
		{"no skus either side", exists(0, false), exists(0, false), domain.StatusAvailableNoSKUs},
		{"equal counts", exists(5, false), exists(5, false), domain.StatusFullMatch},
		{"source richer", exists(7, false), exists(5, false), domain.StatusSourceExtended},
		{"target richer", exists(5, false), exists(7, false), domain.StatusTargetExtended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.source, tt.target))
		})
	}
}

// panicSource blows up on capability fetch to exercise degraded assembly.
type panicSource struct{}

func (panicSource) FetchCapabilities(context.Context, string, domain.FetchOptions) []domain.CapabilityRecord {
	panic("listing decode blew up")
}

func (panicSource) ProviderExists(context.Context, string, string) bool { return true }

func (panicSource) ResourceTypeInRegion(context.Context, string, string) bool { return true }

func TestCompareProvidersDegradesOnPanic(t *testing.T) {
	ids := []string{"Microsoft.Compute", "Microsoft.Network"}

	results := NewComparator(panicSource{}, 2).CompareProviders(context.Background(),
		"centralus", "swedencentral", ids)

	// One record per requested provider always, never a missing row
	require.Len(t, results, len(ids))
	for i, r := range results {
		assert.Equal(t, ids[i], r.Provider)
		assert.Equal(t, domain.StatusNotAvailable, r.Status)
		assert.NotEmpty(t, r.Note, "degraded record %d must carry a note", i)
		assert.Equal(t, "centralus", r.Source.Region)
		assert.Equal(t, "swedencentral", r.Target.Region)
	}
}

func TestSummarizeSkipsFetchForMissingProvider(t *testing.T) {
	source := &stubSource{providers: map[string]bool{}}

	results := NewComparator(source, 1).CompareProviders(context.Background(),
		"centralus", "swedencentral", []string{"Microsoft.Fabric"})

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusNotAvailable, results[0].Status)
	assert.Zero(t, source.fetchCalls.Load(), "missing providers must not trigger capability fetches")
}
