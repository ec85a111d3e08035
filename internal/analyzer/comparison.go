// Package analyzer implements the cross-region comparison aggregator and
// the quota deduplication/enrichment pass over inventory snapshots.
package analyzer

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

// DefaultConcurrency bounds the comparison worker pool when callers pass a
// non-positive value.
const DefaultConcurrency = 8

// Comparator enumerates capability providers and produces one comparison
// record per provider per (source, target) region pair.
type Comparator struct {
	source      domain.CapabilitySource
	concurrency int
}

// NewComparator creates a Comparator over the given capability source.
func NewComparator(source domain.CapabilitySource, concurrency int) *Comparator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Comparator{source: source, concurrency: concurrency}
}

// CompareProviders queries both regions for every provider and classifies
// the outcome. The result always has exactly one record per requested
// provider, in input order; per-provider failures degrade to a placeholder
// record with a note rather than a missing row. Providers are processed
// concurrently through a bounded pool, each worker writing its own indexed
// slot, so assembly needs no shared mutable aggregation state.
func (c *Comparator) CompareProviders(ctx context.Context, sourceRegion, targetRegion string, providerIDs []string) []domain.ComparisonRecord {
	records := make([]domain.ComparisonRecord, len(providerIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, providerID := range providerIDs {
		g.Go(func() error {
			records[i] = c.compareProvider(gctx, sourceRegion, targetRegion, providerID)
			return nil
		})
	}
	// Workers never return errors; degradations are encoded in the records.
	g.Wait()

	return records
}

// compareProvider builds the comparison record for a single provider.
func (c *Comparator) compareProvider(ctx context.Context, sourceRegion, targetRegion, providerID string) (record domain.ComparisonRecord) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Comparison for %s failed: %v", providerID, r)
			record = domain.ComparisonRecord{
				Provider: providerID,
				Status:   domain.StatusNotAvailable,
				Source:   domain.RegionSummary{Region: sourceRegion},
				Target:   domain.RegionSummary{Region: targetRegion},
				Note:     fmt.Sprintf("comparison assembly failed: %v", r),
			}
		}
	}()

	source := c.summarize(ctx, providerID, sourceRegion)
	target := c.summarize(ctx, providerID, targetRegion)

	sourceOnly, targetOnly, common := diffCapabilities(source.Capabilities, target.Capabilities)

	return domain.ComparisonRecord{
		Provider:   providerID,
		Status:     ClassifyStatus(source, target),
		Source:     source,
		Target:     target,
		SourceOnly: sourceOnly,
		TargetOnly: targetOnly,
		Common:     common,
	}
}

// summarize fetches one provider's capability footprint in one region.
// The capability count covers deployable records only; when the provider
// offers records but every one is restricted, the summary carries a
// restricted note instead of a count.
func (c *Comparator) summarize(ctx context.Context, providerID, region string) domain.RegionSummary {
	summary := domain.RegionSummary{
		Region:         region,
		ProviderExists: c.source.ProviderExists(ctx, providerID, ""),
	}
	if !summary.ProviderExists {
		return summary
	}

	all := c.source.FetchCapabilities(ctx, providerID, domain.FetchOptions{Region: region})

	types := make(map[string]bool)
	keys := make([]string, 0, len(all))
	for _, r := range all {
		if r.Restricted() {
			continue
		}
		types[r.ResourceType] = true
		keys = append(keys, r.Key())
	}
	sort.Strings(keys)

	summary.ResourceTypeCount = len(types)
	summary.CapabilityCount = len(keys)
	summary.Capabilities = keys
	summary.Restricted = len(all) > 0 && len(keys) == 0
	return summary
}

// ClassifyStatus derives the comparison status from the two region
// summaries. Exactly one status applies for any input combination; the
// first matching rule wins.
func ClassifyStatus(source, target domain.RegionSummary) domain.ComparisonStatus {
	switch {
	case !source.ProviderExists && !target.ProviderExists:
		return domain.StatusNotAvailable
	case !source.ProviderExists:
		return domain.StatusTargetOnly
	case !target.ProviderExists:
		return domain.StatusSourceOnly
	case source.CapabilityCount == 0 && target.CapabilityCount == 0 && source.Restricted && target.Restricted:
		return domain.StatusRestrictedBoth
	case source.CapabilityCount == 0 && source.Restricted:
		return domain.StatusSourceRestricted
	case target.CapabilityCount == 0 && target.Restricted:
		return domain.StatusTargetRestricted
	case source.CapabilityCount == 0 && target.CapabilityCount == 0:
		return domain.StatusAvailableNoSKUs
	case source.CapabilityCount == target.CapabilityCount:
		return domain.StatusFullMatch
	case source.CapabilityCount > target.CapabilityCount:
		return domain.StatusSourceExtended
	default:
		return domain.StatusTargetExtended
	}
}

// diffCapabilities computes the ordered set differences between two
// capability key sets.
func diffCapabilities(source, target []string) (sourceOnly, targetOnly, common []string) {
	inTarget := make(map[string]bool, len(target))
	for _, k := range target {
		inTarget[k] = true
	}
	inSource := make(map[string]bool, len(source))
	for _, k := range source {
		inSource[k] = true
	}

	for _, k := range source {
		if inTarget[k] {
			common = append(common, k)
		} else {
			sourceOnly = append(sourceOnly, k)
		}
	}
	for _, k := range target {
		if !inSource[k] {
			targetOnly = append(targetOnly, k)
		}
	}

	sort.Strings(sourceOnly)
	sort.Strings(targetOnly)
	sort.Strings(common)
	return sourceOnly, targetOnly, common
}
