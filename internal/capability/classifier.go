// Package capability contains the availability classifier.
package capability

import (
	"context"
	"strings"

	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

// Classifier decides whether a (resourceType, SKU) tuple is deployable in a
// target region. It depends only on the CapabilitySource contract so tests
// can drive it with canned capability sets.
type Classifier struct {
	source       domain.CapabilitySource
	sourceRegion string
}

// NewClassifier creates a classifier for tuples inventoried in sourceRegion.
func NewClassifier(source domain.CapabilitySource, sourceRegion string) *Classifier {
	return &Classifier{source: source, sourceRegion: sourceRegion}
}

// CheckAvailability runs the decision procedure for one tuple. sku may be
// empty, in which case only the service-level check applies.
//
// When source and target region are identical every tuple is trivially
// deployable; this is an identity short-circuit, not an API determination.
func (c *Classifier) CheckAvailability(ctx context.Context, resourceType, sku, targetRegion string) domain.Verdict {
	if c.sourceRegion != "" &&
		domain.CanonicalizeLocation(c.sourceRegion) == domain.CanonicalizeLocation(targetRegion) {
		return domain.Verdict{Available: true, Reason: domain.ReasonSameRegion}
	}

	if !c.source.ResourceTypeInRegion(ctx, resourceType, targetRegion) {
		logging.Debug("Service-level check failed for %s in %s", resourceType, targetRegion)
		return domain.Verdict{Available: false, Reason: domain.ReasonServiceUnavailable}
	}

	if sku == "" {
		return domain.Verdict{Available: true, Reason: domain.ReasonRegionSupported}
	}

	records := c.source.FetchCapabilities(ctx, domain.ProviderNamespace(resourceType), domain.FetchOptions{
		Region: targetRegion,
	})

	record, found := findSKU(records, sku)
	if !found {
		return domain.Verdict{Available: false, Reason: domain.ReasonSKUNotFound}
	}

	// Any restriction blocks, whether or not its scope actually excludes the
	// target region. Known over-approximation; restrictions are attached so
	// callers can inspect the scope themselves.
	if record.Restricted() {
		return domain.Verdict{
			Available:    false,
			Reason:       domain.ReasonSKURestricted,
			Restrictions: record.Restrictions,
		}
	}

	return domain.Verdict{Available: true, Reason: domain.ReasonRegionSupported}
}

// findSKU looks a SKU identifier up in a capability set. Comparison ignores
// case and the "Standard_" prefix, which inventories include inconsistently.
func findSKU(records []domain.CapabilityRecord, sku string) (domain.CapabilityRecord, bool) {
	want := normalizeSKU(sku)
	for _, r := range records {
		if normalizeSKU(r.Name) == want {
			return r, true
		}
	}
	return domain.CapabilityRecord{}, false
}

func normalizeSKU(name string) string {
	return strings.TrimPrefix(strings.ToLower(name), "standard_")
}
