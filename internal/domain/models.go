// Package domain contains the core domain models for the regional analyzer.
// These models are subscription-agnostic and represent the business entities
// used by the capability, comparison and quota subsystems.
package domain

import (
	"fmt"
	"strings"
)

// Region represents a canonical Azure region.
// Name is the canonical identifier (lowercase, no spaces), DisplayName is
// the human-readable form returned by the locations listing.
type Region struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// MatchesExactly reports whether input equals the region name or display
// name, ignoring case.
func (r Region) MatchesExactly(input string) bool {
	return strings.EqualFold(r.Name, input) || strings.EqualFold(r.DisplayName, input)
}

// CanonicalizeLocation normalizes a location value for comparison.
// Location fields in capability records may carry either region codes
// ("swedencentral") or display names ("Sweden Central"), so both sides of
// any comparison must be lowered and stripped of non-alphanumerics.
func CanonicalizeLocation(location string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(location) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// CapabilityRecord represents one SKU/size/tier offered by a resource
// provider. Records are immutable once fetched; they are owned by the cache
// entry that produced them.
type CapabilityRecord struct {
	Name         string         `json:"name"`
	ResourceType string         `json:"resourceType"`
	Tier         string         `json:"tier,omitempty"`
	Size         string         `json:"size,omitempty"`
	Family       string         `json:"family,omitempty"`
	Locations    []string       `json:"locations"`
	LocationInfo []LocationInfo `json:"locationInfo,omitempty"`
	Capabilities []Capability   `json:"capabilities,omitempty"`
	Restrictions []Restriction  `json:"restrictions,omitempty"`
}

// Key returns a stable composite identifier so that multiple resource types
// sharing a provider do not collide in set comparisons.
func (c CapabilityRecord) Key() string {
	return fmt.Sprintf("%s|%s", c.ResourceType, c.Name)
}

// Restricted reports whether the record carries any restriction.
// Any non-empty restriction list is treated as blocking, without examining
// whether the restriction scope actually excludes the region being checked.
// This over-approximates; see the classifier for where it is applied.
func (c CapabilityRecord) Restricted() bool {
	return len(c.Restrictions) > 0
}

// AvailableInLocation reports whether the record lists the given region
// among its locations. Both sides are canonicalized before comparison.
func (c CapabilityRecord) AvailableInLocation(region string) bool {
	want := CanonicalizeLocation(region)
	for _, loc := range c.Locations {
		if CanonicalizeLocation(loc) == want {
			return true
		}
	}
	return false
}

// LocationInfo contains zone-level detail for one location of a capability.
type LocationInfo struct {
	Location string   `json:"location"`
	Zones    []string `json:"zones,omitempty"`
}

// Capability is a single name/value attribute of a SKU (vCPUs, memory, ...).
type Capability struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Restriction represents a provider-reported constraint preventing general
// availability of a capability in some scope.
type Restriction struct {
	Type            string          `json:"type"`
	Values          []string        `json:"values,omitempty"`
	ReasonCode      string          `json:"reasonCode"`
	RestrictionInfo RestrictionInfo `json:"restrictionInfo"`
}

// RestrictionInfo carries the locations and zones a restriction applies to.
type RestrictionInfo struct {
	Locations []string `json:"locations,omitempty"`
	Zones     []string `json:"zones,omitempty"`
}

// ComparisonStatus classifies a provider's cross-region comparison outcome.
type ComparisonStatus string

const (
	StatusNotAvailable     ComparisonStatus = "NOT_AVAILABLE"
	StatusTargetOnly       ComparisonStatus = "TARGET_ONLY"
	StatusSourceOnly       ComparisonStatus = "SOURCE_ONLY"
	StatusRestrictedBoth   ComparisonStatus = "RESTRICTED_BOTH"
	StatusSourceRestricted ComparisonStatus = "SOURCE_RESTRICTED"
	StatusTargetRestricted ComparisonStatus = "TARGET_RESTRICTED"
	StatusAvailableNoSKUs  ComparisonStatus = "AVAILABLE_NO_SKUS"
	StatusFullMatch        ComparisonStatus = "FULL_MATCH"
	StatusSourceExtended   ComparisonStatus = "SOURCE_EXTENDED"
	StatusTargetExtended   ComparisonStatus = "TARGET_EXTENDED"
)

// RegionSummary aggregates a provider's capability footprint in one region.
type RegionSummary struct {
	Region            string   `json:"region"`
	ProviderExists    bool     `json:"providerExists"`
	Restricted        bool     `json:"restricted"`
	ResourceTypeCount int      `json:"resourceTypeCount"`
	CapabilityCount   int      `json:"capabilityCount"`
	Capabilities      []string `json:"capabilities,omitempty"`
}

// ComparisonRecord is the comparison verdict for one provider across a
// (source, target) region pair. Status is derived from the two summaries and
// must always be recomputable from them.
type ComparisonRecord struct {
	Provider   string           `json:"provider"`
	Status     ComparisonStatus `json:"status"`
	Source     RegionSummary    `json:"sourceRegion"`
	Target     RegionSummary    `json:"targetRegion"`
	SourceOnly []string         `json:"sourceOnly,omitempty"`
	TargetOnly []string         `json:"targetOnly,omitempty"`
	Common     []string         `json:"common,omitempty"`
	Note       string           `json:"note,omitempty"`
}

// Availability verdict reasons.
const (
	ReasonSameRegion         = "same region"
	ReasonServiceUnavailable = "service type not available"
	ReasonRegionSupported    = "provider lookup confirms region support"
	ReasonSKUNotFound        = "SKU not found in target region"
	ReasonSKURestricted      = "SKU has restrictions"
)

// Verdict is the outcome of an availability check for a single
// (resourceType, SKU) tuple against a target region.
type Verdict struct {
	Available    bool          `json:"available"`
	Reason       string        `json:"reason"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
}

// QuotaSpec identifies one quota usage endpoint for a resource type.
// At most one spec per distinct (ResourceType, EndpointID) pair exists in a
// single run.
type QuotaSpec struct {
	ResourceType string `json:"resourceType"`
	EndpointID   string `json:"endpointId"`
}

// QuotaMetric is a region-scoped quota usage reading for a resource type.
type QuotaMetric struct {
	ResourceType string  `json:"resourceType"`
	Region       string  `json:"region"`
	MetricName   string  `json:"metricName"`
	Limit        float64 `json:"limit"`
	CurrentValue float64 `json:"currentValue"`
}

// ResourceTuple is one inventory record as delivered by the collectors.
// Quota and QuotaUsage are derived overlays; enrichment never mutates the
// identity fields.
type ResourceTuple struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	SKU        string       `json:"sku,omitempty"`
	Location   string       `json:"location,omitempty"`
	Quota      *QuotaMetric `json:"quota"`
	QuotaUsage *float64     `json:"quotaUsage"`
}

// ProviderNamespace extracts the provider namespace from a namespaced
// resource-type string ("Microsoft.Compute/virtualMachines" -> "Microsoft.Compute").
func ProviderNamespace(resourceType string) string {
	if i := strings.Index(resourceType, "/"); i > 0 {
		return resourceType[:i]
	}
	return resourceType
}
