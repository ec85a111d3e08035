// Package domain contains interfaces that define contracts for the application.
package domain

import (
	"context"
	"time"
)

// FetchOptions narrows a capability fetch to a region and/or API version.
type FetchOptions struct {
	Region     string
	APIVersion string
}

// CapabilitySource defines the contract for fetching capability records for
// a named provider. Implementations must be safe for concurrent use and must
// return an empty slice (never an error) when the provider is unreachable or
// exposes no enumerable capabilities.
type CapabilitySource interface {
	// FetchCapabilities retrieves capability records for a provider,
	// optionally filtered to a region
	FetchCapabilities(ctx context.Context, providerID string, opts FetchOptions) []CapabilityRecord

	// ProviderExists reports whether the provider namespace is registered
	// at all in the given region's provider listing
	ProviderExists(ctx context.Context, providerID, region string) bool

	// ResourceTypeInRegion reports whether the owning provider exposes the
	// namespaced resource type with the region among its supported locations
	ResourceTypeInRegion(ctx context.Context, resourceType, region string) bool
}

// RegionResolver maps free-form region input to a canonical region name.
type RegionResolver interface {
	// ResolveRegion returns the canonical region identifier for the input,
	// or ErrRegionNotFound when nothing scores above zero
	ResolveRegion(ctx context.Context, input string) (string, error)

	// ListRegions returns the cached region catalog
	ListRegions(ctx context.Context) ([]Region, error)
}

// QuotaUsageFetcher retrieves region-scoped quota usage for an endpoint.
type QuotaUsageFetcher interface {
	// FetchQuotaUsage returns the quota metrics exposed by one endpoint in
	// one region
	FetchQuotaUsage(ctx context.Context, spec QuotaSpec, region string) ([]QuotaMetric, error)
}

// Store defines the contract for the on-disk cache.
type Store interface {
	// Get retrieves a payload if present and younger than ttl
	Get(key string, ttl time.Duration) ([]byte, bool)

	// Put writes a payload under key, stamping it with the current time
	Put(key string, payload []byte) error

	// IsValid reports whether key holds a payload younger than ttl
	IsValid(key string, ttl time.Duration) bool
}

// Logger defines the logging interface used throughout the application
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
