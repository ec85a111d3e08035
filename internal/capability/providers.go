// Package capability contains the provider-listing lookup used for
// existence and service-level checks.
package capability

import (
	"context"
	"net/url"
	"strings"

	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

const (
	providersCacheKey   = "provider-listing"
	providersAPIVersion = "2021-04-01"
)

// providerEntry is one registered provider namespace from the subscription's
// provider listing.
type providerEntry struct {
	Namespace     string                 `json:"namespace"`
	ResourceTypes []providerResourceType `json:"resourceTypes"`
}

type providerResourceType struct {
	ResourceType string   `json:"resourceType"`
	Locations    []string `json:"locations"`
	APIVersions  []string `json:"apiVersions"`
}

type providersResponse struct {
	Value []providerEntry `json:"value"`
}

// providerListing returns the subscription's provider namespaces, cached on
// disk for the fetcher's TTL. Failures degrade to an empty listing.
func (f *Fetcher) providerListing(ctx context.Context) []providerEntry {
	var cached []providerEntry
	if f.store.GetJSON(providersCacheKey, f.ttl, &cached) {
		return cached
	}

	query := url.Values{}
	query.Set("api-version", providersAPIVersion)

	var resp providersResponse
	if err := f.client.GetJSON(ctx, f.client.SubscriptionPath("/providers"), query, &resp); err != nil {
		logging.Warn("Provider listing fetch failed: %v", err)
		resp.Value = []providerEntry{}
	}

	if err := f.store.PutJSON(providersCacheKey, resp.Value); err != nil {
		logging.Warn("Failed to cache provider listing: %v", err)
	}
	return resp.Value
}

// ProviderExists reports whether the provider namespace is registered and
// supports the given region through at least one of its resource types.
// With an empty region it checks registration only.
func (f *Fetcher) ProviderExists(ctx context.Context, providerID, region string) bool {
	for _, entry := range f.providerListing(ctx) {
		if !strings.EqualFold(entry.Namespace, providerID) {
			continue
		}
		if region == "" {
			return true
		}
		want := domain.CanonicalizeLocation(region)
		for _, rt := range entry.ResourceTypes {
			for _, loc := range rt.Locations {
				if domain.CanonicalizeLocation(loc) == want {
					return true
				}
			}
		}
		return false
	}
	return false
}

// ResourceTypeInRegion reports whether the owning provider exposes the
// namespaced resource type with region among its supported locations.
func (f *Fetcher) ResourceTypeInRegion(ctx context.Context, resourceType, region string) bool {
	namespace := domain.ProviderNamespace(resourceType)
	typeName := resourceType
	if i := strings.Index(resourceType, "/"); i > 0 {
		typeName = resourceType[i+1:]
	}

	want := domain.CanonicalizeLocation(region)
	for _, entry := range f.providerListing(ctx) {
		if !strings.EqualFold(entry.Namespace, namespace) {
			continue
		}
		for _, rt := range entry.ResourceTypes {
			if !strings.EqualFold(rt.ResourceType, typeName) {
				continue
			}
			// Global resource types list no locations at all
			if len(rt.Locations) == 0 {
				return true
			}
			for _, loc := range rt.Locations {
				if domain.CanonicalizeLocation(loc) == want {
					return true
				}
			}
		}
		return false
	}
	return false
}

// ProviderNamespaces returns all registered namespaces, for full-enumeration
// comparisons.
func (f *Fetcher) ProviderNamespaces(ctx context.Context) []string {
	listing := f.providerListing(ctx)
	namespaces := make([]string, 0, len(listing))
	for _, entry := range listing {
		namespaces = append(namespaces, entry.Namespace)
	}
	return namespaces
}
