// Package capability implements capability-record retrieval for Azure
// resource providers and the availability classification built on top of it.
//
// Records come from three places, tried in order: the on-disk cache, a
// specialized extractor registered for the provider, or the provider's
// generic SKU listing probed across several API versions. Fetch failures
// always degrade to an empty record set; callers cannot distinguish "no
// capabilities" from "provider unreachable" except through the logs.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/bschooled/azure-regional-analysis/internal/azure"
	"github.com/bschooled/azure-regional-analysis/internal/cache"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

// skuAPIVersions are probed in descending preference order when no explicit
// API version is requested and no specialized extractor applies.
var skuAPIVersions = []string{
	"2024-02-01",
	"2021-07-01",
	"2019-04-01",
	"2017-09-01",
}

// Fetcher retrieves capability records for named providers, satisfying
// domain.CapabilitySource. Safe for concurrent use as long as no two
// concurrent calls target the same (provider, region) cache key.
type Fetcher struct {
	client *azure.Client
	store  *cache.Store
	ttl    time.Duration
}

// NewFetcher creates a Fetcher backed by the given ARM client and cache.
func NewFetcher(client *azure.Client, store *cache.Store, ttl time.Duration) *Fetcher {
	return &Fetcher{client: client, store: store, ttl: ttl}
}

// cacheKey derives the canonical, subscription-agnostic cache key for a
// (provider, region?) pair.
func cacheKey(providerID, region string) string {
	key := providerID
	if region != "" {
		key += "_" + region
	}
	return cache.NormalizeKey(key)
}

// FetchCapabilities returns the capability records for a provider, filtered
// to opts.Region when set. The result (including an empty one) is always
// written to cache so repeated failures do not re-trigger network calls
// within the TTL window.
func (f *Fetcher) FetchCapabilities(ctx context.Context, providerID string, opts domain.FetchOptions) []domain.CapabilityRecord {
	key := cacheKey(providerID, opts.Region)

	var cached []domain.CapabilityRecord
	if f.store.GetJSON(key, f.ttl, &cached) {
		logging.Debug("Cache hit for %s capabilities (%d records)", providerID, len(cached))
		return cached
	}

	records, err := f.fetch(ctx, providerID, opts)
	if err != nil {
		logging.Warn("Capability fetch degraded to empty set: %v",
			domain.NewProviderFetchError(providerID, opts.Region, "fetchCapabilities", err))
		records = nil
	}

	if opts.Region != "" {
		records = filterByLocation(records, opts.Region)
	}
	if records == nil {
		records = []domain.CapabilityRecord{}
	}

	if err := f.store.PutJSON(key, records); err != nil {
		logging.Warn("Failed to cache %s capabilities: %v", providerID, err)
	}
	return records
}

// fetch picks the specialized extractor when one is registered for the
// provider, otherwise probes the generic SKU listing.
func (f *Fetcher) fetch(ctx context.Context, providerID string, opts domain.FetchOptions) ([]domain.CapabilityRecord, error) {
	if extractor, ok := lookupExtractor(providerID); ok {
		logging.Debug("Using specialized extractor for %s", providerID)
		return extractor(ctx, f.client, opts.Region)
	}
	return f.fetchGeneric(ctx, providerID, opts)
}

// fetchGeneric calls the provider's generic SKU listing, probing API
// versions in preference order and stopping at the first that yields a
// parseable record array.
func (f *Fetcher) fetchGeneric(ctx context.Context, providerID string, opts domain.FetchOptions) ([]domain.CapabilityRecord, error) {
	versions := skuAPIVersions
	if opts.APIVersion != "" {
		versions = []string{opts.APIVersion}
	}

	path := f.client.SubscriptionPath(fmt.Sprintf("/providers/%s/skus", providerID))

	var lastErr error
	for _, version := range versions {
		query := url.Values{}
		query.Set("api-version", version)

		var raw json.RawMessage
		if err := f.client.GetJSON(ctx, path, query, &raw); err != nil {
			lastErr = err
			logging.Debug("SKU listing for %s failed with api-version %s: %v", providerID, version, err)
			continue
		}

		records, err := decodeRecords(raw)
		if err != nil {
			lastErr = err
			logging.Debug("SKU listing for %s unparseable with api-version %s: %v", providerID, version, err)
			continue
		}
		return records, nil
	}

	if lastErr == nil {
		lastErr = domain.ErrNotFound
	}
	return nil, fmt.Errorf("no usable api-version among %v: %w", versions, lastErr)
}

// recordEnvelope is the decoded shape of a capability listing response.
// ARM responses either wrap the record array in a "value" envelope or return
// the array bare; the shape is decided once here and never re-sniffed
// downstream.
type recordEnvelope struct {
	Wrapped bool
	Items   []domain.CapabilityRecord
}

// decodeRecords decodes a listing payload into its envelope shape and
// returns the record array.
func decodeRecords(raw json.RawMessage) ([]domain.CapabilityRecord, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return env.Items, nil
}

func decodeEnvelope(raw json.RawMessage) (recordEnvelope, error) {
	var wrapped struct {
		Value []domain.CapabilityRecord `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Value != nil {
		return recordEnvelope{Wrapped: true, Items: wrapped.Value}, nil
	}

	var bare []domain.CapabilityRecord
	if err := json.Unmarshal(raw, &bare); err == nil {
		return recordEnvelope{Wrapped: false, Items: bare}, nil
	}

	return recordEnvelope{}, fmt.Errorf("%w: payload is neither a value envelope nor a record array", domain.ErrParseError)
}

// filterByLocation keeps records whose locations include region. Both sides
// are canonicalized so codes and display names compare equal.
func filterByLocation(records []domain.CapabilityRecord, region string) []domain.CapabilityRecord {
	filtered := make([]domain.CapabilityRecord, 0, len(records))
	for _, r := range records {
		if r.AvailableInLocation(region) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
