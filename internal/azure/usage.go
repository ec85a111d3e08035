// Package azure implements region-scoped quota usage retrieval.
package azure

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

// usageAPIVersions maps a usage-exposing namespace to the API version its
// locations/{region}/usages endpoint speaks.
var usageAPIVersions = map[string]string{
	"Microsoft.Compute": "2024-07-01",
	"Microsoft.Network": "2023-11-01",
	"Microsoft.Storage": "2023-01-01",
}

// usagesResponse is the ARM usages listing envelope.
type usagesResponse struct {
	Value []usageEntry `json:"value"`
}

type usageEntry struct {
	Name struct {
		Value          string `json:"value"`
		LocalizedValue string `json:"localizedValue"`
	} `json:"name"`
	Limit        float64 `json:"limit"`
	CurrentValue float64 `json:"currentValue"`
}

// UsageFetcher retrieves quota usage metrics, satisfying
// domain.QuotaUsageFetcher. Usage listings for a (namespace, region) pair
// are memoized for the lifetime of the fetcher so two endpoints sharing a
// namespace cost one HTTP call.
type UsageFetcher struct {
	client *Client

	mu   sync.Mutex
	memo map[string][]usageEntry
}

// NewUsageFetcher creates a UsageFetcher over the given ARM client.
func NewUsageFetcher(client *Client) *UsageFetcher {
	return &UsageFetcher{
		client: client,
		memo:   make(map[string][]usageEntry),
	}
}

// FetchQuotaUsage returns the quota metrics denoted by spec.EndpointID in
// one region. The endpoint id has the form "{namespace}/{metricName}", e.g.
// "Microsoft.Compute/cores"; an empty metric name returns every metric the
// namespace exposes.
func (u *UsageFetcher) FetchQuotaUsage(ctx context.Context, spec domain.QuotaSpec, region string) ([]domain.QuotaMetric, error) {
	namespace, metricName := splitEndpointID(spec.EndpointID)
	if namespace == "" {
		return nil, domain.NewValidationError("endpointId", "missing namespace")
	}

	entries, err := u.usages(ctx, namespace, region)
	if err != nil {
		return nil, domain.NewQuotaFetchError(spec.ResourceType, region, err)
	}

	var metrics []domain.QuotaMetric
	for _, e := range entries {
		if metricName != "" && !strings.EqualFold(e.Name.Value, metricName) {
			continue
		}
		metrics = append(metrics, domain.QuotaMetric{
			ResourceType: spec.ResourceType,
			Region:       region,
			MetricName:   e.Name.Value,
			Limit:        e.Limit,
			CurrentValue: e.CurrentValue,
		})
	}
	return metrics, nil
}

// usages fetches (or replays) the usages listing for a namespace and region.
func (u *UsageFetcher) usages(ctx context.Context, namespace, region string) ([]usageEntry, error) {
	memoKey := namespace + "|" + region

	u.mu.Lock()
	if entries, ok := u.memo[memoKey]; ok {
		u.mu.Unlock()
		return entries, nil
	}
	u.mu.Unlock()

	apiVersion, ok := usageAPIVersions[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: no usages endpoint for %s", domain.ErrNotFound, namespace)
	}

	path := u.client.SubscriptionPath(fmt.Sprintf("/providers/%s/locations/%s/usages", namespace, region))
	query := url.Values{}
	query.Set("api-version", apiVersion)

	var resp usagesResponse
	if err := u.client.GetJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	logging.Debug("Fetched %d usage metrics for %s in %s", len(resp.Value), namespace, region)

	u.mu.Lock()
	u.memo[memoKey] = resp.Value
	u.mu.Unlock()
	return resp.Value, nil
}

func splitEndpointID(endpointID string) (namespace, metricName string) {
	if i := strings.LastIndex(endpointID, "/"); i > 0 {
		return endpointID[:i], endpointID[i+1:]
	}
	return endpointID, ""
}
