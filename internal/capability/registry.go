// Package capability contains the specialized-extractor registry.
package capability

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/bschooled/azure-regional-analysis/internal/azure"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

// ExtractorFunc fetches capability records for a provider that exposes no
// usable generic SKU listing. Implementations return the raw (unfiltered)
// record set; region filtering happens in the Fetcher.
type ExtractorFunc func(ctx context.Context, client *azure.Client, region string) ([]domain.CapabilityRecord, error)

var (
	extractorsMu sync.RWMutex
	extractors   = make(map[string]ExtractorFunc)
)

// RegisterExtractor registers a specialized extractor for a provider
// namespace. New providers are supported by registration, not by editing a
// central conditional.
func RegisterExtractor(providerID string, fn ExtractorFunc) {
	extractorsMu.Lock()
	defer extractorsMu.Unlock()
	extractors[providerID] = fn
}

func lookupExtractor(providerID string) (ExtractorFunc, bool) {
	extractorsMu.RLock()
	defer extractorsMu.RUnlock()
	fn, ok := extractors[providerID]
	return fn, ok
}

func init() {
	RegisterExtractor("Microsoft.Sql", fetchSQLCapabilities)
}

const sqlCapabilitiesAPIVersion = "2021-11-01"

// sqlCapabilitiesResponse mirrors the nested location-capabilities document
// returned by Microsoft.Sql. The generic /skus listing for this provider is
// empty even when data exists, so editions and service objectives are dug
// out of the per-location capabilities endpoint instead.
type sqlCapabilitiesResponse struct {
	Name                    string             `json:"name"`
	Status                  string             `json:"status"`
	SupportedServerVersions []sqlServerVersion `json:"supportedServerVersions"`
}

type sqlServerVersion struct {
	Name              string       `json:"name"`
	Status            string       `json:"status"`
	SupportedEditions []sqlEdition `json:"supportedEditions"`
}

type sqlEdition struct {
	Name                            string                `json:"name"`
	Status                          string                `json:"status"`
	SupportedServiceLevelObjectives []sqlServiceObjective `json:"supportedServiceLevelObjectives"`
}

type sqlServiceObjective struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	SKU    struct {
		Name   string `json:"name"`
		Tier   string `json:"tier"`
		Family string `json:"family"`
	} `json:"sku"`
}

// fetchSQLCapabilities flattens supported editions and service level
// objectives into capability records. Objectives whose status is not
// generally available carry a restriction so the classifier treats them as
// blocked.
func fetchSQLCapabilities(ctx context.Context, client *azure.Client, region string) ([]domain.CapabilityRecord, error) {
	if region == "" {
		// The capabilities endpoint is per-location; without a region there
		// is nothing to enumerate.
		logging.Debug("Microsoft.Sql extractor needs a region, returning empty set")
		return nil, nil
	}

	path := client.SubscriptionPath(fmt.Sprintf("/providers/Microsoft.Sql/locations/%s/capabilities", region))
	query := url.Values{}
	query.Set("api-version", sqlCapabilitiesAPIVersion)

	var resp sqlCapabilitiesResponse
	if err := client.GetJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	var records []domain.CapabilityRecord
	for _, version := range resp.SupportedServerVersions {
		for _, edition := range version.SupportedEditions {
			for _, slo := range edition.SupportedServiceLevelObjectives {
				record := domain.CapabilityRecord{
					Name:         slo.Name,
					ResourceType: "servers/databases",
					Tier:         slo.SKU.Tier,
					Family:       slo.SKU.Family,
					Locations:    []string{region},
				}
				if blocked(slo.Status) {
					record.Restrictions = []domain.Restriction{{
						Type:       "Location",
						ReasonCode: "NotAvailableForSubscription",
						RestrictionInfo: domain.RestrictionInfo{
							Locations: []string{region},
						},
					}}
				}
				records = append(records, record)
			}
		}
	}

	logging.Debug("Microsoft.Sql extractor produced %d records for %s", len(records), region)
	return records, nil
}

// blocked reports whether a capability status denotes something the current
// subscription cannot deploy.
func blocked(status string) bool {
	switch status {
	case "Available", "Default", "Visible":
		return false
	default:
		return status != ""
	}
}
