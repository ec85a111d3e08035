package capability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bschooled/azure-regional-analysis/internal/azure"
	"github.com/bschooled/azure-regional-analysis/internal/cache"
	"github.com/bschooled/azure-regional-analysis/internal/config"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
)

// testSKUs is the canned compute SKU listing served by newARMServer.
var testSKUs = []domain.CapabilityRecord{
	{
		Name:         "Standard_B2ms",
		ResourceType: "virtualMachines",
		Locations:    []string{"Central US", "swedencentral"},
	},
	{
		Name:         "Standard_D4s_v5",
		ResourceType: "virtualMachines",
		Locations:    []string{"Central US"},
	},
	{
		Name:         "Standard_M128ms",
		ResourceType: "virtualMachines",
		Locations:    []string{"Central US", "swedencentral"},
		Restrictions: []domain.Restriction{
			{
				Type:       "Location",
				ReasonCode: "NotAvailableForSubscription",
				RestrictionInfo: domain.RestrictionInfo{
					Locations: []string{"swedencentral"},
				},
			},
		},
	},
}

// armServer captures per-endpoint call counts for cache assertions.
type armServer struct {
	*httptest.Server
	skuCalls      atomic.Int64
	providerCalls atomic.Int64

	// skuStatus lets tests fail individual API versions; default 200 for all
	skuStatus map[string]int
}

func newARMServer(t *testing.T) *armServer {
	t.Helper()
	s := &armServer{skuStatus: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/test-tenant/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(azure.TokenResponse{AccessToken: "test-token", ExpiresIn: 3600})
	})
	mux.HandleFunc("/subscriptions/sub-123/providers/Microsoft.Compute/skus",
		func(w http.ResponseWriter, r *http.Request) {
			s.skuCalls.Add(1)
			version := r.URL.Query().Get("api-version")
			if status, ok := s.skuStatus[version]; ok && status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"value": testSKUs})
		})
	mux.HandleFunc("/subscriptions/sub-123/providers",
		func(w http.ResponseWriter, r *http.Request) {
			s.providerCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": []map[string]interface{}{
					{
						"namespace": "Microsoft.Compute",
						"resourceTypes": []map[string]interface{}{
							{
								"resourceType": "virtualMachines",
								"locations":    []string{"Central US", "Sweden Central"},
							},
							{
								"resourceType": "operations",
								"locations":    []string{},
							},
						},
					},
					{
						"namespace": "Microsoft.Storage",
						"resourceTypes": []map[string]interface{}{
							{
								"resourceType": "storageAccounts",
								"locations":    []string{"Central US"},
							},
						},
					},
				},
			})
		})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestFetcher(t *testing.T, serverURL string) *Fetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Azure.ManagementURL = serverURL
	cfg.Azure.LoginURL = serverURL
	cfg.Azure.TenantID = "test-tenant"
	cfg.Azure.ClientID = "test-client"
	cfg.Azure.ClientSecret = "test-secret"
	cfg.Azure.SubscriptionID = "sub-123"
	cfg.Analysis.RetryMax = 0

	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create cache store: %v", err)
	}
	return NewFetcher(azure.NewClient(cfg), store, time.Hour)
}

func TestFetchCapabilitiesCachesResult(t *testing.T) {
	server := newARMServer(t)
	fetcher := newTestFetcher(t, server.URL)

	for i := 0; i < 3; i++ {
		records := fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{})
		if len(records) != len(testSKUs) {
			t.Fatalf("call %d returned %d records, want %d", i, len(records), len(testSKUs))
		}
	}

	if got := server.skuCalls.Load(); got != 1 {
		t.Errorf("SKU endpoint called %d times, want 1", got)
	}
}

func TestFetchCapabilitiesFiltersByRegion(t *testing.T) {
	server := newARMServer(t)
	fetcher := newTestFetcher(t, server.URL)

	records := fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{
		Region: "Sweden Central",
	})

	// D4s_v5 lists Central US only
	if len(records) != 2 {
		t.Fatalf("got %d records for swedencentral, want 2", len(records))
	}
	for _, r := range records {
		if r.Name == "Standard_D4s_v5" {
			t.Errorf("record %s should have been filtered out of swedencentral", r.Name)
		}
	}
}

func TestFetchCapabilitiesRegionKeysDoNotCollide(t *testing.T) {
	server := newARMServer(t)
	fetcher := newTestFetcher(t, server.URL)

	all := fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{})
	regional := fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{
		Region: "swedencentral",
	})

	if len(all) == len(regional) {
		t.Fatal("regional fetch must not replay the unscoped cache entry")
	}
	if got := server.skuCalls.Load(); got != 2 {
		t.Errorf("SKU endpoint called %d times, want 2 (distinct cache keys)", got)
	}
}

func TestFetchGenericProbesOlderVersions(t *testing.T) {
	server := newARMServer(t)
	server.skuStatus["2024-02-01"] = http.StatusNotFound
	server.skuStatus["2021-07-01"] = http.StatusNotFound
	fetcher := newTestFetcher(t, server.URL)

	records := fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{})
	if len(records) != len(testSKUs) {
		t.Fatalf("got %d records after version fallback, want %d", len(records), len(testSKUs))
	}
	if got := server.skuCalls.Load(); got != 3 {
		t.Errorf("SKU endpoint probed %d times, want 3", got)
	}
}

func TestFetchFailureDegradesToEmptyAndCaches(t *testing.T) {
	server := newARMServer(t)
	for _, version := range skuAPIVersions {
		server.skuStatus[version] = http.StatusNotFound
	}
	fetcher := newTestFetcher(t, server.URL)

	records := fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{})
	if records == nil || len(records) != 0 {
		t.Fatalf("failed fetch should return an empty slice, got %v", records)
	}

	probes := server.skuCalls.Load()
	// The empty result must be cached; a retry within the TTL stays local
	fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{})
	if got := server.skuCalls.Load(); got != probes {
		t.Errorf("retry after cached failure hit the network (%d -> %d calls)", probes, got)
	}
}

func TestFetchCapabilitiesExplicitAPIVersion(t *testing.T) {
	server := newARMServer(t)
	fetcher := newTestFetcher(t, server.URL)

	records := fetcher.FetchCapabilities(context.Background(), "Microsoft.Compute", domain.FetchOptions{
		APIVersion: "2019-04-01",
	})
	if len(records) != len(testSKUs) {
		t.Fatalf("got %d records, want %d", len(records), len(testSKUs))
	}
	if got := server.skuCalls.Load(); got != 1 {
		t.Errorf("explicit api-version should not probe, got %d calls", got)
	}
}

func TestDecodeRecords(t *testing.T) {
	t.Run("value envelope", func(t *testing.T) {
		raw := json.RawMessage(`{"value": [{"name": "Standard_B2ms", "resourceType": "virtualMachines"}]}`)
		records, err := decodeRecords(raw)
		if err != nil {
			t.Fatalf("decodeRecords failed: %v", err)
		}
		if len(records) != 1 || records[0].Name != "Standard_B2ms" {
			t.Errorf("unexpected records: %+v", records)
		}
	})

	t.Run("bare array", func(t *testing.T) {
		raw := json.RawMessage(`[{"name": "Standard_B2ms", "resourceType": "virtualMachines"}]`)
		records, err := decodeRecords(raw)
		if err != nil {
			t.Fatalf("decodeRecords failed: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("got %d records, want 1", len(records))
		}
	})

	t.Run("unrecognized shape", func(t *testing.T) {
		raw := json.RawMessage(`{"items": []}`)
		_, err := decodeRecords(raw)
		if !errors.Is(err, domain.ErrParseError) {
			t.Errorf("error = %v, want ErrParseError", err)
		}
	})
}
