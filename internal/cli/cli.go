// Package cli implements the command-line interface for the regional
// analyzer.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bschooled/azure-regional-analysis/internal/analyzer"
	"github.com/bschooled/azure-regional-analysis/internal/config"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

// CLI encapsulates the command-line interface
type CLI struct {
	rootCmd *cobra.Command
	logger  *logging.Logger
}

// New creates a new CLI instance
func New() *CLI {
	cfg := config.Get()
	logger, _ := logging.New(logging.Config{
		Level:       logging.ParseLevel(cfg.Logging.Level),
		LogDir:      cfg.Logging.LogDir,
		EnableFile:  cfg.Logging.EnableFile,
		EnableColor: cfg.Logging.EnableColor,
	})
	if logger != nil {
		logging.SetDefault(logger)
	}
	cli := &CLI{logger: logger}
	cli.buildCommands()
	return cli
}

// Execute runs the CLI
func (c *CLI) Execute() error {
	return c.rootCmd.Execute()
}

// buildCommands constructs the command tree
func (c *CLI) buildCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "region-analysis",
		Short: "Azure comparative regional capability analyzer",
		Long: `Inventories resource capabilities in a source region, and determines
whether equivalent resource types, SKUs and quota headroom exist in a
target region, to support migration planning.

Capability and region catalog data is cached on disk for 24 hours; use
the refresh command to force fresh fetches.`,
		Version: "1.0.0",
	}

	c.rootCmd.AddCommand(c.compareCmd())
	c.rootCmd.AddCommand(c.availabilityCmd())
	c.rootCmd.AddCommand(c.quotaCmd())
	c.rootCmd.AddCommand(c.regionsCmd())
	c.rootCmd.AddCommand(c.refreshCmd())
}

// compareCmd creates the compare command
func (c *CLI) compareCmd() *cobra.Command {
	var (
		sourceRegion  string
		targetRegion  string
		providers     []string
		allProviders  bool
		inventoryPath string
		outputFormat  string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare provider capabilities across two regions",
		Long: `Compare capability providers between a source and a target region and
classify each provider's migration readiness.

Examples:
  # Compare the compute and network providers
  region-analysis compare --source centralus --target "sweden central" \
    --providers Microsoft.Compute,Microsoft.Network

  # Compare every provider referenced by an inventory snapshot
  region-analysis compare --source centralus --target swedencentral \
    --inventory inventory.json

  # Compare every registered provider
  region-analysis compare --source centralus --target swedencentral --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Analysis.ContextTimeout)
			defer cancel()

			engine, err := analyzer.NewEngine(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize engine: %w", err)
			}

			source, target, err := resolveRegionPair(ctx, engine, sourceRegion, targetRegion)
			if err != nil {
				return err
			}

			ids := providers
			switch {
			case len(ids) > 0:
			case inventoryPath != "":
				tuples, err := loadInventory(inventoryPath)
				if err != nil {
					return err
				}
				ids = analyzer.ProvidersFromInventory(tuples)
			case allProviders:
				ids = engine.AllProviders(ctx)
			default:
				return domain.NewValidationError("providers", "set --providers, --inventory or --all")
			}

			fmt.Printf("🔍 Comparing %d providers: %s -> %s\n\n", len(ids), source, target)
			records := engine.CompareProviders(ctx, source, target, ids)

			if outputFormat == "json" {
				return printJSON(records)
			}
			displayComparisonTable(records)
			displayCacheStats(engine)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceRegion, "source", "", "Source region (required)")
	cmd.Flags().StringVar(&targetRegion, "target", "", "Target region (required)")
	cmd.Flags().StringSliceVar(&providers, "providers", nil, "Provider namespaces to compare (e.g. Microsoft.Compute)")
	cmd.Flags().BoolVar(&allProviders, "all", false, "Compare every registered provider")
	cmd.Flags().StringVar(&inventoryPath, "inventory", "", "Inventory snapshot (JSON) to derive providers from")
	cmd.Flags().StringVar(&outputFormat, "output", "table", "Output format (table, json)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")

	return cmd
}

// availabilityCmd creates the availability command
func (c *CLI) availabilityCmd() *cobra.Command {
	var (
		resourceType string
		sku          string
		sourceRegion string
		targetRegion string
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Check whether a resource type or SKU is deployable in a target region",
		Long: `Check availability of a single resource type, optionally narrowed to a
SKU or size, in a target region.

Examples:
  region-analysis availability --type Microsoft.Compute/virtualMachines \
    --sku Standard_B2ms --source centralus --target swedencentral`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Analysis.ContextTimeout)
			defer cancel()

			engine, err := analyzer.NewEngine(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize engine: %w", err)
			}

			source, target, err := resolveRegionPair(ctx, engine, sourceRegion, targetRegion)
			if err != nil {
				return err
			}

			verdict := engine.CheckAvailability(ctx, resourceType, sku, source, target)

			label := resourceType
			if sku != "" {
				label = fmt.Sprintf("%s (%s)", resourceType, sku)
			}
			if verdict.Available {
				fmt.Printf("✅ %s is available in %s (%s)\n", label, target, verdict.Reason)
			} else {
				fmt.Printf("❌ %s is NOT available in %s (%s)\n", label, target, verdict.Reason)
				for _, r := range verdict.Restrictions {
					fmt.Printf("   ⚠️  %s restriction [%s] locations=%v zones=%v\n",
						r.Type, r.ReasonCode, r.RestrictionInfo.Locations, r.RestrictionInfo.Zones)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resourceType, "type", "", "Namespaced resource type (required)")
	cmd.Flags().StringVar(&sku, "sku", "", "SKU or size identifier")
	cmd.Flags().StringVar(&sourceRegion, "source", "", "Source region (required)")
	cmd.Flags().StringVar(&targetRegion, "target", "", "Target region (required)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")

	return cmd
}

// quotaCmd creates the quota command
func (c *CLI) quotaCmd() *cobra.Command {
	var (
		inventoryPath string
		region        string
		outputFormat  string
	)

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Enrich an inventory snapshot with quota usage",
		Long: `Join region-scoped quota limits and current usage onto an inventory
snapshot. Each quota endpoint is queried at most once regardless of how
many inventory items share a resource type.

Examples:
  region-analysis quota --inventory inventory.json --region centralus`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Analysis.ContextTimeout)
			defer cancel()

			engine, err := analyzer.NewEngine(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize engine: %w", err)
			}

			resolved, err := engine.ResolveRegion(ctx, region)
			if err != nil {
				return err
			}

			tuples, err := loadInventory(inventoryPath)
			if err != nil {
				return err
			}

			enriched := engine.EnrichWithQuota(ctx, tuples, resolved)
			if outputFormat == "json" {
				return printJSON(enriched)
			}
			displayQuotaTable(enriched)
			return nil
		},
	}

	cmd.Flags().StringVar(&inventoryPath, "inventory", "", "Inventory snapshot (JSON, required)")
	cmd.Flags().StringVar(&region, "region", "", "Region to fetch quota usage for (required)")
	cmd.Flags().StringVar(&outputFormat, "output", "table", "Output format (table, json)")
	cmd.MarkFlagRequired("inventory")
	cmd.MarkFlagRequired("region")

	return cmd
}

// regionsCmd creates the regions command
func (c *CLI) regionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the subscription's region catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Analysis.ContextTimeout)
			defer cancel()

			engine, err := analyzer.NewEngine(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize engine: %w", err)
			}

			regions, err := engine.ListRegions(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY NAME")
			for _, r := range regions {
				fmt.Fprintf(w, "%s\t%s\n", r.Name, r.DisplayName)
			}
			return w.Flush()
		},
	}
}

// refreshCmd creates the refresh command
func (c *CLI) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Clear the on-disk capability cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := analyzer.NewEngine(config.Get())
			if err != nil {
				return fmt.Errorf("failed to initialize engine: %w", err)
			}
			if err := engine.ClearCache(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Println("🔄 Cache cleared, next run fetches fresh data")
			return nil
		},
	}
}

// resolveRegionPair canonicalizes both region inputs. Region resolution
// happens exactly once per run; everything downstream uses the canonical
// names.
func resolveRegionPair(ctx context.Context, engine *analyzer.Engine, source, target string) (string, string, error) {
	resolvedSource, err := engine.ResolveRegion(ctx, source)
	if err != nil {
		return "", "", fmt.Errorf("source region: %w", err)
	}
	resolvedTarget, err := engine.ResolveRegion(ctx, target)
	if err != nil {
		return "", "", fmt.Errorf("target region: %w", err)
	}
	return resolvedSource, resolvedTarget, nil
}

// loadInventory reads an inventory snapshot from a JSON file.
func loadInventory(path string) ([]domain.ResourceTuple, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	var tuples []domain.ResourceTuple
	if err := json.Unmarshal(data, &tuples); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	return tuples, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusEmoji maps comparison statuses to a console marker.
func statusEmoji(status domain.ComparisonStatus) string {
	switch status {
	case domain.StatusFullMatch:
		return "✅"
	case domain.StatusTargetExtended, domain.StatusTargetOnly:
		return "➕"
	case domain.StatusSourceExtended, domain.StatusSourceOnly:
		return "⚠️"
	case domain.StatusAvailableNoSKUs:
		return "ℹ️"
	case domain.StatusNotAvailable:
		return "🚫"
	default:
		return "⛔"
	}
}

func displayComparisonTable(records []domain.ComparisonRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSTATUS\tSOURCE CAPS\tTARGET CAPS\tSOURCE ONLY\tTARGET ONLY")
	for _, r := range records {
		fmt.Fprintf(w, "%s %s\t%s\t%d\t%d\t%d\t%d\n",
			statusEmoji(r.Status), r.Provider, r.Status,
			r.Source.CapabilityCount, r.Target.CapabilityCount,
			len(r.SourceOnly), len(r.TargetOnly))
	}
	w.Flush()

	for _, r := range records {
		if r.Note != "" {
			fmt.Printf("   ℹ️  %s: %s\n", r.Provider, r.Note)
		}
	}
}

func displayQuotaTable(tuples []domain.ResourceTuple) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tQUOTA METRIC\tLIMIT\tUSED")
	for _, t := range tuples {
		if t.Quota != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.0f\n",
				t.Name, t.Type, t.Quota.MetricName, t.Quota.Limit, t.Quota.CurrentValue)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.Type, "-", "-", "-")
		}
	}
	w.Flush()
}

func displayCacheStats(engine *analyzer.Engine) {
	stats := engine.CacheStats()
	fmt.Printf("\n📦 Cache: %d hits, %d misses, %d writes", stats.Hits, stats.Misses, stats.Writes)
	if stats.Migrations > 0 {
		fmt.Printf(", %d legacy entries migrated", stats.Migrations)
	}
	fmt.Println()
}
