// Package azure implements region catalog retrieval and fuzzy region
// resolution.
package azure

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"

	"github.com/bschooled/azure-regional-analysis/internal/cache"
	"github.com/bschooled/azure-regional-analysis/internal/config"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

const (
	regionCacheKey      = "region-catalog"
	locationsAPIVersion = "2022-12-01"

	// substringBonus is added to a candidate's fuzzy score when the display
	// name contains the input as a substring or vice versa.
	substringBonus = 5
)

// locationsResponse is the ARM /locations listing envelope.
type locationsResponse struct {
	Value []domain.Region `json:"value"`
}

// ConfirmFunc asks the user whether a fuzzy match should be accepted.
// Implementations must not hang: when no interactive terminal is attached or
// a bounded timeout elapses, they proceed with the match.
type ConfirmFunc func(input string, match domain.Region) bool

// RegionCatalog resolves free-form region input against the subscription's
// region catalog. The catalog is fetched once per run and cached on disk.
type RegionCatalog struct {
	client  *Client
	store   *cache.Store
	ttl     time.Duration
	confirm ConfirmFunc
}

// NewRegionCatalog creates a catalog backed by the given client and cache.
func NewRegionCatalog(client *Client, store *cache.Store, ttl time.Duration) *RegionCatalog {
	return &RegionCatalog{
		client:  client,
		store:   store,
		ttl:     ttl,
		confirm: interactiveConfirm,
	}
}

// SetConfirm overrides the confirmation hook (nil disables confirmation).
func (rc *RegionCatalog) SetConfirm(fn ConfirmFunc) {
	rc.confirm = fn
}

// ListRegions returns the region catalog, from cache when fresh.
func (rc *RegionCatalog) ListRegions(ctx context.Context) ([]domain.Region, error) {
	var regions []domain.Region
	if rc.store.GetJSON(regionCacheKey, rc.ttl, &regions) && len(regions) > 0 {
		return regions, nil
	}

	query := url.Values{}
	query.Set("api-version", locationsAPIVersion)

	var resp locationsResponse
	if err := rc.client.GetJSON(ctx, rc.client.SubscriptionPath("/locations"), query, &resp); err != nil {
		return nil, fmt.Errorf("fetching region catalog: %w", err)
	}
	if len(resp.Value) == 0 {
		return nil, fmt.Errorf("region catalog is empty: %w", domain.ErrNotFound)
	}

	if err := rc.store.PutJSON(regionCacheKey, resp.Value); err != nil {
		logging.Warn("Failed to cache region catalog: %v", err)
	}
	return resp.Value, nil
}

// ResolveRegion maps free-form input to a canonical region name. Exact
// case-insensitive matches on name or display name short-circuit without
// fuzzy scoring or confirmation. Otherwise the highest-scoring fuzzy
// candidate wins, optionally confirmed interactively. A zero best score
// fails with ErrRegionNotFound.
func (rc *RegionCatalog) ResolveRegion(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty region input", domain.ErrRegionNotFound)
	}

	regions, err := rc.ListRegions(ctx)
	if err != nil {
		return "", err
	}

	for _, r := range regions {
		if r.MatchesExactly(input) {
			return r.Name, nil
		}
	}

	var best domain.Region
	bestScore := 0
	for _, r := range regions {
		if score := fuzzyScore(input, r); score > bestScore {
			best, bestScore = r, score
		}
	}

	if bestScore == 0 {
		return "", fmt.Errorf("%w: %q did not match any region", domain.ErrRegionNotFound, input)
	}

	logging.Debug("Fuzzy matched region %q -> %s (%s), score %d", input, best.Name, best.DisplayName, bestScore)

	if rc.confirm != nil && !rc.confirm(input, best) {
		return "", fmt.Errorf("%w: match %q for input %q was declined", domain.ErrRegionNotFound, best.Name, input)
	}
	return best.Name, nil
}

// fuzzyScore counts token overlaps between the input and a candidate,
// tokenizing on whitespace and '/', plus a fixed bonus for substring
// containment in either direction.
func fuzzyScore(input string, candidate domain.Region) int {
	inputTokens := tokenize(input)
	candidateTokens := append(tokenize(candidate.DisplayName), tokenize(candidate.Name)...)

	seen := make(map[string]bool, len(candidateTokens))
	for _, t := range candidateTokens {
		seen[t] = true
	}

	score := 0
	for _, t := range inputTokens {
		if seen[t] {
			score++
		}
	}

	display := strings.ToLower(candidate.DisplayName)
	lowered := strings.ToLower(input)
	if strings.Contains(display, lowered) || strings.Contains(lowered, display) {
		score += substringBonus
	}
	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '/'
	})
}

// interactiveConfirm prompts for confirmation of a fuzzy match. Skipped
// (accepting the match) when stdin is not a terminal; a read deadline on
// stdin bounds the prompt so an unattended run never hangs and no reader
// outlives it.
func interactiveConfirm(input string, match domain.Region) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return true
	}

	timeout := config.Get().Analysis.ConfirmTimeout
	if err := os.Stdin.SetReadDeadline(time.Now().Add(timeout)); err == nil {
		defer os.Stdin.SetReadDeadline(time.Time{})
	}

	confirmed := true
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Interpreting %q as %s (%s) - continue?", input, match.Name, match.DisplayName),
		Default: true,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		logging.Warn("No confirmation within %s, proceeding with %s", timeout, match.Name)
		return true
	}
	return confirmed
}
