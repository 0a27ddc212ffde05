// Package routing scores and ranks destination pages for an artifact coming
// from a registered source.
//
// Signals run in a fixed order and the first signal to emit a page owns it:
//
//	A  explicit sector edge        100 primary / 70 secondary
//	B  free-text sector category    60
//	C  tag/keyword match            min(50, matches×15)
//	D  artifact-type affinity       80
//	E  high-tier default            40
//
// The accumulated list is then stably sorted by weight, descending.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/MaherFSF/Yemenactr-sub008/internal/apperr"
	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/result"
	"github.com/MaherFSF/Yemenactr-sub008/internal/telemetry"
)

// Signal weights.
const (
	WeightExplicitPrimary   = 100
	WeightExplicitSecondary = 70
	WeightTypeAffinity      = 80
	WeightCategory          = 60
	WeightTierDefault       = 40
	KeywordWeightStep       = 15
	KeywordWeightCap        = 50
)

// Engine routes artifacts. It holds no mutable state; every call reads the
// registry afresh.
type Engine struct {
	reg     registry.Reader
	tables  *catalog.Tables
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewEngine creates a routing engine over the registry and routing tables.
func NewEngine(reg registry.Reader, tables *catalog.Tables, logger *slog.Logger, metrics *telemetry.Metrics) *Engine {
	return &Engine{reg: reg, tables: tables, logger: logger.With("component", "routing"), metrics: metrics}
}

// Tables returns the routing tables the engine was built with.
func (e *Engine) Tables() *catalog.Tables {
	return e.tables
}

// validateArtifact checks the artifact's shape. Only types are checked.
func validateArtifact(a models.Artifact) error {
	kinds := make([]any, len(models.ArtifactTypes))
	for i, k := range models.ArtifactTypes {
		kinds[i] = k
	}
	return validation.ValidateStruct(&a,
		validation.Field(&a.SourceID, validation.Required),
		validation.Field(&a.Type, validation.Required, validation.In(kinds...)),
		validation.Field(&a.Language, validation.In("en", "ar", "both")),
	)
}

// Route ranks destination pages for the artifact. An unknown source yields
// an empty, successful result tagged "not_found".
func (e *Engine) Route(ctx context.Context, in models.Artifact) result.Result[[]models.RoutingResult] {
	empty := []models.RoutingResult{}

	if err := validateArtifact(in); err != nil {
		e.metrics.Degraded(ctx, "route", "invalid_input")
		return result.Fail(empty, err.Error(), fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
	}

	src, err := e.reg.GetSource(ctx, in.SourceID)
	if errors.Is(err, apperr.ErrNotFound) {
		e.logger.Warn("source not found", slog.String("source_id", in.SourceID))
		e.metrics.Degraded(ctx, "route", "not_found")
		return result.Empty(empty, "not_found")
	}
	if err != nil {
		e.logger.Error("route: registry unavailable",
			slog.String("source_id", in.SourceID), slog.String("error", err.Error()))
		e.metrics.Degraded(ctx, "route", "unavailable")
		return result.Fail(empty, "registry unavailable", err)
	}

	edges, err := e.reg.SectorEdges(ctx, in.SourceID)
	if err != nil {
		e.logger.Error("route: sector edges unavailable",
			slog.String("source_id", in.SourceID), slog.String("error", err.Error()))
		e.metrics.Degraded(ctx, "route", "unavailable")
		return result.Fail(empty, "registry unavailable", err)
	}

	out := e.Score(src, edges, in)
	e.metrics.RouteCall(ctx, string(in.Type), len(out))
	return result.OK(out)
}

// Score runs the signal pipeline over already-loaded registry data.
func (e *Engine) Score(src *models.Source, edges []models.SectorEdge, in models.Artifact) []models.RoutingResult {
	acc := newAccumulator()

	// A: explicit sector edges.
	for _, edge := range edges {
		if !e.tables.IsSector(edge.SectorCode) {
			e.logger.Debug("dropped edge to unknown page",
				slog.String("source_id", src.SourceID), slog.String("page", edge.SectorCode))
			continue
		}
		weight := WeightExplicitSecondary
		rationale := fmt.Sprintf("explicit registry mapping of %s to %s", src.SourceID, edge.SectorCode)
		if edge.IsPrimary {
			weight = WeightExplicitPrimary
			rationale += " (primary)"
		}
		acc.add(models.RoutingResult{PageKey: edge.SectorCode, Weight: weight, Rationale: rationale, IsPrimary: edge.IsPrimary})
	}

	// B: free-text category tokens.
	for _, token := range strings.Split(src.SectorCategory, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		page, ok := e.tables.CategoryPage(token)
		if !ok {
			continue
		}
		acc.add(models.RoutingResult{
			PageKey:   page,
			Weight:    WeightCategory,
			Rationale: fmt.Sprintf("sector category contains %q", token),
		})
	}

	// C: tag/keyword matches, pages in enumeration order.
	if tags := foldTags(in.Tags); len(tags) > 0 {
		for _, page := range e.tables.Pages() {
			if acc.has(page) {
				continue
			}
			m := keywordMatches(e.tables.Keywords(page), tags)
			if m == 0 {
				continue
			}
			acc.add(models.RoutingResult{
				PageKey:   page,
				Weight:    min(KeywordWeightCap, m*KeywordWeightStep),
				Rationale: fmt.Sprintf("tags match %d keywords for %s", m, page),
			})
		}
	}

	// D: artifact-type affinity.
	if page, ok := e.tables.AffinityPage(in.Type); ok {
		acc.add(models.RoutingResult{
			PageKey:   page,
			Weight:    WeightTypeAffinity,
			Rationale: fmt.Sprintf("artifact type is %s", in.Type),
		})
	}

	// E: high-tier default.
	if def := e.tables.TierDefault(); def.Page != "" && slices.Contains(def.Tiers, src.Tier) {
		acc.add(models.RoutingResult{
			PageKey:   def.Page,
			Weight:    WeightTierDefault,
			Rationale: fmt.Sprintf("high-tier source (%s) relevant to %s", src.Tier, def.Page),
		})
	}

	out := acc.list
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// accumulator keeps emission order and rejects pages already claimed.
type accumulator struct {
	list []models.RoutingResult
	seen map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{list: []models.RoutingResult{}, seen: make(map[string]struct{})}
}

func (a *accumulator) has(page string) bool {
	_, ok := a.seen[page]
	return ok
}

func (a *accumulator) add(r models.RoutingResult) bool {
	if a.has(r.PageKey) {
		return false
	}
	a.seen[r.PageKey] = struct{}{}
	a.list = append(a.list, r)
	return true
}

func foldTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if f := catalog.Fold(t); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// keywordMatches counts keywords that equal or occur inside any tag.
func keywordMatches(keywords, tags []string) int {
	n := 0
	for _, kw := range keywords {
		for _, tag := range tags {
			if tag == kw || strings.Contains(tag, kw) {
				n++
				break
			}
		}
	}
	return n
}
