// Package feedmatrix aggregates which registry sources feed each sector and
// module page, with per-scope distributions, a flat export and global stats.
package feedmatrix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/MaherFSF/Yemenactr-sub008/internal/apperr"
	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/result"
	"github.com/MaherFSF/Yemenactr-sub008/internal/telemetry"
)

// BatchMode decides what a multi-scope call does when one scope fails.
type BatchMode string

const (
	// BatchAbort fails the whole call with an empty payload.
	BatchAbort BatchMode = "abort"
	// BatchPartial returns the scopes that succeeded and names the failed ones.
	BatchPartial BatchMode = "partial"
)

// Options tunes limits and batching.
type Options struct {
	DefaultLimit            int
	MaxLimit                int
	PageSourcesDefaultLimit int
	BatchMode               BatchMode
	Concurrency             int
}

// DefaultOptions returns the stock limits: 50 per matrix scope, 20 per page
// panel, at most 100.
func DefaultOptions() Options {
	return Options{
		DefaultLimit:            50,
		MaxLimit:                100,
		PageSourcesDefaultLimit: 20,
		BatchMode:               BatchAbort,
		Concurrency:             4,
	}
}

// Validate validates the options.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MaxLimit, validation.Required, validation.Min(1)),
		validation.Field(&o.DefaultLimit, validation.Required, validation.Min(1), validation.Max(o.MaxLimit)),
		validation.Field(&o.PageSourcesDefaultLimit, validation.Required, validation.Min(1), validation.Max(o.MaxLimit)),
		validation.Field(&o.BatchMode, validation.Required, validation.In(BatchAbort, BatchPartial)),
		validation.Field(&o.Concurrency, validation.Required, validation.Min(1)),
	)
}

// SourceSummary is one source as listed in a matrix scope or page panel.
type SourceSummary struct {
	SourceID         string        `json:"sourceId"`
	Name             string        `json:"name"`
	AltName          string        `json:"altName,omitempty"`
	Tier             models.Tier   `json:"tier"`
	Status           models.Status `json:"status"`
	ConfidenceRating string        `json:"confidenceRating,omitempty"`
	UpdateFrequency  string        `json:"updateFrequency,omitempty"`
	AllowedUse       string        `json:"allowedUse,omitempty"`
	WebURL           string        `json:"webUrl,omitempty"`
	LastFetch        *time.Time    `json:"lastFetch"`
	CoverageStart    int           `json:"coverageStart,omitempty"`
	CoverageEnd      int           `json:"coverageEnd,omitempty"`
	IsPrimary        bool          `json:"isPrimary"`
	IsRestricted     bool          `json:"isRestricted"`
}

func summarize(s models.SourceWithEdge) SourceSummary {
	sum := SourceSummary{
		SourceID:         s.SourceID,
		Name:             s.Name,
		AltName:          s.AltName,
		Tier:             s.Tier,
		Status:           s.Status,
		ConfidenceRating: s.ConfidenceRating,
		UpdateFrequency:  s.UpdateFrequency,
		AllowedUse:       s.AllowedUse,
		WebURL:           s.WebURL,
		CoverageStart:    s.HistoricalStart,
		CoverageEnd:      s.HistoricalEnd,
		IsPrimary:        s.IsPrimary,
		LastFetch:        s.LastFetch,
		IsRestricted:     s.Source.IsRestricted(),
	}
	return sum
}

// ScopeStats are the distributions of one sector or page.
type ScopeStats struct {
	SourceCount            int            `json:"sourceCount"`
	ActiveCount            int            `json:"activeCount"`
	PrimaryCount           int            `json:"primaryCount"`
	TierDistribution       map[string]int `json:"tierDistribution"`
	AllowedUseDistribution map[string]int `json:"allowedUseDistribution"`
}

// AllowedUseUnknown labels sources with no allowed-use value.
const AllowedUseUnknown = "Unknown"

func scopeStats(sources []SourceSummary) ScopeStats {
	st := ScopeStats{
		SourceCount:            len(sources),
		TierDistribution:       map[string]int{},
		AllowedUseDistribution: map[string]int{},
	}
	for _, s := range sources {
		st.TierDistribution[string(s.Tier)]++
		use := s.AllowedUse
		if use == "" {
			use = AllowedUseUnknown
		}
		st.AllowedUseDistribution[use]++
		if s.IsPrimary {
			st.PrimaryCount++
		}
		if s.Status == models.StatusActive {
			st.ActiveCount++
		}
	}
	return st
}

// Scope identifies a sector or page in a matrix.
type Scope struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	NameAr string `json:"nameAr"`
}

// Scope kinds.
const (
	KindSector = "sector"
	KindModule = "module"
)

// ScopeMatrix lists the sources of one scope with its statistics.
type ScopeMatrix struct {
	Scope   Scope           `json:"scope"`
	Stats   ScopeStats      `json:"stats"`
	Sources []SourceSummary `json:"sources"`
}

// Matrix is the result of a multi-scope call.
type Matrix struct {
	Scopes []ScopeMatrix `json:"scopes"`
	Failed []string      `json:"failed,omitempty"`
}

func emptyMatrix() Matrix {
	return Matrix{Scopes: []ScopeMatrix{}}
}

// Aggregator answers feed-matrix queries.
type Aggregator struct {
	reg        registry.Reader
	tables     *catalog.Tables
	predicates *Predicates
	opts       Options
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

// NewAggregator compiles the module predicates of tables and returns an
// aggregator over the registry.
func NewAggregator(reg registry.Reader, tables *catalog.Tables, opts Options, logger *slog.Logger, metrics *telemetry.Metrics) (*Aggregator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("feedmatrix options: %w", err)
	}
	preds, err := CompilePredicates(tables)
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		reg:        reg,
		tables:     tables,
		predicates: preds,
		opts:       opts,
		logger:     logger.With("component", "feedmatrix"),
		metrics:    metrics,
	}, nil
}

// Limit applies the default for a zero limit and clamps to [1, MaxLimit].
func (a *Aggregator) Limit(limit, def int) int {
	if limit == 0 {
		limit = def
	}
	return max(1, min(a.opts.MaxLimit, limit))
}

// SectorFeedMatrix lists contributing sources per sector. An empty sectorCode
// covers every sector.
func (a *Aggregator) SectorFeedMatrix(ctx context.Context, sectorCode string, limit int) result.Result[Matrix] {
	limit = a.Limit(limit, a.opts.DefaultLimit)

	var scopes []Scope
	if sectorCode == "" {
		for _, s := range a.tables.Sectors() {
			scopes = append(scopes, sectorScope(s))
		}
	} else {
		s, ok := a.tables.Sector(sectorCode)
		if !ok {
			return unknownPage(ctx, a, "sector_matrix", sectorCode, emptyMatrix())
		}
		scopes = []Scope{sectorScope(s)}
	}

	return a.batch(ctx, "sector_matrix", scopes, func(ctx context.Context, sc Scope) ([]SourceSummary, error) {
		rows, err := a.reg.SectorContributors(ctx, registry.SectorRef{Code: sc.Key, Name: sc.Name}, limit)
		if err != nil {
			return nil, err
		}
		return summarizeAll(rows), nil
	})
}

// PageFeedMatrix lists sources per page. An empty pageKey covers every
// module page; a sector key is accepted and uses the contributor rule.
func (a *Aggregator) PageFeedMatrix(ctx context.Context, pageKey string, limit int) result.Result[Matrix] {
	limit = a.Limit(limit, a.opts.DefaultLimit)

	var scopes []Scope
	switch {
	case pageKey == "":
		for _, m := range a.tables.Modules() {
			scopes = append(scopes, moduleScope(m))
		}
	case a.tables.IsSector(pageKey):
		s, _ := a.tables.Sector(pageKey)
		scopes = []Scope{sectorScope(s)}
	default:
		m, ok := a.tables.Module(pageKey)
		if !ok {
			return unknownPage(ctx, a, "page_matrix", pageKey, emptyMatrix())
		}
		scopes = []Scope{moduleScope(m)}
	}

	return a.batch(ctx, "page_matrix", scopes, func(ctx context.Context, sc Scope) ([]SourceSummary, error) {
		if sc.Kind == KindSector {
			rows, err := a.reg.SectorContributors(ctx, registry.SectorRef{Code: sc.Key, Name: sc.Name}, limit)
			if err != nil {
				return nil, err
			}
			return summarizeAll(rows), nil
		}
		return a.moduleSources(ctx, sc.Key, limit)
	})
}

// SourcesForPage lists the sources feeding one page, annotated with
// isRestricted. Sector keys join explicit edges; module keys use the page's
// predicate. A non-empty sectorCode switches to that sector's contributors.
func (a *Aggregator) SourcesForPage(ctx context.Context, pageKey, sectorCode string, limit int) result.Result[[]SourceSummary] {
	empty := []SourceSummary{}
	limit = a.Limit(limit, a.opts.PageSourcesDefaultLimit)

	if !a.tables.IsPage(pageKey) {
		return unknownPage(ctx, a, "sources_for_page", pageKey, empty)
	}

	var (
		out []SourceSummary
		err error
	)
	switch {
	case sectorCode != "":
		s, ok := a.tables.Sector(sectorCode)
		if !ok {
			return unknownPage(ctx, a, "sources_for_page", sectorCode, empty)
		}
		var rows []models.SourceWithEdge
		rows, err = a.reg.SectorContributors(ctx, registry.SectorRef{Code: s.Code, Name: s.Name}, limit)
		out = summarizeAll(rows)
	case a.tables.IsSector(pageKey):
		var rows []models.SourceWithEdge
		rows, err = a.reg.SourcesForSector(ctx, pageKey, limit)
		out = summarizeAll(rows)
	default:
		out, err = a.moduleSources(ctx, pageKey, limit)
	}
	if err != nil {
		a.logger.Error("sources for page failed",
			slog.String("page", pageKey), slog.String("error", err.Error()))
		a.metrics.Degraded(ctx, "sources_for_page", "unavailable")
		return result.Fail(empty, "failed to get sources", err)
	}
	return result.OK(out)
}

// moduleSources filters every source through the module page predicate.
// AllSources is ordered by tier rank then name, and no source reached this
// way is primary, so the shared list ordering holds.
func (a *Aggregator) moduleSources(ctx context.Context, page string, limit int) ([]SourceSummary, error) {
	all, err := a.reg.AllSources(ctx)
	if err != nil {
		return nil, err
	}
	out := []SourceSummary{}
	for _, src := range all {
		ok, err := a.predicates.Admits(page, src)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, summarize(models.SourceWithEdge{Source: src}))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type scopeFunc func(ctx context.Context, sc Scope) ([]SourceSummary, error)

// batch runs fn for every scope with bounded concurrency, keeping scope order.
func (a *Aggregator) batch(ctx context.Context, op string, scopes []Scope, fn scopeFunc) result.Result[Matrix] {
	out := make([]*ScopeMatrix, len(scopes))
	errs := make([]error, len(scopes))

	var (
		g    *errgroup.Group
		gctx = ctx
	)
	if a.opts.BatchMode == BatchAbort {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(a.opts.Concurrency)

	for i, sc := range scopes {
		g.Go(func() error {
			sources, err := fn(gctx, sc)
			if err != nil {
				errs[i] = err
				a.logger.Error("matrix scope failed",
					slog.String("operation", op),
					slog.String("scope", sc.Key),
					slog.String("error", err.Error()))
				if a.opts.BatchMode == BatchAbort {
					return fmt.Errorf("%s: %w", sc.Key, err)
				}
				return nil
			}
			out[i] = &ScopeMatrix{Scope: sc, Stats: scopeStats(sources), Sources: sources}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.metrics.Degraded(ctx, op, "unavailable")
		return result.Fail(emptyMatrix(), fmt.Sprintf("failed to build %s", op), err)
	}

	m := emptyMatrix()
	for _, sm := range out {
		if sm != nil {
			m.Scopes = append(m.Scopes, *sm)
		}
	}
	var firstErr error
	for i, err := range errs {
		if err != nil {
			m.Failed = append(m.Failed, scopes[i].Key)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		a.metrics.Degraded(ctx, op, "unavailable")
		return result.Partial(m, fmt.Sprintf("%d of %d scopes failed", len(m.Failed), len(scopes)), firstErr)
	}
	return result.OK(m)
}

func unknownPage[T any](ctx context.Context, a *Aggregator, op, key string, empty T) result.Result[T] {
	a.logger.Warn("unknown page key", slog.String("operation", op), slog.String("page", key))
	reason := apperr.Reason(apperr.ErrUnknownPage)
	a.metrics.Degraded(ctx, op, reason)
	return result.Empty(empty, reason)
}

func summarizeAll(rows []models.SourceWithEdge) []SourceSummary {
	out := make([]SourceSummary, len(rows))
	for i, r := range rows {
		out[i] = summarize(r)
	}
	return out
}

func sectorScope(s catalog.Sector) Scope {
	return Scope{Key: s.Code, Kind: KindSector, Name: s.Name, NameAr: s.NameAr}
}

func moduleScope(m catalog.Module) Scope {
	return Scope{Key: m.Key, Kind: KindModule, Name: m.Name, NameAr: m.NameAr}
}
