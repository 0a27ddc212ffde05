// Package evidence coordinates routing, coverage and feed-matrix operations
// behind one service used by the HTTP API, the MCP server and the CLI.
package evidence

import (
	"context"
	"log/slog"

	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/coverage"
	"github.com/MaherFSF/Yemenactr-sub008/internal/feedmatrix"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/result"
	"github.com/MaherFSF/Yemenactr-sub008/internal/routing"
	"github.com/MaherFSF/Yemenactr-sub008/internal/telemetry"
)

// Notifier is told about persisted routing decisions.
type Notifier interface {
	RoutingPersisted(sourceID, artifactID string, edges int)
}

// RouteOutcome is the result of routing an artifact and optionally
// persisting the decision.
type RouteOutcome struct {
	Results   []models.RoutingResult `json:"results"`
	Persisted int                    `json:"persisted"`
}

// PageInfo describes one page of the closed enumeration.
type PageInfo struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	NameAr string `json:"nameAr"`
}

// Service is the evidence routing facade.
type Service struct {
	tables   *catalog.Tables
	engine   *routing.Engine
	recorder *routing.Recorder
	coverage *coverage.Analyzer
	matrix   *feedmatrix.Aggregator
	notifier Notifier
}

// Build wires the engine, recorder, analyzer and aggregator over one registry.
func Build(store registry.Store, tables *catalog.Tables, opts feedmatrix.Options, logger *slog.Logger, metrics *telemetry.Metrics, notifier Notifier) (*Service, error) {
	matrix, err := feedmatrix.NewAggregator(store, tables, opts, logger, metrics)
	if err != nil {
		return nil, err
	}
	return NewService(
		tables,
		routing.NewEngine(store, tables, logger, metrics),
		routing.NewRecorder(store, tables, logger, metrics),
		coverage.NewAnalyzer(store, logger, metrics),
		matrix,
		notifier,
	), nil
}

// NewService creates a new evidence service. notifier may be nil.
func NewService(
	tables *catalog.Tables,
	engine *routing.Engine,
	recorder *routing.Recorder,
	analyzer *coverage.Analyzer,
	matrix *feedmatrix.Aggregator,
	notifier Notifier,
) *Service {
	return &Service{
		tables:   tables,
		engine:   engine,
		recorder: recorder,
		coverage: analyzer,
		matrix:   matrix,
		notifier: notifier,
	}
}

// RouteArtifact ranks destination pages for an artifact.
func (s *Service) RouteArtifact(ctx context.Context, in models.Artifact) result.Result[[]models.RoutingResult] {
	return s.engine.Route(ctx, in)
}

// RouteAndPersist routes an artifact and, when persist is set and routing
// produced pages, stores the decision. Persisting needs an artifact id.
func (s *Service) RouteAndPersist(ctx context.Context, in models.Artifact, persist bool) result.Result[RouteOutcome] {
	routed := s.engine.Route(ctx, in)
	out := RouteOutcome{Results: routed.Data}
	if !routed.Success {
		return result.Result[RouteOutcome]{Success: false, Reason: routed.Reason, Error: routed.Error, Data: out}
	}
	if !persist || len(routed.Data) == 0 {
		return result.Result[RouteOutcome]{Success: true, Reason: routed.Reason, Data: out}
	}

	saved := s.PersistRouting(ctx, in.SourceID, in.ArtifactID, routed.Data)
	out.Persisted = saved.Data
	if !saved.Success {
		return result.Result[RouteOutcome]{Success: false, Reason: saved.Reason, Error: saved.Error, Data: out}
	}
	return result.OK(out)
}

// PersistRouting stores routing results and notifies subscribers on success.
func (s *Service) PersistRouting(ctx context.Context, sourceID, artifactID string, results []models.RoutingResult) result.Result[int] {
	res := s.recorder.Persist(ctx, sourceID, artifactID, results)
	if res.Success && res.Data > 0 && s.notifier != nil {
		s.notifier.RoutingPersisted(sourceID, artifactID, res.Data)
	}
	return res
}

// PersistedRoutes returns stored routing decisions for one artifact.
func (s *Service) PersistedRoutes(ctx context.Context, sourceID, artifactID string) result.Result[[]models.PageRouteEdge] {
	return s.recorder.Routes(ctx, sourceID, artifactID)
}

// SourceCoverage returns the declared coverage window of a source.
func (s *Service) SourceCoverage(ctx context.Context, sourceID string) result.Result[coverage.Coverage] {
	return s.coverage.GetSourceCoverage(ctx, sourceID)
}

// SourcesForPage lists sources feeding one page.
func (s *Service) SourcesForPage(ctx context.Context, pageKey, sectorCode string, limit int) result.Result[[]feedmatrix.SourceSummary] {
	return s.matrix.SourcesForPage(ctx, pageKey, sectorCode, limit)
}

// SectorFeedMatrix lists contributing sources per sector.
func (s *Service) SectorFeedMatrix(ctx context.Context, sectorCode string, limit int) result.Result[feedmatrix.Matrix] {
	return s.matrix.SectorFeedMatrix(ctx, sectorCode, limit)
}

// PageFeedMatrix lists sources per page.
func (s *Service) PageFeedMatrix(ctx context.Context, pageKey string, limit int) result.Result[feedmatrix.Matrix] {
	return s.matrix.PageFeedMatrix(ctx, pageKey, limit)
}

// ExportSectorMatrix renders the flat sector matrix.
func (s *Service) ExportSectorMatrix(ctx context.Context) result.Result[feedmatrix.Export] {
	return s.matrix.ExportSectorMatrix(ctx)
}

// MatrixStats returns registry-wide counts.
func (s *Service) MatrixStats(ctx context.Context) result.Result[feedmatrix.MatrixStats] {
	return s.matrix.MatrixStats(ctx)
}

// Pages lists the closed page enumeration, sectors first.
func (s *Service) Pages() []PageInfo {
	var out []PageInfo
	for _, sec := range s.tables.Sectors() {
		out = append(out, PageInfo{Key: sec.Code, Kind: feedmatrix.KindSector, Name: sec.Name, NameAr: sec.NameAr})
	}
	for _, m := range s.tables.Modules() {
		out = append(out, PageInfo{Key: m.Key, Kind: feedmatrix.KindModule, Name: m.Name, NameAr: m.NameAr})
	}
	return out
}

// IsPage reports whether key is in the page enumeration.
func (s *Service) IsPage(key string) bool {
	return s.tables.IsPage(key)
}
