package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MaherFSF/Yemenactr-sub008/internal/apperr"
	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/result"
	"github.com/MaherFSF/Yemenactr-sub008/internal/telemetry"
)

// Recorder persists routing decisions as page route edges.
type Recorder struct {
	store   registry.Writer
	tables  *catalog.Tables
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store registry.Writer, tables *catalog.Tables, logger *slog.Logger, metrics *telemetry.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		tables:  tables,
		logger:  logger.With("component", "routing"),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Persist upserts one edge per result keyed by (source, artifact, page) and
// returns how many were written. Page keys outside the enumeration are
// dropped and weights are clamped to [0, 100]. Writes are not atomic: on a
// store failure the edges already written stay written.
func (r *Recorder) Persist(ctx context.Context, sourceID, artifactID string, results []models.RoutingResult) result.Result[int] {
	if sourceID == "" || artifactID == "" {
		err := fmt.Errorf("%w: source id and artifact id are required", apperr.ErrInvalidInput)
		r.metrics.Degraded(ctx, "persist", "invalid_input")
		return result.Fail(0, err.Error(), err)
	}

	now := r.now()
	written := 0
	for _, res := range results {
		if !r.tables.IsPage(res.PageKey) {
			r.logger.Warn("dropped route to unknown page",
				slog.String("source_id", sourceID),
				slog.String("artifact_id", artifactID),
				slog.String("page", res.PageKey))
			r.metrics.Degraded(ctx, "persist", "dropped")
			continue
		}
		edge := models.PageRouteEdge{
			SourceID:   sourceID,
			ArtifactID: artifactID,
			PageKey:    res.PageKey,
			Weight:     max(0, min(100, res.Weight)),
			Rationale:  res.Rationale,
			IsPrimary:  res.IsPrimary,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.store.UpsertPageRoute(ctx, edge); err != nil {
			r.logger.Error("persist routing failed",
				slog.String("source_id", sourceID),
				slog.String("artifact_id", artifactID),
				slog.Int("written", written),
				slog.String("error", err.Error()))
			r.metrics.Persisted(ctx, written)
			r.metrics.Degraded(ctx, "persist", "unavailable")
			return result.Fail(0, "registry unavailable", err)
		}
		written++
	}

	r.metrics.Persisted(ctx, written)
	r.logger.Info("routing persisted",
		slog.String("source_id", sourceID),
		slog.String("artifact_id", artifactID),
		slog.Int("edges", written))
	return result.OK(written)
}

// Routes returns the persisted decisions for one artifact.
func (r *Recorder) Routes(ctx context.Context, sourceID, artifactID string) result.Result[[]models.PageRouteEdge] {
	empty := []models.PageRouteEdge{}
	edges, err := r.store.PageRoutes(ctx, sourceID, artifactID)
	if err != nil {
		r.logger.Error("load persisted routes failed",
			slog.String("source_id", sourceID), slog.String("error", err.Error()))
		r.metrics.Degraded(ctx, "routes", "unavailable")
		return result.Fail(empty, "registry unavailable", err)
	}
	if edges == nil {
		edges = empty
	}
	return result.OK(edges)
}
