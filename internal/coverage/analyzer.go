// Package coverage reports the declared historical coverage window of a
// registry source. The window is taken from the registry as declared; it is
// not checked against ingested artifacts, and results say so.
package coverage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MaherFSF/Yemenactr-sub008/internal/apperr"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/result"
	"github.com/MaherFSF/Yemenactr-sub008/internal/telemetry"
)

// DefaultStartYear is used when a source declares no historical start.
const DefaultStartYear = 2010

// BasisDeclared marks a window read from registry metadata only.
const BasisDeclared = "declared"

// Coverage is the coverage report for one source.
type Coverage struct {
	SourceID       string     `json:"sourceId"`
	YearsAvailable []int      `json:"yearsAvailable"`
	Gaps           []int      `json:"gaps"`
	LastIngestion  *time.Time `json:"lastIngestion"`
	TotalArtifacts int        `json:"totalArtifacts"`
	Verified       bool       `json:"verified"`
	Basis          string     `json:"basis"`
}

func emptyCoverage(sourceID string) Coverage {
	return Coverage{SourceID: sourceID, YearsAvailable: []int{}, Gaps: []int{}, Basis: BasisDeclared}
}

// Analyzer computes coverage reports.
type Analyzer struct {
	reg     registry.Reader
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewAnalyzer creates an analyzer over the registry.
func NewAnalyzer(reg registry.Reader, logger *slog.Logger, metrics *telemetry.Metrics) *Analyzer {
	return &Analyzer{
		reg:     reg,
		logger:  logger.With("component", "coverage"),
		metrics: metrics,
		now:     time.Now,
	}
}

// GetSourceCoverage returns the declared window [start, end] of the source.
// Gap detection is not performed: Gaps is always empty, TotalArtifacts is
// always zero and Verified is false.
func (a *Analyzer) GetSourceCoverage(ctx context.Context, sourceID string) result.Result[Coverage] {
	src, err := a.reg.GetSource(ctx, sourceID)
	if errors.Is(err, apperr.ErrNotFound) {
		a.logger.Warn("source not found", slog.String("source_id", sourceID))
		a.metrics.Degraded(ctx, "coverage", "not_found")
		return result.Empty(emptyCoverage(sourceID), "not_found")
	}
	if err != nil {
		a.logger.Error("coverage: registry unavailable",
			slog.String("source_id", sourceID), slog.String("error", err.Error()))
		a.metrics.Degraded(ctx, "coverage", "unavailable")
		return result.Fail(emptyCoverage(sourceID), "registry unavailable", err)
	}

	start, end := Window(src.HistoricalStart, src.HistoricalEnd, a.now().Year())
	cov := emptyCoverage(sourceID)
	cov.YearsAvailable = Years(start, end)
	cov.LastIngestion = src.LastFetch
	return result.OK(cov)
}

// Window applies the default bounds: a zero start becomes DefaultStartYear
// and a zero end becomes currentYear.
func Window(start, end, currentYear int) (int, int) {
	if start == 0 {
		start = DefaultStartYear
	}
	if end == 0 {
		end = currentYear
	}
	return start, end
}

// Years lists every year of the closed interval [start, end]. An inverted
// interval yields an empty list.
func Years(start, end int) []int {
	if start > end {
		return []int{}
	}
	out := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		out = append(out, y)
	}
	return out
}
