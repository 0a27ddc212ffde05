package feedmatrix

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/result"
)

// ExportHeader is the header row of the sector matrix export.
var ExportHeader = []string{
	"Sector", "Source ID", "Name", "Tier", "Status", "Confidence",
	"Update Frequency", "Allowed Use", "Is Primary",
}

// Export is the flat sector matrix as delimited text.
type Export struct {
	CSV      string `json:"csv"`
	RowCount int    `json:"rowCount"`
}

// ExportSectorMatrix renders one line per source×sector edge. The name field
// is always quoted with embedded quotes doubled; other fields are quoted only
// when they contain a delimiter, quote or line break.
func (a *Aggregator) ExportSectorMatrix(ctx context.Context) result.Result[Export] {
	rows, err := a.reg.ExportRows(ctx)
	if err != nil {
		a.logger.Error("export failed", slog.String("error", err.Error()))
		a.metrics.Degraded(ctx, "export", "unavailable")
		return result.Fail(Export{}, "failed to export", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(ExportHeader, ","))
	for _, r := range rows {
		b.WriteByte('\n')
		b.WriteString(exportLine(r))
	}

	a.logger.Info("sector matrix exported", slog.Int("rows", len(rows)))
	return result.OK(Export{CSV: b.String(), RowCount: len(rows)})
}

func exportLine(r registry.ExportRow) string {
	primary := "No"
	if r.IsPrimary {
		primary = "Yes"
	}
	fields := []string{
		csvField(r.SectorCode, false),
		csvField(r.SourceID, false),
		csvField(r.Name, true),
		csvField(string(r.Tier), false),
		csvField(string(r.Status), false),
		csvField(r.ConfidenceRating, false),
		csvField(r.UpdateFrequency, false),
		csvField(r.AllowedUse, false),
		primary,
	}
	return strings.Join(fields, ",")
}

func csvField(s string, always bool) string {
	if always || strings.ContainsAny(s, ",\"\r\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// MatrixStats are registry-wide counts.
type MatrixStats struct {
	TotalSources     int            `json:"totalSources"`
	MappedSources    int            `json:"mappedSources"`
	UnmappedSources  int            `json:"unmappedSources"`
	SectorCoverage   map[string]int `json:"sectorCoverage"`
	TierDistribution map[string]int `json:"tierDistribution"`
}

func emptyStats() MatrixStats {
	return MatrixStats{SectorCoverage: map[string]int{}, TierDistribution: map[string]int{}}
}

// MatrixStats returns total, mapped and unmapped counts with per-sector and
// per-tier breakdowns. Mapped means a non-empty sectors-fed list.
func (a *Aggregator) MatrixStats(ctx context.Context) result.Result[MatrixStats] {
	st, err := a.reg.Stats(ctx)
	if err != nil {
		a.logger.Error("matrix stats failed", slog.String("error", err.Error()))
		a.metrics.Degraded(ctx, "stats", "unavailable")
		return result.Fail(emptyStats(), "failed to get stats", err)
	}
	if st.Mapped > st.Total {
		err := fmt.Errorf("mapped count %d exceeds total %d", st.Mapped, st.Total)
		a.logger.Error("matrix stats inconsistent", slog.String("error", err.Error()))
		return result.Fail(emptyStats(), "failed to get stats", err)
	}

	out := emptyStats()
	out.TotalSources = st.Total
	out.MappedSources = st.Mapped
	out.UnmappedSources = st.Total - st.Mapped
	maps.Copy(out.SectorCoverage, st.SectorCounts)
	maps.Copy(out.TierDistribution, st.TierCounts)
	return result.OK(out)
}
