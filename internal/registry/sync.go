package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/checksum"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

// SeedFile is the YAML layout of a registry seed.
type SeedFile struct {
	Sources []SeedSource `yaml:"sources"`
}

// SeedSource is a source row plus its curated sector edges.
type SeedSource struct {
	models.Source `yaml:",inline"`
	Sectors       []SeedEdge `yaml:"sectors"`
}

// SeedEdge is one curated sector edge in a seed file.
type SeedEdge struct {
	Code    string `yaml:"code"`
	Primary bool   `yaml:"primary"`
}

// Validate validates one seed row.
func (s SeedSource) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SourceID, validation.Required),
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Tier, validation.In(
			models.TierT0, models.TierT1, models.TierT2, models.TierT3, models.TierT4, models.TierUnknown)),
		validation.Field(&s.Status, validation.In(
			models.StatusActive, models.StatusPendingReview, models.StatusNeedsKey,
			models.StatusInactive, models.StatusDeprecated)),
	)
}

// SyncReport summarises one sync pass.
type SyncReport struct {
	Checksum string
	Skipped  bool
	Upserted int
	Removed  int
	Rejected int
	Dropped  int
}

// Syncer brings the registry in line with a seed file. It remembers the
// checksum of the last applied file so unchanged files are skipped.
type Syncer struct {
	store  Store
	tables *catalog.Tables
	logger *slog.Logger
	prune  bool
	last   string
}

// NewSyncer creates a Syncer. When prune is set, sources missing from the
// seed file are deleted.
func NewSyncer(store Store, tables *catalog.Tables, logger *slog.Logger, prune bool) *Syncer {
	return &Syncer{store: store, tables: tables, logger: logger, prune: prune}
}

// SyncFile reads path and applies it.
func (s *Syncer) SyncFile(ctx context.Context, path string) (SyncReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SyncReport{}, fmt.Errorf("registry: read seed %s: %w", path, err)
	}
	return s.Sync(ctx, data)
}

// Sync applies a seed document:
//   - valid sources are upserted with their edges
//   - edges to sectors outside the enumeration are dropped
//   - with pruning on, sources absent from the document are deleted
func (s *Syncer) Sync(ctx context.Context, data []byte) (SyncReport, error) {
	cs := checksum.Sum(data)
	if cs == s.last {
		return SyncReport{Checksum: cs, Skipped: true}, nil
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return SyncReport{}, fmt.Errorf("registry: parse seed: %w", err)
	}

	report := SyncReport{Checksum: cs}
	seen := make(map[string]struct{}, len(seed.Sources))
	for _, src := range seed.Sources {
		if err := src.Validate(); err != nil {
			report.Rejected++
			s.logger.Warn("sync: rejected source",
				slog.String("source_id", src.SourceID), slog.String("error", err.Error()))
			continue
		}
		if src.Tier == "" {
			src.Tier = models.TierUnknown
		}
		if src.Status == "" {
			src.Status = models.StatusPendingReview
		}

		var edges []models.SectorEdge
		for _, e := range src.Sectors {
			if !s.tables.IsSector(e.Code) {
				report.Dropped++
				s.logger.Warn("sync: dropped edge to unknown sector",
					slog.String("source_id", src.SourceID), slog.String("sector", e.Code))
				continue
			}
			edges = append(edges, models.SectorEdge{SourceID: src.SourceID, SectorCode: e.Code, IsPrimary: e.Primary})
		}

		if err := s.store.UpsertSource(ctx, src.Source, edges); err != nil {
			return report, err
		}
		seen[src.SourceID] = struct{}{}
		report.Upserted++
		s.logger.Debug("sync: upserted", slog.String("source_id", src.SourceID))
	}

	if s.prune {
		ids, err := s.store.SourceIDs(ctx)
		if err != nil {
			return report, err
		}
		for id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			if err := s.store.DeleteSource(ctx, id); err != nil {
				s.logger.Warn("sync: delete failed", slog.String("source_id", id), slog.String("error", err.Error()))
				continue
			}
			report.Removed++
			s.logger.Debug("sync: removed stale", slog.String("source_id", id))
		}
	}

	s.last = cs
	return report, nil
}
