package registry

import (
	"context"

	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

// Reader is the read side of the registry used by routing and the feed matrix.
// Consumers depend on this interface rather than *DB so tests can substitute
// failing or mocked stores.
type Reader interface {
	GetSource(ctx context.Context, sourceID string) (*models.Source, error)
	SectorEdges(ctx context.Context, sourceID string) ([]models.SectorEdge, error)
	SourcesForSector(ctx context.Context, sectorCode string, limit int) ([]models.SourceWithEdge, error)
	SectorContributors(ctx context.Context, sector SectorRef, limit int) ([]models.SourceWithEdge, error)
	AllSources(ctx context.Context) ([]models.Source, error)
	ExportRows(ctx context.Context) ([]ExportRow, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Writer persists routing decisions.
type Writer interface {
	UpsertPageRoute(ctx context.Context, edge models.PageRouteEdge) error
	PageRoutes(ctx context.Context, sourceID, artifactID string) ([]models.PageRouteEdge, error)
}

// Store is the full registry surface.
type Store interface {
	Reader
	Writer
	UpsertSource(ctx context.Context, src models.Source, edges []models.SectorEdge) error
	DeleteSource(ctx context.Context, sourceID string) error
	SourceIDs(ctx context.Context) (map[string]struct{}, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// SectorRef identifies a sector by code and English name, both of which may
// appear in a source's free-text fields.
type SectorRef struct {
	Code string
	Name string
}

// ExportRow is one source×sector edge of the flat matrix export.
type ExportRow struct {
	SectorCode       string
	SourceID         string
	Name             string
	Tier             models.Tier
	Status           models.Status
	ConfidenceRating string
	UpdateFrequency  string
	AllowedUse       string
	IsPrimary        bool
}

// Stats holds registry-wide counts.
type Stats struct {
	Total        int
	Mapped       int
	SectorCounts map[string]int
	TierCounts   map[string]int
}
