// Package testutil provides shared test helpers for setting up registries and routing tables.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
)

// TestDB creates a temporary SQLite registry that is automatically cleaned up.
func TestDB(t *testing.T) *registry.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "registry-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := registry.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Tables returns the embedded routing tables.
func Tables(t *testing.T) *catalog.Tables {
	t.Helper()
	tables, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	return tables
}

// Fixture is a source with its sector edges.
type Fixture struct {
	Source models.Source
	Edges  []models.SectorEdge
}

// Edge builds a sector edge for a fixture.
func Edge(sourceID, sector string, primary bool) models.SectorEdge {
	return models.SectorEdge{SourceID: sourceID, SectorCode: sector, IsPrimary: primary}
}

// Seed upserts fixtures into db.
func Seed(t *testing.T, db registry.Store, fixtures ...Fixture) {
	t.Helper()
	for _, f := range fixtures {
		if err := db.UpsertSource(context.Background(), f.Source, f.Edges); err != nil {
			t.Fatalf("seed %s: %v", f.Source.SourceID, err)
		}
	}
}

// SampleRegistry is a small registry covering every tier and both routing paths.
func SampleRegistry() []Fixture {
	fetched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Fixture{
		{
			Source: models.Source{
				SourceID: "SRC-01", Name: "Central Bank Bulletin", Tier: models.TierT0,
				Status: models.StatusActive, AllowedUse: "Open", AccessType: "API",
				ConfidenceRating: "A", UpdateFrequency: "monthly", SectorsFed: []string{"S05"},
				LastFetch: &fetched, HistoricalStart: 2015, HistoricalEnd: 2020,
			},
			Edges: []models.SectorEdge{Edge("SRC-01", "S05", true)},
		},
		{
			Source: models.Source{
				SourceID: "SRC-02", Name: "Trade \"Monitor\"", Tier: models.TierT2,
				Status: models.StatusActive, AllowedUse: "Restricted", AccessType: "PDF",
				SectorCategory: "Trade, Energy", ConfidenceRating: "B", UpdateFrequency: "quarterly",
			},
		},
		{
			Source: models.Source{
				SourceID: "SRC-03", Name: "Aid Tracker", Tier: models.TierT1,
				Status: models.StatusActive, AllowedUse: "Public", AccessType: "CSV",
				SectorCategory: "Humanitarian stakeholder survey", ConfidenceRating: "A",
				SectorsFed: []string{"S08", "S05"},
			},
			Edges: []models.SectorEdge{Edge("SRC-03", "S08", true), Edge("SRC-03", "S05", false)},
		},
		{
			Source: models.Source{
				SourceID: "SRC-04", Name: "Ministry Portal", Tier: models.TierT1,
				Status: models.StatusPendingReview, AllowedUse: "Open", AccessType: "WEB",
				ConfidenceRating: "C",
			},
			Edges: []models.SectorEdge{Edge("SRC-04", "S05", false)},
		},
		{
			Source: models.Source{
				SourceID: "SRC-05", Name: "Local Survey", Tier: models.TierUnknown,
				Status: models.StatusInactive, AccessType: "MANUAL",
			},
		},
	}
}
