package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaherFSF/Yemenactr-sub008/internal/apperr"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededEngine(t *testing.T) (*Engine, *registry.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	testutil.Seed(t, db, testutil.SampleRegistry()...)
	return NewEngine(db, testutil.Tables(t), discardLogger(), nil), db
}

func pageKeys(results []models.RoutingResult) []string {
	keys := make([]string, len(results))
	for i, r := range results {
		keys[i] = r.PageKey
	}
	return keys
}

func TestRoute_ExplicitPrimaryTierZeroDataset(t *testing.T) {
	engine, _ := seededEngine(t)

	res := engine.Route(context.Background(), models.Artifact{SourceID: "SRC-01", Type: models.ArtifactDataset})
	require.True(t, res.Success)
	require.Len(t, res.Data, 3)

	assert.Equal(t, models.RoutingResult{
		PageKey: "S05", Weight: 100, IsPrimary: true,
		Rationale: "explicit registry mapping of SRC-01 to S05 (primary)",
	}, res.Data[0])
	assert.Equal(t, "data-repository", res.Data[1].PageKey)
	assert.Equal(t, 80, res.Data[1].Weight)
	assert.False(t, res.Data[1].IsPrimary)
	assert.Equal(t, "dashboard", res.Data[2].PageKey)
	assert.Equal(t, 40, res.Data[2].Weight)
}

func TestRoute_CategoryOnlyDocument(t *testing.T) {
	engine, _ := seededEngine(t)

	res := engine.Route(context.Background(), models.Artifact{SourceID: "SRC-02", Type: models.ArtifactDocument})
	require.True(t, res.Success)
	assert.Equal(t, []string{"research-library", "S02", "S06"}, pageKeys(res.Data))
	assert.Equal(t, []int{80, 60, 60}, []int{res.Data[0].Weight, res.Data[1].Weight, res.Data[2].Weight})
	assert.Contains(t, res.Data[1].Rationale, `"Trade"`)
	assert.Contains(t, res.Data[2].Rationale, `"Energy"`)
}

func TestRoute_UnknownSourceIsEmpty(t *testing.T) {
	engine, _ := seededEngine(t)

	res := engine.Route(context.Background(), models.Artifact{
		SourceID: "does-not-exist", Type: models.ArtifactDataset, Tags: []string{"gdp"},
	})
	assert.True(t, res.Success)
	assert.Equal(t, "not_found", res.Reason)
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
}

func TestRoute_FirstSignalOwnsPage(t *testing.T) {
	engine, _ := seededEngine(t)

	// S08 is an explicit primary edge; the humanitarian tags must not
	// re-emit it at keyword weight.
	res := engine.Route(context.Background(), models.Artifact{
		SourceID: "SRC-03", Type: models.ArtifactEntity, Tags: []string{"humanitarian aid"},
	})
	require.True(t, res.Success)
	assert.Equal(t, []string{"S08", "entities", "S05", "dashboard"}, pageKeys(res.Data))
	assert.Equal(t, 100, res.Data[0].Weight)
	assert.True(t, res.Data[0].IsPrimary)
	assert.Equal(t, 70, res.Data[2].Weight)
	assert.False(t, res.Data[2].IsPrimary)
}

func TestRoute_KeywordWeightCapped(t *testing.T) {
	engine, _ := seededEngine(t)

	res := engine.Route(context.Background(), models.Artifact{
		SourceID: "SRC-05", Type: models.ArtifactProject,
		Tags: []string{"GDP growth", "Inflation", "economy"},
	})
	require.True(t, res.Success)
	require.NotEmpty(t, res.Data)
	assert.Equal(t, "S01", res.Data[0].PageKey)
	assert.Equal(t, KeywordWeightCap, res.Data[0].Weight)
	assert.Equal(t, "tags match 4 keywords for S01", res.Data[0].Rationale)
}

func TestRoute_KeywordSingleMatch(t *testing.T) {
	engine, _ := seededEngine(t)

	res := engine.Route(context.Background(), models.Artifact{
		SourceID: "SRC-05", Type: models.ArtifactIndicator, Tags: []string{"التضخم"},
	})
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "S01", res.Data[0].PageKey)
	assert.Equal(t, KeywordWeightStep, res.Data[0].Weight)
}

func TestRoute_NoSignalsIsEmptySuccess(t *testing.T) {
	engine, _ := seededEngine(t)

	res := engine.Route(context.Background(), models.Artifact{SourceID: "SRC-05", Type: models.ArtifactProject})
	assert.True(t, res.Success)
	assert.Empty(t, res.Reason)
	assert.Empty(t, res.Data)
}

func TestRoute_TierDefaultBoundary(t *testing.T) {
	engine, _ := seededEngine(t)

	// SRC-04 is T1, SRC-02 is T2.
	res := engine.Route(context.Background(), models.Artifact{SourceID: "SRC-04", Type: models.ArtifactProject})
	require.True(t, res.Success)
	assert.Contains(t, pageKeys(res.Data), "dashboard")

	res = engine.Route(context.Background(), models.Artifact{SourceID: "SRC-02", Type: models.ArtifactProject})
	require.True(t, res.Success)
	assert.NotContains(t, pageKeys(res.Data), "dashboard")
}

func TestRoute_InvalidArtifactType(t *testing.T) {
	engine, _ := seededEngine(t)

	res := engine.Route(context.Background(), models.Artifact{SourceID: "SRC-01", Type: "podcast"})
	assert.False(t, res.Success)
	assert.Equal(t, "invalid_input", res.Reason)
	assert.Empty(t, res.Data)
}

func TestRoute_Idempotent(t *testing.T) {
	engine, _ := seededEngine(t)
	in := models.Artifact{SourceID: "SRC-03", Type: models.ArtifactDataset, Tags: []string{"loan data", "report"}}

	first := engine.Route(context.Background(), in)
	second := engine.Route(context.Background(), in)
	assert.Equal(t, first, second)
}

func TestRoute_IgnoresEdgesOutsideEnumeration(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, testutil.Fixture{
		Source: models.Source{SourceID: "SRC-X", Name: "X", Tier: models.TierT3, Status: models.StatusActive},
		Edges:  []models.SectorEdge{testutil.Edge("SRC-X", "S99", true), testutil.Edge("SRC-X", "S03", false)},
	})
	engine := NewEngine(db, testutil.Tables(t), discardLogger(), nil)

	res := engine.Route(context.Background(), models.Artifact{SourceID: "SRC-X", Type: models.ArtifactProject})
	require.True(t, res.Success)
	assert.Equal(t, []string{"S03"}, pageKeys(res.Data))
}

type failingReader struct {
	registry.Reader
	err error
}

func (f failingReader) GetSource(context.Context, string) (*models.Source, error) {
	return nil, f.err
}

func TestRoute_StoreUnavailable(t *testing.T) {
	reader := failingReader{err: fmt.Errorf("registry: get source: %w: %w", apperr.ErrUnavailable, errors.New("database is locked"))}
	engine := NewEngine(reader, testutil.Tables(t), discardLogger(), nil)

	res := engine.Route(context.Background(), models.Artifact{SourceID: "SRC-01", Type: models.ArtifactDataset})
	assert.False(t, res.Success)
	assert.Equal(t, "unavailable", res.Reason)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}
