package routing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/testutil"
)

func TestPersist_RoundTrip(t *testing.T) {
	engine, db := seededEngine(t)
	rec := NewRecorder(db, testutil.Tables(t), discardLogger(), nil)
	ctx := context.Background()

	routed := engine.Route(ctx, models.Artifact{SourceID: "SRC-01", ArtifactID: "doc-1", Type: models.ArtifactDataset})
	require.True(t, routed.Success)

	res := rec.Persist(ctx, "SRC-01", "doc-1", routed.Data)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.Data)

	stored := rec.Routes(ctx, "SRC-01", "doc-1")
	require.True(t, stored.Success)
	require.Len(t, stored.Data, 3)
	assert.Equal(t, "S05", stored.Data[0].PageKey)
	assert.True(t, stored.Data[0].IsPrimary)
	assert.Equal(t, 100, stored.Data[0].Weight)
}

func TestPersist_UpsertKeepsOneEdgePerPage(t *testing.T) {
	db := testutil.TestDB(t)
	rec := NewRecorder(db, testutil.Tables(t), discardLogger(), nil)
	ctx := context.Background()

	first := []models.RoutingResult{{PageKey: "S02", Weight: 60, Rationale: "first"}}
	second := []models.RoutingResult{{PageKey: "S02", Weight: 70, Rationale: "second"}}

	require.True(t, rec.Persist(ctx, "SRC-02", "a-1", first).Success)
	require.True(t, rec.Persist(ctx, "SRC-02", "a-1", second).Success)

	stored := rec.Routes(ctx, "SRC-02", "a-1")
	require.True(t, stored.Success)
	require.Len(t, stored.Data, 1)
	assert.Equal(t, 70, stored.Data[0].Weight)
	assert.Equal(t, "second", stored.Data[0].Rationale)
}

func TestPersist_DropsUnknownPagesAndClampsWeight(t *testing.T) {
	db := testutil.TestDB(t)
	rec := NewRecorder(db, testutil.Tables(t), discardLogger(), nil)
	ctx := context.Background()

	res := rec.Persist(ctx, "SRC-01", "a-2", []models.RoutingResult{
		{PageKey: "S42", Weight: 70},
		{PageKey: "timeline", Weight: 250},
		{PageKey: "S01", Weight: -3},
	})
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Data)

	stored := rec.Routes(ctx, "SRC-01", "a-2")
	require.Len(t, stored.Data, 2)
	assert.Equal(t, "timeline", stored.Data[0].PageKey)
	assert.Equal(t, 100, stored.Data[0].Weight)
	assert.Equal(t, 0, stored.Data[1].Weight)
}

func TestPersist_RequiresArtifactID(t *testing.T) {
	rec := NewRecorder(testutil.TestDB(t), testutil.Tables(t), discardLogger(), nil)

	res := rec.Persist(context.Background(), "SRC-01", "", []models.RoutingResult{{PageKey: "S01", Weight: 50}})
	assert.False(t, res.Success)
	assert.Equal(t, "invalid_input", res.Reason)
	assert.Zero(t, res.Data)
}

func TestPersist_EmptyListWritesNothing(t *testing.T) {
	rec := NewRecorder(testutil.TestDB(t), testutil.Tables(t), discardLogger(), nil)

	res := rec.Persist(context.Background(), "SRC-01", "a-3", nil)
	assert.True(t, res.Success)
	assert.Zero(t, res.Data)
}

func TestPersist_StoreFailureReportsZero(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registry_page_map")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registry_page_map")).
		WillReturnError(errors.New("disk I/O error"))

	rec := NewRecorder(registry.New(conn), testutil.Tables(t), discardLogger(), nil)
	rec.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	res := rec.Persist(context.Background(), "SRC-01", "a-4", []models.RoutingResult{
		{PageKey: "S01", Weight: 50},
		{PageKey: "S02", Weight: 40},
	})
	assert.False(t, res.Success)
	assert.Equal(t, "unavailable", res.Reason)
	assert.Zero(t, res.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}
