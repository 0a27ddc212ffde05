package coverage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaherFSF/Yemenactr-sub008/internal/apperr"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/testutil"
)

func newAnalyzer(t *testing.T, reg registry.Reader) *Analyzer {
	t.Helper()
	a := NewAnalyzer(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	a.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return a
}

func seeded(t *testing.T) *Analyzer {
	t.Helper()
	db := testutil.TestDB(t)
	testutil.Seed(t, db, testutil.SampleRegistry()...)
	return newAnalyzer(t, db)
}

func TestGetSourceCoverage_DeclaredWindow(t *testing.T) {
	res := seeded(t).GetSourceCoverage(context.Background(), "SRC-01")
	require.True(t, res.Success)

	cov := res.Data
	assert.Equal(t, []int{2015, 2016, 2017, 2018, 2019, 2020}, cov.YearsAvailable)
	assert.Empty(t, cov.Gaps)
	assert.NotNil(t, cov.Gaps)
	assert.Zero(t, cov.TotalArtifacts)
	assert.False(t, cov.Verified)
	assert.Equal(t, BasisDeclared, cov.Basis)
	require.NotNil(t, cov.LastIngestion)
	assert.Equal(t, 2024, cov.LastIngestion.Year())
}

func TestGetSourceCoverage_Defaults(t *testing.T) {
	res := seeded(t).GetSourceCoverage(context.Background(), "SRC-02")
	require.True(t, res.Success)

	years := res.Data.YearsAvailable
	require.Len(t, years, 2026-2010+1)
	assert.Equal(t, 2010, years[0])
	assert.Equal(t, 2026, years[len(years)-1])
	assert.Nil(t, res.Data.LastIngestion)
}

func TestGetSourceCoverage_InvertedWindowIsEmpty(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, testutil.Fixture{Source: models.Source{
		SourceID: "SRC-INV", Name: "Inverted", HistoricalStart: 2030,
	}})

	res := newAnalyzer(t, db).GetSourceCoverage(context.Background(), "SRC-INV")
	require.True(t, res.Success)
	assert.Empty(t, res.Data.YearsAvailable)
	assert.NotNil(t, res.Data.YearsAvailable)
}

func TestGetSourceCoverage_NotFound(t *testing.T) {
	res := seeded(t).GetSourceCoverage(context.Background(), "nope")
	assert.True(t, res.Success)
	assert.Equal(t, "not_found", res.Reason)
	assert.Empty(t, res.Data.YearsAvailable)
	assert.Equal(t, "nope", res.Data.SourceID)
}

type brokenReader struct {
	registry.Reader
}

func (brokenReader) GetSource(context.Context, string) (*models.Source, error) {
	return nil, fmt.Errorf("registry: get source: %w: %w", apperr.ErrUnavailable, errors.New("no such table"))
}

func TestGetSourceCoverage_Unavailable(t *testing.T) {
	res := newAnalyzer(t, brokenReader{}).GetSourceCoverage(context.Background(), "SRC-01")
	assert.False(t, res.Success)
	assert.Equal(t, "unavailable", res.Reason)
	assert.Empty(t, res.Data.YearsAvailable)
	assert.Empty(t, res.Data.Gaps)
}

func TestWindow(t *testing.T) {
	tests := []struct {
		start, end, year int
		wantStart        int
		wantEnd          int
	}{
		{0, 0, 2026, 2010, 2026},
		{2001, 0, 2026, 2001, 2026},
		{0, 2012, 2026, 2010, 2012},
		{1999, 2005, 2026, 1999, 2005},
	}
	for _, tt := range tests {
		s, e := Window(tt.start, tt.end, tt.year)
		assert.Equal(t, tt.wantStart, s)
		assert.Equal(t, tt.wantEnd, e)
	}
}
