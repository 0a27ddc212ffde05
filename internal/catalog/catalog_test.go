package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

func TestDefault_ClosedEnumeration(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	pages := tables.Pages()
	require.Len(t, pages, 24)
	assert.Equal(t, "S01", pages[0])
	assert.Equal(t, "S16", pages[15])
	assert.Equal(t, []string{
		"dashboard", "data-repository", "research-library", "timeline",
		"entities", "corporate-registry", "methodology", "vip-cockpits",
	}, pages[16:])

	for _, p := range pages {
		assert.NotEmpty(t, tables.Keywords(p), "page %s has no keywords", p)
	}
	assert.True(t, tables.IsSector("S05"))
	assert.False(t, tables.IsSector("S17"))
	assert.False(t, tables.IsSector("dashboard"))
	assert.False(t, tables.IsPage("not-a-page"))
}

func TestDefault_CategoryLookupIsCaseInsensitive(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	page, ok := tables.CategoryPage(" trade ")
	require.True(t, ok)
	assert.Equal(t, "S02", page)

	page, ok = tables.CategoryPage("Energy")
	require.True(t, ok)
	assert.Equal(t, "S06", page)

	_, ok = tables.CategoryPage("astrology")
	assert.False(t, ok)
}

func TestDefault_TypeAffinity(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	want := map[models.ArtifactType]string{
		models.ArtifactDataset:  "data-repository",
		models.ArtifactDocument: "research-library",
		models.ArtifactEvent:    "timeline",
		models.ArtifactEntity:   "entities",
	}
	for kind, page := range want {
		got, ok := tables.AffinityPage(kind)
		assert.True(t, ok, kind)
		assert.Equal(t, page, got, kind)
	}
	_, ok := tables.AffinityPage(models.ArtifactProject)
	assert.False(t, ok)
	_, ok = tables.AffinityPage(models.ArtifactIndicator)
	assert.False(t, ok)
}

func TestDefault_PredicateFallback(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "source.status == 'ACTIVE'", tables.PredicateFor("timeline"))
	assert.Equal(t, "source.status == 'ACTIVE'", tables.PredicateFor("corporate-registry"))
	assert.Contains(t, tables.PredicateFor("dashboard"), "T1")
}

func TestFold_Bilingual(t *testing.T) {
	assert.Equal(t, "central bank", Fold("  Central BANK "))
	assert.Equal(t, "التضخم", Fold("التضخم"))
}

func TestParse_RejectsUnknownPage(t *testing.T) {
	data := []byte(`
sectors:
  - { code: S01, name: Macro }
modules:
  - { key: dashboard, name: Dashboard }
keywords:
  S99: [nothing]
predicates:
  default: "true"
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S99")
}

func TestParse_RejectsModuleInSectorSpace(t *testing.T) {
	data := []byte(`
sectors:
  - { code: S01, name: Macro }
modules:
  - { key: S02, name: Sneaky }
predicates:
  default: "true"
`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sectors:
  - { code: S01, name: Macro }
modules:
  - { key: dashboard, name: Dashboard }
keywords:
  S01: [Growth]
categories:
  macro: S01
predicates:
  default: "source.status == 'ACTIVE'"
`), 0o644))

	tables, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"S01", "dashboard"}, tables.Pages())
	assert.Equal(t, []string{"growth"}, tables.Keywords("S01"))
	page, ok := tables.CategoryPage("MACRO")
	assert.True(t, ok)
	assert.Equal(t, "S01", page)
}
