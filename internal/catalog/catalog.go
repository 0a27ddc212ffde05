// Package catalog holds the closed page enumeration and the routing tables
// (keywords, category map, type affinity, module predicates) as immutable data.
package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	pkgconfig "github.com/MaherFSF/Yemenactr-sub008/pkg/config"
)

//go:embed tables.yaml
var defaultTables []byte

var sectorCodeRe = regexp.MustCompile(`^S[0-9]{2}$`)

// Sector is a topical destination page.
type Sector struct {
	Code   string `yaml:"code" json:"code"`
	Name   string `yaml:"name" json:"name"`
	NameAr string `yaml:"name_ar" json:"nameAr"`
}

// Validate validates a sector definition.
func (s Sector) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Code, validation.Required, validation.Match(sectorCodeRe)),
		validation.Field(&s.Name, validation.Required),
	)
}

// Module is a functional destination page.
type Module struct {
	Key    string `yaml:"key" json:"key"`
	Name   string `yaml:"name" json:"name"`
	NameAr string `yaml:"name_ar" json:"nameAr"`
}

// Validate validates a module definition.
func (m Module) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Key, validation.Required, validation.By(func(any) error {
			if sectorCodeRe.MatchString(m.Key) {
				return fmt.Errorf("module key %q collides with sector code space", m.Key)
			}
			return nil
		})),
		validation.Field(&m.Name, validation.Required),
	)
}

// TierDefault routes high-tier sources to one page.
type TierDefault struct {
	Page  string        `yaml:"page"`
	Tiers []models.Tier `yaml:"tiers"`
}

// PredicateTable maps module pages to CEL expressions over a source.
type PredicateTable struct {
	Default string            `yaml:"default"`
	Pages   map[string]string `yaml:"pages"`
}

type tablesFile struct {
	Sectors      []Sector            `yaml:"sectors"`
	Modules      []Module            `yaml:"modules"`
	Keywords     map[string][]string `yaml:"keywords"`
	Categories   map[string]string   `yaml:"categories"`
	TypeAffinity map[string]string   `yaml:"type_affinity"`
	TierDefault  TierDefault         `yaml:"tier_default"`
	Predicates   PredicateTable      `yaml:"predicates"`
}

// Validate checks that every table refers only to pages of the enumeration.
func (f *tablesFile) Validate() error {
	if err := validation.ValidateStruct(f,
		validation.Field(&f.Sectors, validation.Required),
		validation.Field(&f.Modules, validation.Required),
	); err != nil {
		return err
	}

	pages := make(map[string]struct{}, len(f.Sectors)+len(f.Modules))
	for _, s := range f.Sectors {
		if _, dup := pages[s.Code]; dup {
			return fmt.Errorf("duplicate sector %q", s.Code)
		}
		pages[s.Code] = struct{}{}
	}
	for _, m := range f.Modules {
		if _, dup := pages[m.Key]; dup {
			return fmt.Errorf("duplicate module %q", m.Key)
		}
		pages[m.Key] = struct{}{}
	}

	known := func(what, page string) error {
		if _, ok := pages[page]; !ok {
			return fmt.Errorf("%s refers to unknown page %q", what, page)
		}
		return nil
	}
	for page := range f.Keywords {
		if err := known("keywords", page); err != nil {
			return err
		}
	}
	for token, page := range f.Categories {
		if err := known("category "+token, page); err != nil {
			return err
		}
	}
	for kind, page := range f.TypeAffinity {
		if !validArtifactType(models.ArtifactType(kind)) {
			return fmt.Errorf("type_affinity: unknown artifact type %q", kind)
		}
		if err := known("type_affinity "+kind, page); err != nil {
			return err
		}
	}
	if f.TierDefault.Page != "" {
		if err := known("tier_default", f.TierDefault.Page); err != nil {
			return err
		}
	}
	if f.Predicates.Default == "" {
		return fmt.Errorf("predicates: default expression is required")
	}
	for page := range f.Predicates.Pages {
		if err := known("predicates", page); err != nil {
			return err
		}
		if sectorCodeRe.MatchString(page) {
			return fmt.Errorf("predicates: sector page %q is routed by sector edges", page)
		}
	}
	return nil
}

// Tables is the loaded, read-only routing configuration.
type Tables struct {
	sectors      []Sector
	modules      []Module
	pages        []string
	pageSet      map[string]struct{}
	keywords     map[string][]string
	categories   map[string]string
	typeAffinity map[models.ArtifactType]string
	tierDefault  TierDefault
	predicates   PredicateTable
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// Load reads tables from path, or the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	var f tablesFile
	if err := pkgconfig.Load(path, &f); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return build(&f), nil
}

// Parse builds tables from YAML bytes.
func Parse(data []byte) (*Tables, error) {
	var f tablesFile
	if err := pkgconfig.Parse(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return build(&f), nil
}

func build(f *tablesFile) *Tables {
	t := &Tables{
		sectors:      append([]Sector(nil), f.Sectors...),
		modules:      append([]Module(nil), f.Modules...),
		pageSet:      make(map[string]struct{}),
		keywords:     make(map[string][]string, len(f.Keywords)),
		categories:   make(map[string]string, len(f.Categories)),
		typeAffinity: make(map[models.ArtifactType]string, len(f.TypeAffinity)),
		tierDefault:  f.TierDefault,
		predicates:   PredicateTable{Default: f.Predicates.Default, Pages: make(map[string]string, len(f.Predicates.Pages))},
	}
	for _, s := range f.Sectors {
		t.pages = append(t.pages, s.Code)
	}
	for _, m := range f.Modules {
		t.pages = append(t.pages, m.Key)
	}
	for _, p := range t.pages {
		t.pageSet[p] = struct{}{}
	}
	for page, kws := range f.Keywords {
		folded := make([]string, 0, len(kws))
		for _, kw := range kws {
			if k := Fold(kw); k != "" {
				folded = append(folded, k)
			}
		}
		t.keywords[page] = folded
	}
	for token, page := range f.Categories {
		t.categories[strings.ToUpper(strings.TrimSpace(token))] = page
	}
	for kind, page := range f.TypeAffinity {
		t.typeAffinity[models.ArtifactType(kind)] = page
	}
	for page, expr := range f.Predicates.Pages {
		t.predicates.Pages[page] = expr
	}
	return t
}

// Pages returns the closed enumeration: sectors first, then modules.
func (t *Tables) Pages() []string {
	return append([]string(nil), t.pages...)
}

// IsPage reports whether key is in the enumeration.
func (t *Tables) IsPage(key string) bool {
	_, ok := t.pageSet[key]
	return ok
}

// IsSector reports whether key is a sector page of the enumeration.
func (t *Tables) IsSector(key string) bool {
	return sectorCodeRe.MatchString(key) && t.IsPage(key)
}

// Sectors returns sector definitions in enumeration order.
func (t *Tables) Sectors() []Sector {
	return append([]Sector(nil), t.sectors...)
}

// Modules returns module definitions in enumeration order.
func (t *Tables) Modules() []Module {
	return append([]Module(nil), t.modules...)
}

// Sector looks up a sector by code.
func (t *Tables) Sector(code string) (Sector, bool) {
	for _, s := range t.sectors {
		if s.Code == code {
			return s, true
		}
	}
	return Sector{}, false
}

// Module looks up a module page by key.
func (t *Tables) Module(key string) (Module, bool) {
	for _, m := range t.modules {
		if m.Key == key {
			return m, true
		}
	}
	return Module{}, false
}

// Keywords returns the folded keywords for a page.
func (t *Tables) Keywords(page string) []string {
	return t.keywords[page]
}

// CategoryPage maps one free-text category token onto a page.
func (t *Tables) CategoryPage(token string) (string, bool) {
	page, ok := t.categories[strings.ToUpper(strings.TrimSpace(token))]
	return page, ok
}

// AffinityPage returns the module page an artifact type is routed to.
func (t *Tables) AffinityPage(kind models.ArtifactType) (string, bool) {
	page, ok := t.typeAffinity[kind]
	return page, ok
}

// TierDefault returns the tier-default rule.
func (t *Tables) TierDefault() TierDefault {
	return TierDefault{Page: t.tierDefault.Page, Tiers: append([]models.Tier(nil), t.tierDefault.Tiers...)}
}

// PredicateFor returns the CEL expression that admits sources to a module page.
func (t *Tables) PredicateFor(page string) string {
	if expr, ok := t.predicates.Pages[page]; ok {
		return expr
	}
	return t.predicates.Default
}

// Fold normalises text for bilingual keyword comparison.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

func validArtifactType(kind models.ArtifactType) bool {
	for _, k := range models.ArtifactTypes {
		if k == kind {
			return true
		}
	}
	return false
}
