package feedmatrix

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

// Predicates admits sources to module pages. Each module page has one
// compiled CEL program over a `source` map.
type Predicates struct {
	programs map[string]cel.Program
}

// CompilePredicates compiles the predicate of every module page in tables.
func CompilePredicates(tables *catalog.Tables) (*Predicates, error) {
	env, err := cel.NewEnv(
		cel.Variable("source", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	p := &Predicates{programs: make(map[string]cel.Program)}
	for _, m := range tables.Modules() {
		expr := tables.PredicateFor(m.Key)
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("predicate %s: CEL compile error: %w", m.Key, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("predicate %s: expression must be boolean, got %s", m.Key, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("predicate %s: CEL program error: %w", m.Key, err)
		}
		p.programs[m.Key] = prg
	}
	return p, nil
}

// Admits reports whether src satisfies the predicate of the module page.
func (p *Predicates) Admits(page string, src models.Source) (bool, error) {
	prg, ok := p.programs[page]
	if !ok {
		return false, fmt.Errorf("no predicate for page %q", page)
	}
	out, _, err := prg.Eval(map[string]any{"source": sourceVars(src)})
	if err != nil {
		return false, fmt.Errorf("predicate %s: CEL eval error: %w", page, err)
	}
	admitted, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("predicate %s: result not boolean", page)
	}
	return admitted, nil
}

// sourceVars is the attribute view predicates are written against.
func sourceVars(src models.Source) map[string]string {
	return map[string]string{
		"source_id":         src.SourceID,
		"tier":              string(src.Tier),
		"status":            string(src.Status),
		"access_type":       strings.ToUpper(strings.TrimSpace(src.AccessType)),
		"category":          strings.ToLower(src.SectorCategory),
		"allowed_use":       src.AllowedUse,
		"confidence_rating": src.ConfidenceRating,
	}
}
