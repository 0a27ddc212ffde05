package api

import (
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/MaherFSF/Yemenactr-sub008/internal/coverage"
	"github.com/MaherFSF/Yemenactr-sub008/internal/evidence"
	"github.com/MaherFSF/Yemenactr-sub008/internal/feedmatrix"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

// maxLimit bounds every limit query parameter.
const maxLimit = 100

// RouteRequest is the request body for routing an artifact.
type RouteRequest struct {
	SourceID     string              `json:"sourceId" example:"SRC-01" validate:"required"`
	ArtifactID   string              `json:"artifactId,omitempty" example:"ds-2024-001"`
	ArtifactType models.ArtifactType `json:"artifactType" example:"dataset" validate:"required"`
	Tags         []string            `json:"tags,omitempty" example:"gdp,inflation"`
	Language     string              `json:"language,omitempty" example:"en"`
	Regime       string              `json:"regime,omitempty" example:"aden"`
	Years        []int               `json:"years,omitempty" example:"2019,2020"`
	Persist      bool                `json:"persist,omitempty"`
}

// Validate validates the route request.
func (r RouteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SourceID, validation.Required),
		validation.Field(&r.ArtifactType, validation.Required),
		validation.Field(&r.ArtifactID, validation.When(r.Persist, validation.Required.Error("is required to persist"))),
	)
}

func (r RouteRequest) artifact() models.Artifact {
	return models.Artifact{
		SourceID:   r.SourceID,
		ArtifactID: r.ArtifactID,
		Type:       r.ArtifactType,
		Tags:       r.Tags,
		Language:   r.Language,
		Regime:     r.Regime,
		Years:      r.Years,
	}
}

// listQuery holds the common list query parameters.
type listQuery struct {
	Limit int
}

// Validate validates the list query.
func (q listQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Limit, validation.Min(1), validation.Max(maxLimit)),
	)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.Errors{"limit": validation.NewError("validation_is_int", "must be an integer")}
	}
	return n, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseYears(raw string) ([]int, error) {
	var out []int
	for _, s := range splitList(raw) {
		y, err := strconv.Atoi(s)
		if err != nil {
			return nil, validation.Errors{"years": validation.NewError("validation_is_int", "must be a comma-separated list of years")}
		}
		out = append(out, y)
	}
	return out, nil
}

// RoutingResponse is the envelope returned by GET /route.
type RoutingResponse struct {
	Success bool                   `json:"success"`
	Reason  string                 `json:"reason,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    []models.RoutingResult `json:"data"`
}

// RouteOutcomeResponse is the envelope returned by POST /route.
type RouteOutcomeResponse struct {
	Success bool                  `json:"success"`
	Reason  string                `json:"reason,omitempty"`
	Error   string                `json:"error,omitempty"`
	Data    evidence.RouteOutcome `json:"data"`
}

// CoverageResponse is the envelope returned by GET /sources/{id}/coverage.
type CoverageResponse struct {
	Success bool              `json:"success"`
	Reason  string            `json:"reason,omitempty"`
	Error   string            `json:"error,omitempty"`
	Data    coverage.Coverage `json:"data"`
}

// SourcesResponse is the envelope returned by GET /pages/{key}/sources.
type SourcesResponse struct {
	Success bool                       `json:"success"`
	Reason  string                     `json:"reason,omitempty"`
	Error   string                     `json:"error,omitempty"`
	Data    []feedmatrix.SourceSummary `json:"data"`
}

// MatrixResponse is the envelope returned by the feed matrix endpoints.
type MatrixResponse struct {
	Success bool              `json:"success"`
	Reason  string            `json:"reason,omitempty"`
	Error   string            `json:"error,omitempty"`
	Data    feedmatrix.Matrix `json:"data"`
}

// StatsResponse is the envelope returned by GET /matrix/stats.
type StatsResponse struct {
	Success bool                   `json:"success"`
	Reason  string                 `json:"reason,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    feedmatrix.MatrixStats `json:"data"`
}

// PagesResponse lists the page enumeration.
type PagesResponse struct {
	Pages []evidence.PageInfo `json:"pages" validate:"required"`
}
