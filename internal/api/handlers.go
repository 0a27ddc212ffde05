package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MaherFSF/Yemenactr-sub008/internal/evidence"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

// exportFilename is the attachment name of the CSV export.
const exportFilename = "sector-feed-matrix.csv"

// Handler holds API route handlers.
type Handler struct {
	svc *evidence.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *evidence.Service) *Handler {
	return &Handler{svc: svc}
}

// queryLimit parses and validates the limit query parameter. Zero means the
// operation default.
func queryLimit(r *http.Request) (int, error) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		return 0, err
	}
	if limit == 0 {
		return 0, nil
	}
	if err := (listQuery{Limit: limit}).Validate(); err != nil {
		return 0, err
	}
	return limit, nil
}

// RouteArtifact handles GET /api/route.
//
//	@Summary		Rank destination pages for an artifact
//	@Tags			routing
//	@Produce		json
//	@Param			sourceId		query		string	true	"Registry source id"
//	@Param			artifactType	query		string	true	"Artifact type"	Enums(dataset, document, event, project, entity, indicator)
//	@Param			tags			query		string	false	"Comma-separated tags"
//	@Param			language		query		string	false	"Artifact language"	Enums(en, ar, both)
//	@Param			regime			query		string	false	"Regime tag"
//	@Param			years			query		string	false	"Comma-separated years"
//	@Success		200				{object}	RoutingResponse
//	@Failure		400				{object}	RoutingResponse
//	@Failure		503				{object}	RoutingResponse
//	@Router			/route [get]
func (h *Handler) RouteArtifact(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	years, err := parseYears(q.Get("years"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	req := RouteRequest{
		SourceID:     q.Get("sourceId"),
		ArtifactType: models.ArtifactType(q.Get("artifactType")),
		Tags:         splitList(q.Get("tags")),
		Language:     q.Get("language"),
		Regime:       q.Get("regime"),
		Years:        years,
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeResult(w, r, "route artifact", h.svc.RouteArtifact(r.Context(), req.artifact()))
}

// RoutePersist handles POST /api/route.
//
//	@Summary		Route an artifact and optionally persist the decision
//	@Tags			routing
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RouteRequest	true	"Artifact to route"
//	@Success		200		{object}	RouteOutcomeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	RouteOutcomeResponse
//	@Security		BearerAuth
//	@Router			/route [post]
func (h *Handler) RoutePersist(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return
		}
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody("request body is required"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeResult(w, r, "route and persist", h.svc.RouteAndPersist(r.Context(), req.artifact(), req.Persist))
}

// PersistedRoutes handles GET /api/routes/{sourceId}/{artifactId}.
//
//	@Summary		List persisted routing decisions for an artifact
//	@Tags			routing
//	@Produce		json
//	@Param			sourceId	path		string	true	"Registry source id"
//	@Param			artifactId	path		string	true	"Artifact id"
//	@Success		200			{array}		models.PageRouteEdge
//	@Failure		503			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/routes/{sourceId}/{artifactId} [get]
func (h *Handler) PersistedRoutes(w http.ResponseWriter, r *http.Request) {
	res := h.svc.PersistedRoutes(r.Context(), chi.URLParam(r, "sourceId"), chi.URLParam(r, "artifactId"))
	writeResult(w, r, "persisted routes", res)
}

// SourceCoverage handles GET /api/sources/{id}/coverage.
//
//	@Summary		Declared coverage window of a source
//	@Tags			sources
//	@Produce		json
//	@Param			id	path		string	true	"Registry source id"
//	@Success		200	{object}	CoverageResponse
//	@Failure		503	{object}	CoverageResponse
//	@Router			/sources/{id}/coverage [get]
func (h *Handler) SourceCoverage(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, "source coverage", h.svc.SourceCoverage(r.Context(), chi.URLParam(r, "id")))
}

// ListPages handles GET /api/pages.
//
//	@Summary		List the page enumeration
//	@Tags			pages
//	@Produce		json
//	@Success		200	{object}	PagesResponse
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PagesResponse{Pages: h.svc.Pages()})
}

// SourcesForPage handles GET /api/pages/{key}/sources.
//
//	@Summary		List sources feeding a page
//	@Tags			pages
//	@Produce		json
//	@Param			key		path		string	true	"Page key"
//	@Param			sector	query		string	false	"Restrict to contributors of a sector"
//	@Param			limit	query		int		false	"Maximum sources"
//	@Success		200		{object}	SourcesResponse
//	@Failure		400		{object}	SourcesResponse
//	@Failure		503		{object}	SourcesResponse
//	@Router			/pages/{key}/sources [get]
func (h *Handler) SourcesForPage(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	sector := strings.TrimSpace(r.URL.Query().Get("sector"))
	res := h.svc.SourcesForPage(r.Context(), chi.URLParam(r, "key"), sector, limit)
	writeResult(w, r, "sources for page", res)
}

// SectorMatrix handles GET /api/matrix/sectors.
//
//	@Summary		Contributing sources per sector
//	@Tags			matrix
//	@Produce		json
//	@Param			sector	query		string	false	"Single sector code; all sectors when empty"
//	@Param			limit	query		int		false	"Maximum sources per sector"
//	@Success		200		{object}	MatrixResponse
//	@Failure		400		{object}	MatrixResponse
//	@Failure		503		{object}	MatrixResponse
//	@Router			/matrix/sectors [get]
func (h *Handler) SectorMatrix(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res := h.svc.SectorFeedMatrix(r.Context(), strings.TrimSpace(r.URL.Query().Get("sector")), limit)
	writeResult(w, r, "sector feed matrix", res)
}

// PageMatrix handles GET /api/matrix/pages.
//
//	@Summary		Sources per page
//	@Tags			matrix
//	@Produce		json
//	@Param			page	query		string	false	"Single page key; all modules when empty"
//	@Param			limit	query		int		false	"Maximum sources per page"
//	@Success		200		{object}	MatrixResponse
//	@Failure		400		{object}	MatrixResponse
//	@Failure		503		{object}	MatrixResponse
//	@Router			/matrix/pages [get]
func (h *Handler) PageMatrix(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res := h.svc.PageFeedMatrix(r.Context(), strings.TrimSpace(r.URL.Query().Get("page")), limit)
	writeResult(w, r, "page feed matrix", res)
}

// MatrixStats handles GET /api/matrix/stats.
//
//	@Summary		Registry-wide mapping counts
//	@Tags			matrix
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		503	{object}	StatsResponse
//	@Router			/matrix/stats [get]
func (h *Handler) MatrixStats(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, "matrix stats", h.svc.MatrixStats(r.Context()))
}

// ExportMatrix handles GET /api/matrix/export.
//
//	@Summary		Export the sector matrix as CSV
//	@Tags			matrix
//	@Produce		text/csv
//	@Produce		json
//	@Param			format	query		string	false	"Response format"	Enums(csv, json)
//	@Success		200		{string}	string
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/matrix/export [get]
func (h *Handler) ExportMatrix(w http.ResponseWriter, r *http.Request) {
	res := h.svc.ExportSectorMatrix(r.Context())
	if !res.Success || r.URL.Query().Get("format") == "json" {
		writeResult(w, r, "export sector matrix", res)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, res.Data.CSV); err != nil {
		slog.Error("export write failed", slog.String("error", err.Error()))
	}
}
