package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MaherFSF/Yemenactr-sub008/internal/evidence"
	"github.com/MaherFSF/Yemenactr-sub008/internal/feedmatrix"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/testutil"
)

// testEnv sets up a seeded SQLite registry, service, and router for testing.
// An empty authToken means disabled mode; otherwise token mode.
func testEnv(t *testing.T, authToken string) (*evidence.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithDB(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithDB(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*evidence.Service, http.Handler, *registry.DB) {
	t.Helper()

	db := testutil.TestDB(t)
	testutil.Seed(t, db, testutil.SampleRegistry()...)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := evidence.Build(db, testutil.Tables(t), feedmatrix.DefaultOptions(), logger, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	router := NewRouter(svc, authEnabled, authToken, sseHandler)
	return svc, router, db
}

func do(router http.Handler, method, target string, body []byte, token string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouteArtifact(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/route?sourceId=SRC-01&artifactType=dataset", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("route status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RoutingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("success = false, error = %q", resp.Error)
	}
	var keys []string
	for _, r := range resp.Data {
		keys = append(keys, r.PageKey)
	}
	if got := strings.Join(keys, ","); got != "S05,data-repository,dashboard" {
		t.Errorf("pages = %s", got)
	}
	if !resp.Data[0].IsPrimary || resp.Data[0].Weight != 100 {
		t.Errorf("first = %+v, want primary weight 100", resp.Data[0])
	}
}

func TestRouteArtifact_Tags(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/route?sourceId=SRC-05&artifactType=project&tags=GDP%20growth,Inflation,economy", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RoutingResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) == 0 || resp.Data[0].PageKey != "S01" || resp.Data[0].Weight != 50 {
		t.Errorf("data = %+v, want S01 at 50 first", resp.Data)
	}
}

func TestRouteArtifact_UnknownSource(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/route?sourceId=ghost&artifactType=document", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RoutingResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Reason != "not_found" || len(resp.Data) != 0 {
		t.Errorf("resp = %+v, want empty not_found", resp)
	}
}

func TestRouteArtifact_BadInput(t *testing.T) {
	_, router := testEnv(t, "")

	cases := map[string]string{
		"missing source": "/route?artifactType=dataset",
		"missing type":   "/route?sourceId=SRC-01",
		"unknown type":   "/route?sourceId=SRC-01&artifactType=video",
		"bad years":      "/route?sourceId=SRC-01&artifactType=dataset&years=2020,abc",
		"bad language":   "/route?sourceId=SRC-01&artifactType=dataset&language=fr",
	}
	for name, target := range cases {
		w := do(router, http.MethodGet, target, nil, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestRoutePersist(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(RouteRequest{
		SourceID: "SRC-01", ArtifactID: "ds-1", ArtifactType: models.ArtifactDataset, Persist: true,
	})
	w := do(router, http.MethodPost, "/route", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("post status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RouteOutcomeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Persisted != 3 {
		t.Errorf("persisted = %d, want 3", resp.Data.Persisted)
	}

	w = do(router, http.MethodGet, "/routes/SRC-01/ds-1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("routes status = %d", w.Code)
	}
	var stored struct {
		Success bool                   `json:"success"`
		Data    []models.PageRouteEdge `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &stored)
	if len(stored.Data) != 3 {
		t.Errorf("stored = %d edges, want 3", len(stored.Data))
	}
}

func TestRoutePersist_RequiresArtifactID(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(RouteRequest{SourceID: "SRC-01", ArtifactType: models.ArtifactDataset, Persist: true})
	w := do(router, http.MethodPost, "/route", body, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRoutePersist_InvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodPost, "/route", []byte("{"), "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json = %d, want 400", w.Code)
	}
	w = do(router, http.MethodPost, "/route", []byte{}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty body = %d, want 400", w.Code)
	}
}

func TestSourceCoverage(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/sources/SRC-01/coverage", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp CoverageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if got := resp.Data.YearsAvailable; len(got) != 6 || got[0] != 2015 || got[5] != 2020 {
		t.Errorf("years = %v, want 2015..2020", got)
	}
	if resp.Data.Verified {
		t.Error("declared coverage must not be verified")
	}
	if len(resp.Data.Gaps) != 0 {
		t.Errorf("gaps = %v", resp.Data.Gaps)
	}
}

func TestSourceCoverage_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/sources/ghost/coverage", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp CoverageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Reason != "not_found" || resp.Data.SourceID != "ghost" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestListPages(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/pages", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PagesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Pages) != 24 {
		t.Errorf("pages = %d, want 24", len(resp.Pages))
	}
}

func TestSourcesForPage(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/pages/S05/sources", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SourcesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	var ids []string
	for _, s := range resp.Data {
		ids = append(ids, s.SourceID)
	}
	if got := strings.Join(ids, ","); got != "SRC-01,SRC-03,SRC-04" {
		t.Errorf("sources = %s", got)
	}

	w = do(router, http.MethodGet, "/pages/S05/sources?limit=1", nil, "")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 1 {
		t.Errorf("limited = %d, want 1", len(resp.Data))
	}
}

func TestSourcesForPage_UnknownPage(t *testing.T) {
	_, router := testEnv(t, "")

	for _, target := range []string{
		"/pages/nowhere/sources",
		"/pages/S05/sources?sector=S99",
	} {
		w := do(router, http.MethodGet, target, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", target, w.Code)
		}
		var resp SourcesResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if !resp.Success || resp.Reason != "unknown_page" {
			t.Errorf("%s: success = %v, reason = %q", target, resp.Success, resp.Reason)
		}
		if resp.Data == nil || len(resp.Data) != 0 {
			t.Errorf("%s: data = %v, want empty list", target, resp.Data)
		}
	}

	w := do(router, http.MethodGet, "/matrix/sectors?sector=S99", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("unknown sector: status = %d, want 200", w.Code)
	}
	var m MatrixResponse
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if !m.Success || m.Reason != "unknown_page" || len(m.Data.Scopes) != 0 {
		t.Errorf("unknown sector matrix = %+v", m)
	}
}

func TestLimitValidation(t *testing.T) {
	_, router := testEnv(t, "")

	for _, target := range []string{
		"/pages/S05/sources?limit=abc",
		"/pages/S05/sources?limit=-1",
		"/matrix/sectors?limit=101",
		"/matrix/pages?limit=0x10",
	} {
		w := do(router, http.MethodGet, target, nil, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestSectorMatrix(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/matrix/sectors", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp MatrixResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data.Scopes) != 16 {
		t.Errorf("scopes = %d, want 16", len(resp.Data.Scopes))
	}

	w = do(router, http.MethodGet, "/matrix/sectors?sector=S05", nil, "")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data.Scopes) != 1 || resp.Data.Scopes[0].Stats.SourceCount != 3 {
		t.Errorf("S05 = %+v", resp.Data.Scopes)
	}

	w = do(router, http.MethodGet, "/matrix/sectors?sector=S99", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown sector = %d, want 400", w.Code)
	}
}

func TestPageMatrix(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/matrix/pages?page=timeline", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp MatrixResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data.Scopes) != 1 || resp.Data.Scopes[0].Scope.Kind != feedmatrix.KindModule {
		t.Errorf("scopes = %+v", resp.Data.Scopes)
	}
}

func TestMatrixStats(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/matrix/stats", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.TotalSources != 5 || resp.Data.MappedSources != 2 {
		t.Errorf("stats = %+v", resp.Data)
	}
}

func TestMatrixStats_StoreUnavailable(t *testing.T) {
	_, router, db := testEnvWithDB(t, false, "", nil)
	db.Close()

	w := do(router, http.MethodGet, "/matrix/stats", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("closed store = %d, want 503", w.Code)
	}
}

func TestExportMatrix(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/matrix/export", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, exportFilename) {
		t.Errorf("content disposition = %q", cd)
	}
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("records = %d, want header + 4 rows", len(records))
	}
}

func TestExportMatrix_JSON(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/matrix/export?format=json", nil, "")
	var resp struct {
		Success bool              `json:"success"`
		Data    feedmatrix.Export `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.Data.RowCount != 4 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(RouteRequest{SourceID: "SRC-01", ArtifactType: models.ArtifactDataset})
	w := do(router, http.MethodPost, "/route", body, "secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed route = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	for _, target := range []string{"/matrix/export", "/routes/SRC-01/ds-1"} {
		w := do(router, http.MethodGet, target, nil, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s unauthed = %d, want 401", target, w.Code)
		}
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(router, http.MethodGet, "/matrix/export", nil, "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ReadRoutesArePublic(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(router, http.MethodGet, "/matrix/stats", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("public read = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(router, http.MethodGet, "/matrix/export", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	w := do(router, http.MethodGet, "/events", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	// The stub blocks until the request context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// testEnvWithSSE creates a router with a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	_, router, _ := testEnvWithDB(t, authEnabled, token, sseHandler)
	return router
}
