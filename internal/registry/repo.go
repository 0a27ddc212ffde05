package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MaherFSF/Yemenactr-sub008/internal/apperr"
	"github.com/MaherFSF/Yemenactr-sub008/internal/models"
)

const sourceColumns = `sr.source_id, sr.name, sr.alt_name, sr.tier, sr.status, sr.allowed_use,
	sr.access_type, sr.sector_category, sr.sectors_fed, sr.geographic_scope,
	sr.confidence_rating, sr.update_frequency, sr.web_url, sr.last_fetch,
	sr.historical_start, sr.historical_end`

type scanner interface {
	Scan(dest ...any) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("registry: %s: %w: %w", op, apperr.ErrUnavailable, err)
}

func scanSource(sc scanner, extra ...any) (models.Source, error) {
	var (
		s         models.Source
		tier      string
		status    string
		fed       string
		lastFetch sql.NullTime
	)
	dest := []any{
		&s.SourceID, &s.Name, &s.AltName, &tier, &status, &s.AllowedUse,
		&s.AccessType, &s.SectorCategory, &fed, &s.GeographicScope,
		&s.ConfidenceRating, &s.UpdateFrequency, &s.WebURL, &lastFetch,
		&s.HistoricalStart, &s.HistoricalEnd,
	}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return s, err
	}
	s.Tier = models.Tier(tier)
	s.Status = models.Status(status)
	if fed != "" {
		if err := json.Unmarshal([]byte(fed), &s.SectorsFed); err != nil {
			return s, unavailable("decode sectors_fed of "+s.SourceID, err)
		}
	}
	if lastFetch.Valid {
		t := lastFetch.Time
		s.LastFetch = &t
	}
	return s, nil
}

func collectSources(rows *sql.Rows, withEdge bool) ([]models.SourceWithEdge, error) {
	defer rows.Close()
	var out []models.SourceWithEdge
	for rows.Next() {
		var primary bool
		var extra []any
		if withEdge {
			extra = append(extra, &primary)
		}
		s, err := scanSource(rows, extra...)
		if err != nil {
			return nil, err
		}
		out = append(out, models.SourceWithEdge{Source: s, IsPrimary: primary})
	}
	return out, rows.Err()
}

// GetSource returns one source, or apperr.ErrNotFound.
func (db *DB) GetSource(ctx context.Context, sourceID string) (*models.Source, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM source_registry sr WHERE sr.source_id = ?`, sourceID)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registry: source %s: %w", sourceID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get source", err)
	}
	return &s, nil
}

// SectorEdges returns the curated sector edges of a source.
func (db *DB) SectorEdges(ctx context.Context, sourceID string) ([]models.SectorEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT source_id, sector_code, is_primary
		FROM registry_sector_map
		WHERE source_id = ?
		ORDER BY sector_code
	`, sourceID)
	if err != nil {
		return nil, unavailable("sector edges", err)
	}
	defer rows.Close()

	var out []models.SectorEdge
	for rows.Next() {
		var e models.SectorEdge
		if err := rows.Scan(&e.SourceID, &e.SectorCode, &e.IsPrimary); err != nil {
			return nil, unavailable("sector edges", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sector edges", err)
	}
	return out, nil
}

// SourcesForSector joins sources through their explicit edge to sectorCode.
func (db *DB) SourcesForSector(ctx context.Context, sectorCode string, limit int) ([]models.SourceWithEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+sourceColumns+`, rsm.is_primary
		FROM source_registry sr
		INNER JOIN registry_sector_map rsm ON sr.source_id = rsm.source_id
		WHERE rsm.sector_code = ?
		ORDER BY rsm.is_primary DESC, `+tierRankSQL+`, sr.name, sr.source_id
		LIMIT ?
	`, sectorCode, limit)
	if err != nil {
		return nil, unavailable("sources for sector", err)
	}
	out, err := collectSources(rows, true)
	if err != nil {
		return nil, unavailable("sources for sector", err)
	}
	return out, nil
}

// SectorContributors returns sources that feed a sector through an explicit
// edge, their sectors-fed list (code or name), or their category text.
func (db *DB) SectorContributors(ctx context.Context, sector SectorRef, limit int) ([]models.SourceWithEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+sourceColumns+`, COALESCE(rsm.is_primary, 0)
		FROM source_registry sr
		LEFT JOIN registry_sector_map rsm
			ON rsm.source_id = sr.source_id AND rsm.sector_code = ?
		WHERE rsm.source_id IS NOT NULL
		   OR EXISTS (
				SELECT 1 FROM json_each(sr.sectors_fed) je
				WHERE je.value = ? OR lower(je.value) = lower(?)
		   )
		   OR (? <> '' AND instr(lower(sr.sector_category), lower(?)) > 0)
		ORDER BY COALESCE(rsm.is_primary, 0) DESC, `+tierRankSQL+`, sr.name, sr.source_id
		LIMIT ?
	`, sector.Code, sector.Code, sector.Name, sector.Name, sector.Name, limit)
	if err != nil {
		return nil, unavailable("sector contributors", err)
	}
	out, err := collectSources(rows, true)
	if err != nil {
		return nil, unavailable("sector contributors", err)
	}
	return out, nil
}

// AllSources returns every source ordered by tier rank, then name.
func (db *DB) AllSources(ctx context.Context) ([]models.Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+sourceColumns+`
		FROM source_registry sr
		ORDER BY `+tierRankSQL+`, sr.name, sr.source_id
	`)
	if err != nil {
		return nil, unavailable("all sources", err)
	}
	withEdge, err := collectSources(rows, false)
	if err != nil {
		return nil, unavailable("all sources", err)
	}
	out := make([]models.Source, len(withEdge))
	for i, s := range withEdge {
		out[i] = s.Source
	}
	return out, nil
}

// ExportRows returns one row per source×sector edge.
func (db *DB) ExportRows(ctx context.Context) ([]ExportRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT rsm.sector_code, sr.source_id, sr.name, sr.tier, sr.status,
		       sr.confidence_rating, sr.update_frequency, sr.allowed_use, rsm.is_primary
		FROM registry_sector_map rsm
		INNER JOIN source_registry sr ON sr.source_id = rsm.source_id
		ORDER BY rsm.sector_code, rsm.is_primary DESC, `+tierRankSQL+`, sr.name, sr.source_id
	`)
	if err != nil {
		return nil, unavailable("export rows", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		var tier, status string
		if err := rows.Scan(&r.SectorCode, &r.SourceID, &r.Name, &tier, &status,
			&r.ConfidenceRating, &r.UpdateFrequency, &r.AllowedUse, &r.IsPrimary); err != nil {
			return nil, unavailable("export rows", err)
		}
		r.Tier = models.Tier(tier)
		r.Status = models.Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("export rows", err)
	}
	return out, nil
}

// Stats computes registry-wide counts.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{SectorCounts: map[string]int{}, TierCounts: map[string]int{}}

	if err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN json_array_length(sectors_fed) > 0 THEN 1 ELSE 0 END), 0)
		FROM source_registry
	`).Scan(&st.Total, &st.Mapped); err != nil {
		return nil, unavailable("stats totals", err)
	}

	if err := db.countInto(ctx, st.SectorCounts, `
		SELECT sector_code, COUNT(DISTINCT source_id)
		FROM registry_sector_map
		GROUP BY sector_code
	`); err != nil {
		return nil, unavailable("stats sectors", err)
	}
	if err := db.countInto(ctx, st.TierCounts, `
		SELECT tier, COUNT(*) FROM source_registry GROUP BY tier
	`); err != nil {
		return nil, unavailable("stats tiers", err)
	}
	return st, nil
}

func (db *DB) countInto(ctx context.Context, dst map[string]int, query string) error {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}

// UpsertPageRoute inserts or refreshes one routing decision keyed by
// (source, artifact, page).
func (db *DB) UpsertPageRoute(ctx context.Context, e models.PageRouteEdge) error {
	now := e.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO registry_page_map
			(source_id, artifact_id, page_key, weight, rationale, is_primary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, artifact_id, page_key) DO UPDATE SET
			weight     = excluded.weight,
			rationale  = excluded.rationale,
			is_primary = excluded.is_primary,
			updated_at = excluded.updated_at
	`, e.SourceID, e.ArtifactID, e.PageKey, e.Weight, e.Rationale, e.IsPrimary, now, now)
	if err != nil {
		return unavailable("upsert page route", err)
	}
	return nil
}

// PageRoutes returns persisted decisions for one artifact, heaviest first.
func (db *DB) PageRoutes(ctx context.Context, sourceID, artifactID string) ([]models.PageRouteEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT source_id, artifact_id, page_key, weight, rationale, is_primary, created_at, updated_at
		FROM registry_page_map
		WHERE source_id = ? AND artifact_id = ?
		ORDER BY weight DESC, page_key
	`, sourceID, artifactID)
	if err != nil {
		return nil, unavailable("page routes", err)
	}
	defer rows.Close()

	var out []models.PageRouteEdge
	for rows.Next() {
		var e models.PageRouteEdge
		if err := rows.Scan(&e.SourceID, &e.ArtifactID, &e.PageKey, &e.Weight, &e.Rationale,
			&e.IsPrimary, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, unavailable("page routes", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertSource inserts or replaces a source and its sector edges within a transaction.
func (db *DB) UpsertSource(ctx context.Context, src models.Source, edges []models.SectorEdge) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	fed := src.SectorsFed
	if fed == nil {
		fed = []string{}
	}
	fedJSON, _ := json.Marshal(fed)

	var lastFetch any
	if src.LastFetch != nil {
		lastFetch = src.LastFetch.UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO source_registry (
			source_id, name, alt_name, tier, status, allowed_use, access_type,
			sector_category, sectors_fed, geographic_scope, confidence_rating,
			update_frequency, web_url, last_fetch, historical_start, historical_end, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source_id) DO UPDATE SET
			name              = excluded.name,
			alt_name          = excluded.alt_name,
			tier              = excluded.tier,
			status            = excluded.status,
			allowed_use       = excluded.allowed_use,
			access_type       = excluded.access_type,
			sector_category   = excluded.sector_category,
			sectors_fed       = excluded.sectors_fed,
			geographic_scope  = excluded.geographic_scope,
			confidence_rating = excluded.confidence_rating,
			update_frequency  = excluded.update_frequency,
			web_url           = excluded.web_url,
			last_fetch        = excluded.last_fetch,
			historical_start  = excluded.historical_start,
			historical_end    = excluded.historical_end,
			updated_at        = CURRENT_TIMESTAMP
	`, src.SourceID, src.Name, src.AltName, string(src.Tier), string(src.Status), src.AllowedUse,
		src.AccessType, src.SectorCategory, string(fedJSON), src.GeographicScope,
		src.ConfidenceRating, src.UpdateFrequency, src.WebURL, lastFetch,
		src.HistoricalStart, src.HistoricalEnd)
	if err != nil {
		return fmt.Errorf("registry: upsert source: %w", err)
	}

	// Replace edges: delete old then bulk insert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM registry_sector_map WHERE source_id = ?`, src.SourceID); err != nil {
		return fmt.Errorf("registry: clear edges: %w", err)
	}
	if len(edges) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO registry_sector_map (source_id, sector_code, is_primary) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("registry: prepare edge insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range edges {
			if _, err := stmt.ExecContext(ctx, src.SourceID, e.SectorCode, e.IsPrimary); err != nil {
				return fmt.Errorf("registry: insert edge: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteSource removes a source and its sector edges.
func (db *DB) DeleteSource(ctx context.Context, sourceID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM registry_sector_map WHERE source_id = ?`, sourceID); err != nil {
		return unavailable("delete source edges", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM source_registry WHERE source_id = ?`, sourceID); err != nil {
		return unavailable("delete source", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("delete source", err)
	}
	return nil
}

// SourceIDs returns every registered source id.
func (db *DB) SourceIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT source_id FROM source_registry`)
	if err != nil {
		return nil, unavailable("source ids", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("source ids", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("source ids", err)
	}
	return out, nil
}
