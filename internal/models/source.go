// Package models defines the domain types for the evidence routing service.
package models

import "time"

// Tier is the ordinal trust classification of a source.
type Tier string

// Tiers, best to weakest.
const (
	TierT0      Tier = "T0"
	TierT1      Tier = "T1"
	TierT2      Tier = "T2"
	TierT3      Tier = "T3"
	TierT4      Tier = "T4"
	TierUnknown Tier = "UNKNOWN"
)

// Rank orders tiers for sorting: T0 is 0, anything unrecognised sorts last.
func (t Tier) Rank() int {
	switch t {
	case TierT0:
		return 0
	case TierT1:
		return 1
	case TierT2:
		return 2
	case TierT3:
		return 3
	case TierT4:
		return 4
	default:
		return 5
	}
}

// Status is the lifecycle state of a registry source.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusNeedsKey      Status = "NEEDS_KEY"
	StatusInactive      Status = "INACTIVE"
	StatusDeprecated    Status = "DEPRECATED"
)

// Allowed-use labels that may be surfaced openly.
const (
	AllowedUseOpen   = "Open"
	AllowedUsePublic = "Public"
)

// Source is one row of the source registry.
type Source struct {
	SourceID         string     `json:"sourceId" yaml:"source_id"`
	Name             string     `json:"name" yaml:"name"`
	AltName          string     `json:"altName,omitempty" yaml:"alt_name"`
	Tier             Tier       `json:"tier" yaml:"tier"`
	Status           Status     `json:"status" yaml:"status"`
	AllowedUse       string     `json:"allowedUse,omitempty" yaml:"allowed_use"`
	AccessType       string     `json:"accessType,omitempty" yaml:"access_type"`
	SectorCategory   string     `json:"sectorCategory,omitempty" yaml:"sector_category"`
	SectorsFed       []string   `json:"sectorsFed,omitempty" yaml:"sectors_fed"`
	GeographicScope  string     `json:"geographicScope,omitempty" yaml:"geographic_scope"`
	ConfidenceRating string     `json:"confidenceRating,omitempty" yaml:"confidence_rating"`
	UpdateFrequency  string     `json:"updateFrequency,omitempty" yaml:"update_frequency"`
	WebURL           string     `json:"webUrl,omitempty" yaml:"web_url"`
	LastFetch        *time.Time `json:"lastFetch,omitempty" yaml:"last_fetch"`
	HistoricalStart  int        `json:"historicalStart,omitempty" yaml:"historical_start"`
	HistoricalEnd    int        `json:"historicalEnd,omitempty" yaml:"historical_end"`
}

// IsRestricted reports whether the source's usage rights forbid open surfacing.
func (s *Source) IsRestricted() bool {
	return s.AllowedUse != AllowedUseOpen && s.AllowedUse != AllowedUsePublic
}

// SectorEdge is an explicit, curated source→sector mapping.
type SectorEdge struct {
	SourceID   string `json:"sourceId" yaml:"source_id"`
	SectorCode string `json:"sectorCode" yaml:"sector_code"`
	IsPrimary  bool   `json:"isPrimary" yaml:"is_primary"`
}

// SourceWithEdge is a source annotated with the primary flag of the edge
// through which it was reached (false when reached by a rule, not an edge).
type SourceWithEdge struct {
	Source
	IsPrimary bool `json:"isPrimary"`
}
