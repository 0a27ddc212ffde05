package models

import "time"

// ArtifactType is the kind of ingested unit being routed.
type ArtifactType string

const (
	ArtifactDataset   ArtifactType = "dataset"
	ArtifactDocument  ArtifactType = "document"
	ArtifactEvent     ArtifactType = "event"
	ArtifactProject   ArtifactType = "project"
	ArtifactEntity    ArtifactType = "entity"
	ArtifactIndicator ArtifactType = "indicator"
)

// ArtifactTypes lists every routable artifact kind.
var ArtifactTypes = []ArtifactType{
	ArtifactDataset, ArtifactDocument, ArtifactEvent,
	ArtifactProject, ArtifactEntity, ArtifactIndicator,
}

// Artifact describes the routing input for one artifact/source pair.
type Artifact struct {
	SourceID   string       `json:"sourceId"`
	ArtifactID string       `json:"artifactId,omitempty"`
	Type       ArtifactType `json:"artifactType"`
	Tags       []string     `json:"tags,omitempty"`
	Language   string       `json:"language,omitempty"` // en, ar or both
	Regime     string       `json:"regime,omitempty"`
	Years      []int        `json:"years,omitempty"`
}

// RoutingResult is one ranked destination candidate.
type RoutingResult struct {
	PageKey   string `json:"pageKey"`
	Weight    int    `json:"weight"`
	Rationale string `json:"rationale"`
	IsPrimary bool   `json:"isPrimary"`
}

// PageRouteEdge is a persisted routing decision.
type PageRouteEdge struct {
	SourceID   string    `json:"sourceId"`
	ArtifactID string    `json:"artifactId"`
	PageKey    string    `json:"pageKey"`
	Weight     int       `json:"weight"`
	Rationale  string    `json:"rationale"`
	IsPrimary  bool      `json:"isPrimary"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
