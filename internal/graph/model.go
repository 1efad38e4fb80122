// Package graph provides the knowledge graph data model for Engram.
//
// It defines the entity and relation types that make up a persisted memory
// graph: named nodes carrying free-text observations and usage metadata, and
// directed, typed edges between entity names.
package graph

import "time"

// Confidence classifies how reliable an entity's observations are considered.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Metadata holds provenance and usage-tracking fields for an entity.
type Metadata struct {
	// SourceFile is an optional provenance tag naming where the entity's
	// information came from.
	SourceFile string `json:"sourceFile,omitempty"`

	// Confidence is one of high, medium, or low.
	Confidence Confidence `json:"confidence,omitempty"`

	// AccessCount is incremented by read-path operations.
	AccessCount int `json:"accessCount"`

	// LastAccessedAt is the time of the most recent access-count increment.
	LastAccessedAt time.Time `json:"lastAccessedAt,omitzero"`
}

// Entity represents a named node in the knowledge graph.
//
// The name is the unique, case-sensitive identifier and is immutable once
// created; there is no rename operation.
type Entity struct {
	Name       string `json:"name"`
	EntityType string `json:"entityType"`

	// Observations is an ordered sequence of atomic fact strings.
	// Duplicates are rejected by the operations that append to it.
	Observations []string `json:"observations"`

	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`

	// PreviousObservations is a one-generation undo snapshot, captured
	// immediately before the observations sequence is overwritten wholesale.
	PreviousObservations []string `json:"previousObservations,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`
}

// Relation represents a directed, typed edge between two entity names.
// Relations have no separate identity; the full triple is the identity.
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

// KnowledgeGraph is the aggregate of all entities and relations.
//
// Entities are the ownership root. A relation holds name-based weak
// references to its endpoints and does not embed entity objects.
type KnowledgeGraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// Entity returns a pointer to the entity with the given name, or nil.
func (g *KnowledgeGraph) Entity(name string) *Entity {
	for i := range g.Entities {
		if g.Entities[i].Name == name {
			return &g.Entities[i]
		}
	}
	return nil
}

// HasEntity reports whether an entity with the given name exists.
func (g *KnowledgeGraph) HasEntity(name string) bool {
	return g.Entity(name) != nil
}

// EntityNames returns the set of all entity names.
func (g *KnowledgeGraph) EntityNames() map[string]struct{} {
	names := make(map[string]struct{}, len(g.Entities))
	for i := range g.Entities {
		names[g.Entities[i].Name] = struct{}{}
	}
	return names
}

// HasRelation reports whether the exact triple is already present.
func (g *KnowledgeGraph) HasRelation(r Relation) bool {
	for _, existing := range g.Relations {
		if existing == r {
			return true
		}
	}
	return false
}

// EnsureMetadata returns the entity's metadata, allocating it if absent.
func (e *Entity) EnsureMetadata() *Metadata {
	if e.Metadata == nil {
		e.Metadata = &Metadata{Confidence: ConfidenceMedium}
	}
	return e.Metadata
}

// RecordAccess bumps the access count and stamps the access time.
func (e *Entity) RecordAccess(now time.Time) {
	m := e.EnsureMetadata()
	m.AccessCount++
	m.LastAccessedAt = now
}

// HasObservation reports whether the exact fact string is already recorded.
func (e *Entity) HasObservation(content string) bool {
	for _, o := range e.Observations {
		if o == content {
			return true
		}
	}
	return false
}
