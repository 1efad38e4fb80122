package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKnowledgeGraph_Entity(t *testing.T) {
	t.Parallel()

	g := &KnowledgeGraph{
		Entities: []Entity{
			{Name: "Alice", EntityType: "person"},
			{Name: "Bob", EntityType: "person"},
		},
	}

	t.Run("Found", func(t *testing.T) {
		t.Parallel()
		e := g.Entity("Bob")
		assert.NotNil(t, e)
		assert.Equal(t, "person", e.EntityType)
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, g.Entity("bob"))
	})

	t.Run("PointerIntoGraph", func(t *testing.T) {
		g2 := &KnowledgeGraph{Entities: []Entity{{Name: "X"}}}
		g2.Entity("X").EntityType = "component"
		assert.Equal(t, "component", g2.Entities[0].EntityType)
	})
}

func TestKnowledgeGraph_HasRelation(t *testing.T) {
	t.Parallel()

	g := &KnowledgeGraph{
		Relations: []Relation{{From: "A", To: "B", RelationType: "knows"}},
	}

	assert.True(t, g.HasRelation(Relation{From: "A", To: "B", RelationType: "knows"}))
	assert.False(t, g.HasRelation(Relation{From: "B", To: "A", RelationType: "knows"}))
	assert.False(t, g.HasRelation(Relation{From: "A", To: "B", RelationType: "likes"}))
}

func TestEntity_EnsureMetadata(t *testing.T) {
	t.Parallel()

	e := &Entity{Name: "A"}
	m := e.EnsureMetadata()

	assert.Equal(t, ConfidenceMedium, m.Confidence)
	assert.Zero(t, m.AccessCount)

	// A second call returns the same metadata rather than resetting it.
	m.AccessCount = 3
	assert.Equal(t, 3, e.EnsureMetadata().AccessCount)
}

func TestEntity_RecordAccess(t *testing.T) {
	t.Parallel()

	e := &Entity{Name: "A"}
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	e.RecordAccess(now)
	e.RecordAccess(now.Add(time.Hour))

	assert.Equal(t, 2, e.Metadata.AccessCount)
	assert.Equal(t, now.Add(time.Hour), e.Metadata.LastAccessedAt)
}

func TestEntity_HasObservation(t *testing.T) {
	t.Parallel()

	e := &Entity{Observations: []string{"likes coffee", "works remotely"}}

	assert.True(t, e.HasObservation("likes coffee"))
	assert.False(t, e.HasObservation("likes Coffee"))
	assert.False(t, e.HasObservation("unknown"))
}
