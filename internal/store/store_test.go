package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdev/engram-go/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "memory.jsonl"))
}

func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	g, diags, err := s.Load()

	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Empty(t, g.Entities)
	assert.Empty(t, g.Relations)
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)

	in := &graph.KnowledgeGraph{
		Entities: []graph.Entity{
			{
				Name:         "Alice",
				EntityType:   "person",
				Observations: []string{"likes coffee"},
				CreatedAt:    now,
				UpdatedAt:    now,
				Metadata:     &graph.Metadata{Confidence: graph.ConfidenceHigh, AccessCount: 2},
			},
			{Name: "Bob", EntityType: "person", Observations: []string{}, CreatedAt: now, UpdatedAt: now},
		},
		Relations: []graph.Relation{
			{From: "Alice", To: "Bob", RelationType: "knows"},
		},
	}

	require.NoError(t, s.Save(in))

	out, diags, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.ElementsMatch(t, in.Entities, out.Entities)
	assert.ElementsMatch(t, in.Relations, out.Relations)
}

func TestStore_SaveFormat(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	g := &graph.KnowledgeGraph{
		Entities:  []graph.Entity{{Name: "A", EntityType: "person", Observations: []string{}}},
		Relations: []graph.Relation{{From: "A", To: "A", RelationType: "self"}},
	}
	require.NoError(t, s.Save(g))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	// Meta record first, then entities, then relations.
	assert.Contains(t, lines[0], `"type":"meta"`)
	assert.Contains(t, lines[0], `"version":1`)
	assert.Contains(t, lines[1], `"type":"entity"`)
	assert.Contains(t, lines[2], `"type":"relation"`)

	// The staging file must not survive a successful save.
	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_LoadSkipsCorruptLines(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	content := strings.Join([]string{
		`{"type":"meta","version":1,"timestamp":"2026-08-01T00:00:00Z"}`,
		`{"type":"entity","name":"Alice","entityType":"person","observations":["likes coffee"]}`,
		`this line is not json`,
		``,
	}, "\n")
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	g, diags, err := s.Load()

	require.NoError(t, err)
	require.Len(t, g.Entities, 1)
	assert.Equal(t, "Alice", g.Entities[0].Name)
	require.Len(t, diags, 1)
	assert.Equal(t, 3, diags[0].Line)
}

func TestStore_LoadReportsUnknownRecordType(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"type":"widget"}`+"\n"), 0o644))

	g, diags, err := s.Load()

	require.NoError(t, err)
	assert.Empty(t, g.Entities)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Reason, "widget")
}

func TestStore_WarnfReceivesDiagnostics(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("garbage\n"), 0o644))

	var warned []string
	s.Warnf = func(format string, args ...any) {
		warned = append(warned, format)
	}

	_, diags, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, diags, 1)
	assert.Len(t, warned, 1)
}

func TestStore_SaveCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(filepath.Join(dir, "nested", "memory.jsonl"))

	require.NoError(t, s.Save(&graph.KnowledgeGraph{}))

	_, err := os.Stat(s.Path())
	assert.NoError(t, err)
}
