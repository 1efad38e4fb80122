// Package store provides the durable representation of the knowledge graph
// and the operations applied to it.
//
// The graph is persisted as a line-delimited text file of tagged JSON
// records. Every save rewrites the full file through an atomic
// temp-write-and-rename, so readers never observe a torn file. A single
// mutex owned by the Store instance serializes every mutating
// load-mutate-save cycle; read-only queries load without the lock and rely
// on rename atomicity for consistency.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/engramdev/engram-go/internal/graph"
)

// SchemaVersion is recorded in the meta record of every save. There is no
// migration engine; the tag exists so future readers can refuse or adapt.
const SchemaVersion = 1

// Record tags. Each persisted line is a self-describing JSON object whose
// "type" field selects the decoder.
const (
	recordMeta     = "meta"
	recordEntity   = "entity"
	recordRelation = "relation"
)

type metaRecord struct {
	Type      string    `json:"type"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type entityRecord struct {
	Type string `json:"type"`
	graph.Entity
}

type relationRecord struct {
	Type string `json:"type"`
	graph.Relation
}

// Diagnostic reports a single line that was skipped during load.
type Diagnostic struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Store owns the canonical on-disk graph file.
type Store struct {
	path string

	// mu serializes mutating load-mutate-save cycles. It belongs to the
	// instance so independent stores (e.g. in tests) never contend.
	mu sync.Mutex

	// Warnf, when set, receives skipped-line diagnostics during load.
	Warnf func(format string, args ...any)
}

// New creates a store for the graph file at path. The file is created
// lazily on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the graph file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole graph file and decodes each non-empty line
// independently.
//
// A missing file yields an empty graph. A line that fails to decode is
// skipped and reported as a diagnostic; load never aborts on a single bad
// line. Any other read failure is returned as an error.
func (s *Store) Load() (*graph.KnowledgeGraph, []Diagnostic, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &graph.KnowledgeGraph{}, nil, nil
		}
		return nil, nil, fmt.Errorf("reading graph file %s: %w", s.path, err)
	}

	g := &graph.KnowledgeGraph{}
	var diags []Diagnostic

	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			diags = append(diags, s.skip(i+1, fmt.Sprintf("invalid record: %v", err)))
			continue
		}

		switch probe.Type {
		case recordMeta:
			var rec metaRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				diags = append(diags, s.skip(i+1, fmt.Sprintf("invalid meta record: %v", err)))
			}
		case recordEntity:
			var rec entityRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				diags = append(diags, s.skip(i+1, fmt.Sprintf("invalid entity record: %v", err)))
				continue
			}
			g.Entities = append(g.Entities, rec.Entity)
		case recordRelation:
			var rec relationRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				diags = append(diags, s.skip(i+1, fmt.Sprintf("invalid relation record: %v", err)))
				continue
			}
			g.Relations = append(g.Relations, rec.Relation)
		default:
			diags = append(diags, s.skip(i+1, fmt.Sprintf("unknown record type %q", probe.Type)))
		}
	}

	return g, diags, nil
}

// Save rewrites the full graph file: the meta record first, then one record
// per entity, then one per relation.
//
// The content is written to a sibling <path>.tmp file, synced to stable
// storage, and renamed into place. A crash mid-save leaves the previous
// file intact and at worst an orphaned temp file.
func (s *Store) Save(g *graph.KnowledgeGraph) error {
	var sb strings.Builder

	if err := appendRecord(&sb, metaRecord{
		Type:      recordMeta,
		Version:   SchemaVersion,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return err
	}
	for i := range g.Entities {
		if err := appendRecord(&sb, entityRecord{Type: recordEntity, Entity: g.Entities[i]}); err != nil {
			return err
		}
	}
	for i := range g.Relations {
		if err := appendRecord(&sb, relationRecord{Type: recordRelation, Relation: g.Relations[i]}); err != nil {
			return err
		}
	}

	return s.writeAtomic([]byte(sb.String()))
}

func appendRecord(sb *strings.Builder, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	sb.Write(data)
	sb.WriteByte('\n')
	return nil
}

func (s *Store) writeAtomic(content []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating graph directory: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing graph file: %w", err)
	}
	return nil
}

func (s *Store) skip(line int, reason string) Diagnostic {
	if s.Warnf != nil {
		s.Warnf("skipping line %d of %s: %s", line, s.path, reason)
	}
	return Diagnostic{Line: line, Reason: reason}
}

// load is the internal helper used by operations that only need the graph.
func (s *Store) load() (*graph.KnowledgeGraph, error) {
	g, _, err := s.Load()
	return g, err
}
