package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/engramdev/engram-go/internal/graph"
	"github.com/engramdev/engram-go/internal/similarity"
)

// staleComponentDays is the age past which validate_component_props warns
// that the recorded props may have drifted from the source.
const staleComponentDays = 7

// frequentAccessThreshold separates the two staleness recommendation tiers.
const frequentAccessThreshold = 10

// DefaultMaxSuggestions caps repair suggestions per orphaned relation.
const DefaultMaxSuggestions = 3

// RelationError reports a relation that could not be created.
type RelationError struct {
	Relation graph.Relation `json:"relation"`
	Error    string         `json:"error"`
}

// CreateRelationsResult partitions a createRelations batch. The batch is
// partially applied; there is no rollback.
type CreateRelationsResult struct {
	Created []graph.Relation `json:"created"`
	Skipped []graph.Relation `json:"skipped"`
	Errors  []RelationError  `json:"errors"`
}

// ObservationInput names an entity and the facts to append to it.
type ObservationInput struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

// ObservationResult is the per-entity breakdown of an addObservations call.
type ObservationResult struct {
	EntityName string   `json:"entityName"`
	Added      []string `json:"added"`
	Skipped    []string `json:"skipped"`
}

// AddObservationsResult is the outcome of an addObservations batch.
type AddObservationsResult struct {
	Results []ObservationResult `json:"results"`
	Errors  []string            `json:"errors"`
}

// ObservationDeletion names an entity and the exact fact strings to remove.
type ObservationDeletion struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}

// MetadataPatch carries the metadata fields supplied to updateEntity.
// Nil fields are left untouched (shallow merge).
type MetadataPatch struct {
	SourceFile *string           `json:"sourceFile,omitempty"`
	Confidence *graph.Confidence `json:"confidence,omitempty"`
}

// EntityUpdate carries the fields supplied to updateEntity. A nil
// Observations slice means the sequence is not being replaced.
type EntityUpdate struct {
	Observations []string       `json:"observations,omitempty"`
	Metadata     *MetadataPatch `json:"metadata,omitempty"`
}

// StaleEntity pairs an entity with its staleness assessment.
type StaleEntity struct {
	graph.Entity
	DaysSinceUpdate int    `json:"daysSinceUpdate"`
	Recommendation  string `json:"recommendation"`
}

// StalenessInfo is the freshness block attached to prop validation.
type StalenessInfo struct {
	DaysSinceUpdate int    `json:"daysSinceUpdate"`
	IsStale         bool   `json:"isStale"`
	Warning         string `json:"warning,omitempty"`
}

// PropValidation is the result of validateComponentProps.
type PropValidation struct {
	ComponentName string         `json:"componentName"`
	ValidProps    []string       `json:"validProps"`
	InvalidProps  []string       `json:"invalidProps"`
	KnownProps    []string       `json:"knownProps"`
	Staleness     *StalenessInfo `json:"staleness,omitempty"`
}

// OrphanedRelation describes a relation endpoint with no matching entity.
type OrphanedRelation struct {
	Relation      graph.Relation          `json:"relation"`
	MissingEntity string                  `json:"missingEntity"`
	Position      string                  `json:"position"` // "from" or "to"
	Suggestions   []similarity.Suggestion `json:"suggestions"`
}

// IntegritySummary aggregates the orphan scan counts.
type IntegritySummary struct {
	TotalRelations    int      `json:"totalRelations"`
	ValidRelations    int      `json:"validRelations"`
	OrphanedRelations int      `json:"orphanedRelations"`
	MissingEntities   []string `json:"missingEntities"`
}

// IntegrityReport is the result of verifyGraphIntegrity.
type IntegrityReport struct {
	Valid   bool               `json:"valid"`
	Orphans []OrphanedRelation `json:"orphanedRelations"`
	Summary IntegritySummary   `json:"summary"`
}

// CreateEntities appends every entity whose name is not already stored and
// returns the entities actually added. Duplicates are silently dropped so
// that callers may retry a request without error.
func (s *Store) CreateEntities(ctx context.Context, entities []graph.Entity) ([]graph.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	names := g.EntityNames()

	added := make([]graph.Entity, 0, len(entities))
	for _, e := range entities {
		if _, exists := names[e.Name]; exists {
			continue
		}
		e.CreatedAt = now
		e.UpdatedAt = now
		e.EnsureMetadata()
		g.Entities = append(g.Entities, e)
		added = append(added, e)
		names[e.Name] = struct{}{}
	}

	// Saved even when nothing was added; the rewrite is a harmless no-op.
	if err := s.Save(g); err != nil {
		return nil, err
	}
	return added, nil
}

// CreateRelations validates and appends relations. A missing endpoint
// yields a per-relation error entry; an exact duplicate triple is recorded
// as skipped. Persistence happens only if at least one relation was created.
func (s *Store) CreateRelations(ctx context.Context, relations []graph.Relation) (*CreateRelationsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return nil, err
	}

	names := g.EntityNames()
	result := &CreateRelationsResult{
		Created: []graph.Relation{},
		Skipped: []graph.Relation{},
		Errors:  []RelationError{},
	}

	for _, r := range relations {
		if _, ok := names[r.From]; !ok {
			result.Errors = append(result.Errors, RelationError{
				Relation: r,
				Error:    fmt.Sprintf("source entity %q not found", r.From),
			})
			continue
		}
		if _, ok := names[r.To]; !ok {
			result.Errors = append(result.Errors, RelationError{
				Relation: r,
				Error:    fmt.Sprintf("target entity %q not found", r.To),
			})
			continue
		}
		if g.HasRelation(r) {
			result.Skipped = append(result.Skipped, r)
			continue
		}
		g.Relations = append(g.Relations, r)
		result.Created = append(result.Created, r)
	}

	if len(result.Created) > 0 {
		if err := s.Save(g); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AddObservations appends new fact strings to existing entities. A missing
// entity records an error and the batch continues; a fact already present
// on its entity is skipped as a duplicate.
func (s *Store) AddObservations(ctx context.Context, inputs []ObservationInput) (*AddObservationsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &AddObservationsResult{Results: []ObservationResult{}, Errors: []string{}}
	changed := false

	for _, in := range inputs {
		entity := g.Entity(in.EntityName)
		if entity == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("entity %q not found", in.EntityName))
			continue
		}

		r := ObservationResult{EntityName: in.EntityName, Added: []string{}, Skipped: []string{}}
		for _, content := range in.Contents {
			if entity.HasObservation(content) {
				r.Skipped = append(r.Skipped, content)
				continue
			}
			entity.Observations = append(entity.Observations, content)
			r.Added = append(r.Added, content)
		}
		if len(r.Added) > 0 {
			entity.UpdatedAt = now
			changed = true
		}
		result.Results = append(result.Results, r)
	}

	if changed {
		if err := s.Save(g); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DeleteEntities removes the named entities and cascades to every relation
// mentioning them on either side. Deleting a missing name is a no-op, so
// the operation is idempotent. The file is rewritten unconditionally.
func (s *Store) DeleteEntities(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return err
	}

	doomed := make(map[string]struct{}, len(names))
	for _, n := range names {
		doomed[n] = struct{}{}
	}

	kept := g.Entities[:0]
	for _, e := range g.Entities {
		if _, ok := doomed[e.Name]; !ok {
			kept = append(kept, e)
		}
	}
	g.Entities = kept

	keptRels := g.Relations[:0]
	for _, r := range g.Relations {
		_, fromDoomed := doomed[r.From]
		_, toDoomed := doomed[r.To]
		if !fromDoomed && !toDoomed {
			keptRels = append(keptRels, r)
		}
	}
	g.Relations = keptRels

	return s.Save(g)
}

// DeleteObservations removes exactly the listed fact strings from each
// named entity. Missing entities and missing facts are silently ignored,
// and updatedAt is deliberately left untouched.
func (s *Store) DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return err
	}

	for _, d := range deletions {
		entity := g.Entity(d.EntityName)
		if entity == nil {
			continue
		}
		remove := make(map[string]struct{}, len(d.Observations))
		for _, o := range d.Observations {
			remove[o] = struct{}{}
		}
		kept := entity.Observations[:0]
		for _, o := range entity.Observations {
			if _, ok := remove[o]; !ok {
				kept = append(kept, o)
			}
		}
		entity.Observations = kept
	}

	return s.Save(g)
}

// DeleteRelations removes every stored relation matching a given triple
// exactly. Non-matching triples are silently ignored.
func (s *Store) DeleteRelations(ctx context.Context, relations []graph.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return err
	}

	doomed := make(map[graph.Relation]struct{}, len(relations))
	for _, r := range relations {
		doomed[r] = struct{}{}
	}

	kept := g.Relations[:0]
	for _, r := range g.Relations {
		if _, ok := doomed[r]; !ok {
			kept = append(kept, r)
		}
	}
	g.Relations = kept

	return s.Save(g)
}

// UpdateEntity overwrites an entity's observations and/or shallow-merges
// its metadata. It returns (nil, nil) when the entity does not exist.
//
// When a replacement observations sequence differs from the current one,
// the current sequence is first snapshotted into previousObservations. The
// snapshot is a single generation: a later overwrite replaces it.
func (s *Store) UpdateEntity(ctx context.Context, name string, update EntityUpdate) (*graph.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return nil, err
	}

	entity := g.Entity(name)
	if entity == nil {
		return nil, nil
	}

	now := time.Now().UTC()

	if update.Observations != nil &&
		strings.Join(update.Observations, "") != strings.Join(entity.Observations, "") {
		prev := make([]string, len(entity.Observations))
		copy(prev, entity.Observations)
		entity.PreviousObservations = prev
		entity.Observations = update.Observations
	}

	if update.Metadata != nil {
		m := entity.EnsureMetadata()
		if update.Metadata.SourceFile != nil {
			m.SourceFile = *update.Metadata.SourceFile
		}
		if update.Metadata.Confidence != nil {
			m.Confidence = *update.Metadata.Confidence
		}
	}

	entity.UpdatedAt = now
	entity.RecordAccess(now)

	if err := s.Save(g); err != nil {
		return nil, err
	}

	updated := *entity
	return &updated, nil
}

// ReadGraph returns the full graph unfiltered. No lock, no side effects.
func (s *Store) ReadGraph(ctx context.Context) (*graph.KnowledgeGraph, error) {
	return s.load()
}

// SearchNodes matches the query case-insensitively against entity names,
// types, and observation strings. Every matched entity has its access count
// bumped (one lock-protected rewrite per entity). The returned relations
// are the induced subgraph: both endpoints must be matches.
func (s *Store) SearchNodes(ctx context.Context, query string) (*graph.KnowledgeGraph, error) {
	g, err := s.load()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	matched := make([]graph.Entity, 0)
	for _, e := range g.Entities {
		if entityMatches(&e, q) {
			matched = append(matched, e)
		}
	}

	for i := range matched {
		if err := s.IncrementAccessCount(ctx, matched[i].Name); err != nil {
			return nil, err
		}
	}

	return inducedSubgraph(matched, g.Relations), nil
}

// OpenNodes returns the entities with exactly the given names, with the
// same access-count side effect and induced-subgraph restriction as search.
func (s *Store) OpenNodes(ctx context.Context, names []string) (*graph.KnowledgeGraph, error) {
	g, err := s.load()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	matched := make([]graph.Entity, 0, len(names))
	for _, e := range g.Entities {
		if _, ok := wanted[e.Name]; ok {
			matched = append(matched, e)
		}
	}

	for i := range matched {
		if err := s.IncrementAccessCount(ctx, matched[i].Name); err != nil {
			return nil, err
		}
	}

	return inducedSubgraph(matched, g.Relations), nil
}

// GetStaleEntities selects entities whose updatedAt is older than the given
// number of days, optionally filtered by type, sorted by access count
// descending. Read-only: staleness inspection does not count as access.
func (s *Store) GetStaleEntities(ctx context.Context, days int, entityType string) ([]StaleEntity, error) {
	g, err := s.load()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	stale := make([]StaleEntity, 0)
	for _, e := range g.Entities {
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		if !e.UpdatedAt.Before(cutoff) {
			continue
		}

		age := int(now.Sub(e.UpdatedAt).Hours() / 24)
		rec := "Low usage entity - consider removing if no longer relevant"
		if e.Metadata != nil && e.Metadata.AccessCount > frequentAccessThreshold {
			rec = "High usage entity - prioritize refreshing from its source"
		}
		stale = append(stale, StaleEntity{
			Entity:          e,
			DaysSinceUpdate: age,
			Recommendation:  rec,
		})
	}

	sort.SliceStable(stale, func(i, j int) bool {
		return accessCount(&stale[i].Entity) > accessCount(&stale[j].Entity)
	})
	return stale, nil
}

// ValidateComponentProps checks a list of prop names against the props
// recorded on a component entity's "@props " observations. It returns
// (nil, nil) when no component entity with that name exists.
//
// Validation counts as access: the entity's access count is bumped and the
// graph persisted before the result is computed.
func (s *Store) ValidateComponentProps(ctx context.Context, componentName string, propsToCheck []string) (*PropValidation, error) {
	s.mu.Lock()

	g, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	entity := g.Entity(componentName)
	if entity == nil || entity.EntityType != "component" {
		s.mu.Unlock()
		return nil, nil
	}

	now := time.Now().UTC()
	entity.RecordAccess(now)
	if err := s.Save(g); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snapshot := *entity
	s.mu.Unlock()

	known := extractProps(snapshot.Observations)
	knownSet := make(map[string]struct{}, len(known))
	for _, p := range known {
		knownSet[p] = struct{}{}
	}

	result := &PropValidation{
		ComponentName: componentName,
		ValidProps:    []string{},
		InvalidProps:  []string{},
		KnownProps:    known,
	}
	for _, p := range propsToCheck {
		if _, ok := knownSet[p]; ok {
			result.ValidProps = append(result.ValidProps, p)
		} else {
			result.InvalidProps = append(result.InvalidProps, p)
		}
	}

	age := int(now.Sub(snapshot.UpdatedAt).Hours() / 24)
	info := &StalenessInfo{DaysSinceUpdate: age, IsStale: age > staleComponentDays}
	if info.IsStale {
		info.Warning = fmt.Sprintf("component info is %d days old - props may have changed", age)
	}
	result.Staleness = info

	return result, nil
}

// GetFrequentlyUsed returns entities with accessCount >= minAccessCount,
// optionally filtered by type, sorted by access count descending.
func (s *Store) GetFrequentlyUsed(ctx context.Context, minAccessCount int, entityType string) ([]graph.Entity, error) {
	g, err := s.load()
	if err != nil {
		return nil, err
	}

	frequent := make([]graph.Entity, 0)
	for _, e := range g.Entities {
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		if accessCount(&e) >= minAccessCount {
			frequent = append(frequent, e)
		}
	}

	sort.SliceStable(frequent, func(i, j int) bool {
		return accessCount(&frequent[i]) > accessCount(&frequent[j])
	})
	return frequent, nil
}

// IncrementAccessCount bumps the named entity's access count and access
// time under the write lock. Missing entities are a silent no-op.
func (s *Store) IncrementAccessCount(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load()
	if err != nil {
		return err
	}

	entity := g.Entity(name)
	if entity == nil {
		return nil
	}

	entity.RecordAccess(time.Now().UTC())
	return s.Save(g)
}

// VerifyGraphIntegrity scans every relation for endpoints that name no
// existing entity. Each orphan carries up to maxSuggestions candidate
// repairs ranked by name similarity. Read-only.
func (s *Store) VerifyGraphIntegrity(ctx context.Context, maxSuggestions int) (*IntegrityReport, error) {
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}

	g, err := s.load()
	if err != nil {
		return nil, err
	}

	names := g.EntityNames()
	candidates := make([]string, 0, len(g.Entities))
	for i := range g.Entities {
		candidates = append(candidates, g.Entities[i].Name)
	}

	report := &IntegrityReport{Valid: true, Orphans: []OrphanedRelation{}}
	missing := make(map[string]struct{})
	orphanRelations := make(map[graph.Relation]struct{})

	for _, r := range g.Relations {
		for _, end := range []struct {
			name     string
			position string
		}{{r.From, "from"}, {r.To, "to"}} {
			if _, ok := names[end.name]; ok {
				continue
			}
			report.Orphans = append(report.Orphans, OrphanedRelation{
				Relation:      r,
				MissingEntity: end.name,
				Position:      end.position,
				Suggestions:   similarity.Rank(end.name, candidates, maxSuggestions),
			})
			missing[end.name] = struct{}{}
			orphanRelations[r] = struct{}{}
		}
	}

	missingNames := make([]string, 0, len(missing))
	for n := range missing {
		missingNames = append(missingNames, n)
	}
	sort.Strings(missingNames)

	report.Valid = len(report.Orphans) == 0
	report.Summary = IntegritySummary{
		TotalRelations:    len(g.Relations),
		ValidRelations:    len(g.Relations) - len(orphanRelations),
		OrphanedRelations: len(orphanRelations),
		MissingEntities:   missingNames,
	}
	return report, nil
}

// entityMatches reports whether the lower-cased query is a substring of the
// entity's name, type, or any observation.
func entityMatches(e *graph.Entity, q string) bool {
	if strings.Contains(strings.ToLower(e.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(e.EntityType), q) {
		return true
	}
	for _, o := range e.Observations {
		if strings.Contains(strings.ToLower(o), q) {
			return true
		}
	}
	return false
}

// inducedSubgraph keeps only relations whose both endpoints are in the
// matched entity set.
func inducedSubgraph(entities []graph.Entity, relations []graph.Relation) *graph.KnowledgeGraph {
	names := make(map[string]struct{}, len(entities))
	for i := range entities {
		names[entities[i].Name] = struct{}{}
	}

	kept := make([]graph.Relation, 0)
	for _, r := range relations {
		_, fromOK := names[r.From]
		_, toOK := names[r.To]
		if fromOK && toOK {
			kept = append(kept, r)
		}
	}

	return &graph.KnowledgeGraph{Entities: entities, Relations: kept}
}

// extractProps pulls prop names out of "@props " observations. The prop
// name is the text before the first colon, trimmed, with a trailing "?"
// optional marker stripped.
func extractProps(observations []string) []string {
	props := make([]string, 0)
	seen := make(map[string]struct{})
	for _, o := range observations {
		rest, ok := strings.CutPrefix(o, "@props ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, ":")
		name = strings.TrimSuffix(strings.TrimSpace(name), "?")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		props = append(props, name)
	}
	return props
}

func accessCount(e *graph.Entity) int {
	if e.Metadata == nil {
		return 0
	}
	return e.Metadata.AccessCount
}
