// Package mcp provides the MCP (Model Context Protocol) server for Engram.
//
// It is the dispatch adapter between the protocol and the graph store: each
// tool decodes a caller request into operation arguments, invokes one store
// operation, and renders the result as a caller-visible payload. Expected
// conditions (missing entities, duplicates, per-item validation failures)
// come back as data, never as protocol errors.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/engramdev/engram-go/internal/graph"
	"github.com/engramdev/engram-go/internal/store"
)

// Version is stamped into the server implementation info.
var Version = "0.1.0"

// Server represents the MCP server.
type Server struct {
	store  *store.Store
	server *mcp.Server
}

// NewServer creates an MCP server exposing the graph operations as tools.
func NewServer(st *store.Store) *Server {
	s := &Server{store: st}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "engram-go",
		Version: Version,
	}, nil)

	s.registerTools()
	return s
}

// Run serves the MCP protocol over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// --- Input types ---

type EntityInput struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations,omitempty"`
}

type CreateEntitiesInput struct {
	Entities []EntityInput `json:"entities"`
}

type RelationInput struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

type CreateRelationsInput struct {
	Relations []RelationInput `json:"relations"`
}

type ObservationItem struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

type AddObservationsInput struct {
	Observations []ObservationItem `json:"observations"`
}

type DeleteEntitiesInput struct {
	EntityNames []string `json:"entityNames"`
}

type DeletionItem struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}

type DeleteObservationsInput struct {
	Deletions []DeletionItem `json:"deletions"`
}

type DeleteRelationsInput struct {
	Relations []RelationInput `json:"relations"`
}

type SearchNodesInput struct {
	Query string `json:"query"`
}

type OpenNodesInput struct {
	Names []string `json:"names"`
}

type MetadataInput struct {
	SourceFile *string `json:"sourceFile,omitempty"`
	Confidence *string `json:"confidence,omitempty"`
}

type UpdateEntityInput struct {
	Name         string         `json:"name"`
	Observations []string       `json:"observations,omitempty"`
	Metadata     *MetadataInput `json:"metadata,omitempty"`
}

type StaleEntitiesInput struct {
	Days       int    `json:"days,omitempty"`
	EntityType string `json:"entityType,omitempty"`
}

type ValidatePropsInput struct {
	ComponentName string   `json:"componentName"`
	PropsToCheck  []string `json:"propsToCheck"`
}

type FrequentlyUsedInput struct {
	MinAccessCount int    `json:"minAccessCount,omitempty"`
	EntityType     string `json:"entityType,omitempty"`
}

type IncrementAccessInput struct {
	EntityName string `json:"entityName"`
}

type VerifyIntegrityInput struct {
	MaxSuggestions int `json:"maxSuggestions,omitempty"`
}

// --- Handlers ---

func (s *Server) handleCreateEntities(ctx context.Context, _ *mcp.CallToolRequest, input CreateEntitiesInput) (*mcp.CallToolResult, any, error) {
	entities := make([]graph.Entity, len(input.Entities))
	for i, e := range input.Entities {
		entities[i] = graph.Entity{
			Name:         e.Name,
			EntityType:   e.EntityType,
			Observations: e.Observations,
		}
		if entities[i].Observations == nil {
			entities[i].Observations = []string{}
		}
	}

	created, err := s.store.CreateEntities(ctx, entities)
	if err != nil {
		return toolError("creating entities: %v", err), nil, nil
	}
	return toolJSON(created)
}

func (s *Server) handleCreateRelations(ctx context.Context, _ *mcp.CallToolRequest, input CreateRelationsInput) (*mcp.CallToolResult, any, error) {
	result, err := s.store.CreateRelations(ctx, toRelations(input.Relations))
	if err != nil {
		return toolError("creating relations: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (s *Server) handleAddObservations(ctx context.Context, _ *mcp.CallToolRequest, input AddObservationsInput) (*mcp.CallToolResult, any, error) {
	inputs := make([]store.ObservationInput, len(input.Observations))
	for i, o := range input.Observations {
		inputs[i] = store.ObservationInput{EntityName: o.EntityName, Contents: o.Contents}
	}

	result, err := s.store.AddObservations(ctx, inputs)
	if err != nil {
		return toolError("adding observations: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (s *Server) handleDeleteEntities(ctx context.Context, _ *mcp.CallToolRequest, input DeleteEntitiesInput) (*mcp.CallToolResult, any, error) {
	if err := s.store.DeleteEntities(ctx, input.EntityNames); err != nil {
		return toolError("deleting entities: %v", err), nil, nil
	}
	return toolText("Entities deleted successfully"), nil, nil
}

func (s *Server) handleDeleteObservations(ctx context.Context, _ *mcp.CallToolRequest, input DeleteObservationsInput) (*mcp.CallToolResult, any, error) {
	deletions := make([]store.ObservationDeletion, len(input.Deletions))
	for i, d := range input.Deletions {
		deletions[i] = store.ObservationDeletion{EntityName: d.EntityName, Observations: d.Observations}
	}

	if err := s.store.DeleteObservations(ctx, deletions); err != nil {
		return toolError("deleting observations: %v", err), nil, nil
	}
	return toolText("Observations deleted successfully"), nil, nil
}

func (s *Server) handleDeleteRelations(ctx context.Context, _ *mcp.CallToolRequest, input DeleteRelationsInput) (*mcp.CallToolResult, any, error) {
	if err := s.store.DeleteRelations(ctx, toRelations(input.Relations)); err != nil {
		return toolError("deleting relations: %v", err), nil, nil
	}
	return toolText("Relations deleted successfully"), nil, nil
}

func (s *Server) handleReadGraph(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	g, err := s.store.ReadGraph(ctx)
	if err != nil {
		return toolError("reading graph: %v", err), nil, nil
	}
	return toolJSON(g)
}

func (s *Server) handleSearchNodes(ctx context.Context, _ *mcp.CallToolRequest, input SearchNodesInput) (*mcp.CallToolResult, any, error) {
	g, err := s.store.SearchNodes(ctx, input.Query)
	if err != nil {
		return toolError("searching nodes: %v", err), nil, nil
	}
	return toolJSON(g)
}

func (s *Server) handleOpenNodes(ctx context.Context, _ *mcp.CallToolRequest, input OpenNodesInput) (*mcp.CallToolResult, any, error) {
	g, err := s.store.OpenNodes(ctx, input.Names)
	if err != nil {
		return toolError("opening nodes: %v", err), nil, nil
	}
	return toolJSON(g)
}

func (s *Server) handleUpdateEntity(ctx context.Context, _ *mcp.CallToolRequest, input UpdateEntityInput) (*mcp.CallToolResult, any, error) {
	update := store.EntityUpdate{Observations: input.Observations}
	if input.Metadata != nil {
		patch := &store.MetadataPatch{SourceFile: input.Metadata.SourceFile}
		if input.Metadata.Confidence != nil {
			c := graph.Confidence(*input.Metadata.Confidence)
			patch.Confidence = &c
		}
		update.Metadata = patch
	}

	entity, err := s.store.UpdateEntity(ctx, input.Name, update)
	if err != nil {
		return toolError("updating entity: %v", err), nil, nil
	}
	if entity == nil {
		return toolText(fmt.Sprintf("Entity %q not found", input.Name)), nil, nil
	}
	return toolJSON(entity)
}

func (s *Server) handleStaleEntities(ctx context.Context, _ *mcp.CallToolRequest, input StaleEntitiesInput) (*mcp.CallToolResult, any, error) {
	days := input.Days
	if days <= 0 {
		days = 30
	}

	stale, err := s.store.GetStaleEntities(ctx, days, input.EntityType)
	if err != nil {
		return toolError("finding stale entities: %v", err), nil, nil
	}
	return toolJSON(stale)
}

func (s *Server) handleValidateProps(ctx context.Context, _ *mcp.CallToolRequest, input ValidatePropsInput) (*mcp.CallToolResult, any, error) {
	result, err := s.store.ValidateComponentProps(ctx, input.ComponentName, input.PropsToCheck)
	if err != nil {
		return toolError("validating props: %v", err), nil, nil
	}
	if result == nil {
		return toolText(fmt.Sprintf("Component %q not found", input.ComponentName)), nil, nil
	}
	return toolJSON(result)
}

func (s *Server) handleFrequentlyUsed(ctx context.Context, _ *mcp.CallToolRequest, input FrequentlyUsedInput) (*mcp.CallToolResult, any, error) {
	minCount := input.MinAccessCount
	if minCount <= 0 {
		minCount = 5
	}

	frequent, err := s.store.GetFrequentlyUsed(ctx, minCount, input.EntityType)
	if err != nil {
		return toolError("finding frequently used entities: %v", err), nil, nil
	}
	return toolJSON(frequent)
}

func (s *Server) handleIncrementAccess(ctx context.Context, _ *mcp.CallToolRequest, input IncrementAccessInput) (*mcp.CallToolResult, any, error) {
	if err := s.store.IncrementAccessCount(ctx, input.EntityName); err != nil {
		return toolError("incrementing access count: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Access count incremented for %q", input.EntityName)), nil, nil
}

func (s *Server) handleVerifyIntegrity(ctx context.Context, _ *mcp.CallToolRequest, input VerifyIntegrityInput) (*mcp.CallToolResult, any, error) {
	report, err := s.store.VerifyGraphIntegrity(ctx, input.MaxSuggestions)
	if err != nil {
		return toolError("verifying graph integrity: %v", err), nil, nil
	}
	return toolJSON(report)
}

// --- Helpers ---

func toRelations(inputs []RelationInput) []graph.Relation {
	relations := make([]graph.Relation, len(inputs))
	for i, r := range inputs {
		relations[i] = graph.Relation{From: r.From, To: r.To, RelationType: r.RelationType}
	}
	return relations
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("encoding result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
