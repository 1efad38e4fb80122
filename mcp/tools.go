package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// relationSchema describes a single relation triple; identity is the
// full (from, to, relationType).
func relationSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"from":         {Type: "string", Description: "Source entity name"},
			"to":           {Type: "string", Description: "Target entity name"},
			"relationType": {Type: "string", Description: "Relation type in active voice (e.g. knows, depends_on)"},
		},
		Required: []string{"from", "to", "relationType"},
	}
}

// registerTools declares every graph operation as an MCP tool.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_entities",
		Description: "Create new entities in the knowledge graph. Existing names are silently skipped.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"entities": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"name":       {Type: "string", Description: "Unique entity name"},
							"entityType": {Type: "string", Description: "Classification (e.g. person, component)"},
							"observations": {
								Type:        "array",
								Items:       &jsonschema.Schema{Type: "string"},
								Description: "Initial atomic fact strings",
							},
						},
						Required: []string{"name", "entityType"},
					},
				},
			},
			Required: []string{"entities"},
		},
	}, s.handleCreateEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_relations",
		Description: "Create directed relations between existing entities. Duplicates are skipped; missing endpoints are reported per relation.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"relations": {Type: "array", Items: relationSchema()},
			},
			Required: []string{"relations"},
		},
	}, s.handleCreateRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_observations",
		Description: "Append new observations to existing entities. Duplicate facts are skipped per entity.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"observations": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"entityName": {Type: "string", Description: "Name of the target entity"},
							"contents": {
								Type:        "array",
								Items:       &jsonschema.Schema{Type: "string"},
								Description: "Fact strings to append",
							},
						},
						Required: []string{"entityName", "contents"},
					},
				},
			},
			Required: []string{"observations"},
		},
	}, s.handleAddObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_entities",
		Description: "Delete entities and cascade-remove every relation mentioning them.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"entityNames": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Entity names to delete",
				},
			},
			Required: []string{"entityNames"},
		},
	}, s.handleDeleteEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_observations",
		Description: "Remove specific observation strings from entities. Missing entities or facts are silently ignored.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"deletions": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"entityName": {Type: "string", Description: "Name of the target entity"},
							"observations": {
								Type:        "array",
								Items:       &jsonschema.Schema{Type: "string"},
								Description: "Exact fact strings to remove",
							},
						},
						Required: []string{"entityName", "observations"},
					},
				},
			},
			Required: []string{"deletions"},
		},
	}, s.handleDeleteObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_relations",
		Description: "Remove relations matching the given triples exactly.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"relations": {Type: "array", Items: relationSchema()},
			},
			Required: []string{"relations"},
		},
	}, s.handleDeleteRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_graph",
		Description: "Read the entire knowledge graph.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleReadGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_nodes",
		Description: "Search entities by case-insensitive substring match on name, type, or observations. Matches have their access count bumped.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Search query text"},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "open_nodes",
		Description: "Retrieve specific entities by exact name, with the relations among them.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"names": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Exact entity names to retrieve",
				},
			},
			Required: []string{"names"},
		},
	}, s.handleOpenNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_entity",
		Description: "Replace an entity's observations and/or merge metadata. The previous observation list is kept as a one-generation snapshot.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {Type: "string", Description: "Name of the entity to update"},
				"observations": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Replacement observation sequence",
				},
				"metadata": {
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"sourceFile": {Type: "string", Description: "Provenance tag"},
						"confidence": {Type: "string", Enum: []any{"high", "medium", "low"}},
					},
				},
			},
			Required: []string{"name"},
		},
	}, s.handleUpdateEntity)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_stale_entities",
		Description: "List entities not updated within the given number of days, with refresh recommendations.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"days":       {Type: "integer", Description: "Staleness threshold in days (default 30)"},
				"entityType": {Type: "string", Description: "Optional entity type filter"},
			},
		},
	}, s.handleStaleEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "validate_component_props",
		Description: "Check prop names against the @props observations of a component entity.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"componentName": {Type: "string", Description: "Name of the component entity"},
				"propsToCheck": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Prop names to validate",
				},
			},
			Required: []string{"componentName", "propsToCheck"},
		},
	}, s.handleValidateProps)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_frequently_used",
		Description: "List entities with an access count at or above the threshold.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"minAccessCount": {Type: "integer", Description: "Minimum access count (default 5)"},
				"entityType":     {Type: "string", Description: "Optional entity type filter"},
			},
		},
	}, s.handleFrequentlyUsed)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "increment_access_count",
		Description: "Record an access of the named entity.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"entityName": {Type: "string", Description: "Name of the entity"},
			},
			Required: []string{"entityName"},
		},
	}, s.handleIncrementAccess)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verify_graph_integrity",
		Description: "Scan for relations whose endpoints name no existing entity, with fuzzy repair suggestions.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"maxSuggestions": {Type: "integer", Description: "Maximum repair suggestions per orphan (default 3)"},
			},
		},
	}, s.handleVerifyIntegrity)
}
