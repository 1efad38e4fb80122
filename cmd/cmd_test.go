package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/engramdev/engram-go/internal/graph"
)

func TestResolveMemoryPath(t *testing.T) {
	t.Parallel()

	base := filepath.Join("opt", "engram")
	abs := string(filepath.Separator) + filepath.Join("var", "data", "graph.jsonl")

	tests := []struct {
		name     string
		override string
		want     string
	}{
		{"EmptyUsesDefault", "", filepath.Join(base, defaultFileName)},
		{"RelativeResolvesAgainstBase", "custom.jsonl", filepath.Join(base, "custom.jsonl")},
		{"AbsoluteUsedAsIs", abs, abs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resolveMemoryPath(base, tt.override))
		})
	}
}

func TestMetadataAccessCount(t *testing.T) {
	t.Parallel()

	assert.Zero(t, metadataAccessCount(graph.Entity{}))
	assert.Equal(t, 4, metadataAccessCount(graph.Entity{
		Metadata: &graph.Metadata{AccessCount: 4},
	}))
}
