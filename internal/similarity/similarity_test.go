package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"Identical", "graph", "graph", 0},
		{"BothEmpty", "", "", 0},
		{"LeftEmpty", "", "node", 4},
		{"RightEmpty", "node", "", 4},
		{"Substitution", "cat", "car", 1},
		{"Classic", "kitten", "sitting", 3},
		{"Insertion", "jon_smth", "john_smith", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EditDistance(tt.a, tt.b))
		})
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	t.Run("IdenticalIgnoringCase", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1.0, Score("John_Smith", "john_smith"))
	})

	t.Run("EmptyOperand", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.0, Score("", "anything"))
		assert.Equal(t, 0.0, Score("anything", ""))
	})

	t.Run("NormalizedByLongerName", func(t *testing.T) {
		t.Parallel()
		// distance 2 over max length 10
		assert.InDelta(t, 0.8, Score("Jon_Smth", "John_Smith"), 0.001)
	})

	t.Run("SubstringBoost", func(t *testing.T) {
		t.Parallel()
		// Raw score would be 0.4; containment raises it to the floor.
		assert.Equal(t, 0.7, Score("John", "John_Smith"))
	})

	t.Run("BoostDoesNotLowerHigherScores", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 0.86, Score("Button", "Buttons"), 0.001)
	})

	t.Run("RoundedToTwoDecimals", func(t *testing.T) {
		t.Parallel()
		// distance 1 over max length 3 -> 0.666... -> 0.67
		assert.Equal(t, 0.67, Score("abc", "abd"))
	})
}

func TestRank(t *testing.T) {
	t.Parallel()

	t.Run("DiscardsBelowThreshold", func(t *testing.T) {
		t.Parallel()
		got := Rank("abc", []string{"xyz"}, 3)
		assert.Empty(t, got)
	})

	t.Run("OrdersBySimilarity", func(t *testing.T) {
		t.Parallel()
		got := Rank("Jon_Smth", []string{"Jane_Doe", "John_Smith", "Jon_Smyth"}, 3)

		assert.NotEmpty(t, got)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity-0.01)
		}
		assert.Equal(t, "Jon_Smyth", got[0].Name)
	})

	t.Run("TieBrokenByDistance", func(t *testing.T) {
		t.Parallel()
		// Both candidates hit the 0.7 substring floor; the closer one wins.
		got := Rank("ab", []string{"abcd", "abc"}, 3)

		assert.Len(t, got, 2)
		assert.Equal(t, "abc", got[0].Name)
		assert.Equal(t, "abcd", got[1].Name)
	})

	t.Run("CapsAtMax", func(t *testing.T) {
		t.Parallel()
		got := Rank("node", []string{"node1", "node2", "node3", "node4"}, 2)
		assert.Len(t, got, 2)
	})
}
