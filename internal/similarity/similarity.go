// Package similarity provides fuzzy name matching for the integrity checker.
//
// It computes a classic unit-cost edit distance between lower-cased names and
// normalizes it into a [0,1] score, with a boost for literal substring
// containment. The scorer is pure and holds no state.
package similarity

import (
	"math"
	"sort"
	"strings"
)

// MinScore is the similarity threshold below which candidates are discarded.
const MinScore = 0.3

// substringBoost is the floor applied when one name contains the other.
const substringBoost = 0.7

// Suggestion is a candidate repair target for a missing entity name.
type Suggestion struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// EditDistance returns the unit-cost Levenshtein distance between a and b,
// counted in runes. Case is significant; callers lower-case beforehand when
// they want case-insensitive distance.
func EditDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two-row DP over the classic distance matrix.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Score returns a normalized similarity in [0,1] between the two names,
// rounded to two decimal places.
//
// The distance is computed over the lower-cased strings and normalized as
// 1 - distance/max(len). When one lower-cased string is a substring of the
// other, the score is raised to at least 0.7.
func Score(a, b string) float64 {
	la := strings.ToLower(a)
	lb := strings.ToLower(b)

	if la == lb {
		return 1
	}
	if len(la) == 0 || len(lb) == 0 {
		return 0
	}

	dist := EditDistance(la, lb)
	longest := len([]rune(la))
	if n := len([]rune(lb)); n > longest {
		longest = n
	}

	score := 1 - float64(dist)/float64(longest)
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		if score < substringBoost {
			score = substringBoost
		}
	}

	return math.Round(score*100) / 100
}

// Rank scores every candidate against target, discards candidates below
// MinScore, and returns at most max suggestions ordered by descending
// similarity. Ties within 0.01 are broken by ascending raw edit distance.
func Rank(target string, candidates []string, max int) []Suggestion {
	type scored struct {
		name     string
		score    float64
		distance int
	}

	lt := strings.ToLower(target)
	matches := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		s := Score(target, c)
		if s < MinScore {
			continue
		}
		matches = append(matches, scored{
			name:     c,
			score:    s,
			distance: EditDistance(lt, strings.ToLower(c)),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if math.Abs(matches[i].score-matches[j].score) < 0.01 {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].score > matches[j].score
	})

	if max > 0 && len(matches) > max {
		matches = matches[:max]
	}

	suggestions := make([]Suggestion, len(matches))
	for i, m := range matches {
		suggestions[i] = Suggestion{Name: m.name, Similarity: m.score}
	}
	return suggestions
}
