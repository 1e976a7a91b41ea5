package revision

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/garyjia/quote-revision/internal/domain/entity"
)

// TargetMatcher resolves a command target to the index of one item
type TargetMatcher interface {
	Match(items []entity.QuoteItem, target string) (int, error)
}

const (
	scoreItemID = 3.0
	scoreExact  = 2.0
)

// RankedMatcher prefers exact id, code or description matches and falls back
// to case-insensitive substring matches ranked by string similarity.
type RankedMatcher struct {
	// ExactOnly disables the substring fallback
	ExactOnly bool
}

// NewRankedMatcher returns the default matcher with fuzzy fallback enabled
func NewRankedMatcher() *RankedMatcher {
	return &RankedMatcher{}
}

// NewExactMatcher returns a matcher that only accepts exact matches
func NewExactMatcher() *RankedMatcher {
	return &RankedMatcher{ExactOnly: true}
}

// Match returns the best scoring item. Equal best scores are ambiguous.
func (m *RankedMatcher) Match(items []entity.QuoteItem, target string) (int, error) {
	want := normalize(target)
	if want == "" {
		return -1, fmt.Errorf("%w: empty target", ErrTargetNotFound)
	}

	best, bestScore, ties := -1, 0.0, 0
	for i, it := range items {
		score := m.score(it, target, want)
		switch {
		case score <= 0:
			continue
		case score > bestScore:
			best, bestScore, ties = i, score, 1
		case score == bestScore:
			ties++
		}
	}

	if best < 0 {
		return -1, fmt.Errorf("%w: %q", ErrTargetNotFound, target)
	}
	if ties > 1 {
		return -1, fmt.Errorf("%w: %d items match %q equally", ErrAmbiguousTarget, ties, target)
	}
	return best, nil
}

func (m *RankedMatcher) score(it entity.QuoteItem, raw, want string) float64 {
	if it.ID != "" && it.ID == strings.TrimSpace(raw) {
		return scoreItemID
	}
	if it.ItemCode != "" && normalize(it.ItemCode) == want {
		return scoreExact
	}

	desc := normalize(it.Description)
	if desc == "" {
		return 0
	}
	if desc == want {
		return scoreExact
	}
	if m.ExactOnly {
		return 0
	}
	if strings.Contains(desc, want) || strings.Contains(want, desc) {
		return Similarity(desc, want)
	}
	return 0
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity returns 1 - distance(a,b)/max(len(a),len(b)) over runes.
// Identical strings score 1; the result is in [0,1].
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
