package revision

import (
	"testing"

	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matcherItems() []entity.QuoteItem {
	return []entity.QuoteItem{
		{ID: "i-1", ItemCode: "PNT-01", Description: "Interior paint"},
		{ID: "i-2", Description: "Paint"},
		{ID: "i-3", ItemCode: "LAB", Description: "Painting labor"},
		{ID: "i-4", Description: "Drywall patch"},
		{ID: "i-5", Description: "Drywall paint"},
	}
}

func TestRankedMatcher_Match(t *testing.T) {
	m := NewRankedMatcher()
	items := matcherItems()

	tests := []struct {
		name    string
		target  string
		want    int
		wantErr error
	}{
		{"exact description preferred over substring", "paint", 1, nil},
		{"exact description ignores case and spacing", "  INTERIOR   Paint ", 0, nil},
		{"exact item code", "pnt-01", 0, nil},
		{"item id", "i-4", 3, nil},
		{"substring picks highest similarity", "drywall patc", 3, nil},
		{"target containing a description", "the painting labor line", 2, nil},
		{"no match", "roofing", -1, ErrTargetNotFound},
		{"empty target", "   ", -1, ErrTargetNotFound},
		{"equal similarity is ambiguous", "drywall", -1, ErrAmbiguousTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(items, tt.target)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRankedMatcher_DuplicateExactDescriptions(t *testing.T) {
	items := []entity.QuoteItem{
		{ID: "a", Description: "Trim"},
		{ID: "b", Description: "trim"},
	}

	_, err := NewRankedMatcher().Match(items, "trim")
	assert.ErrorIs(t, err, ErrAmbiguousTarget)

	idx, err := NewRankedMatcher().Match(items, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestExactMatcher_NoSubstringFallback(t *testing.T) {
	m := NewExactMatcher()
	items := matcherItems()

	_, err := m.Match(items, "drywall patc")
	assert.ErrorIs(t, err, ErrTargetNotFound)

	idx, err := m.Match(items, "drywall patch")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("paint", "paint"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, 0.8333, Similarity("paint", "paints"), 0.001)
	assert.Greater(t, Similarity("drywall patch", "drywall patc"), Similarity("drywall paint", "drywall patc"))
}
