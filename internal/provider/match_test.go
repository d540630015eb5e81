// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/bibresolve/pkg/types"
)

func rec(title string, year int) *types.BibliographicRecord {
	return &types.BibliographicRecord{Title: title, Year: year, Authors: []types.Author{{Family: "Smith"}}}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("A Study of Widgets.", "a study of   widgets"))
	assert.Equal(t, 0.0, Similarity("", "anything"))
	assert.InDelta(t, 0.94, Similarity("A study of widgets", "A study of gidgets"), 0.01)
	assert.Less(t, Similarity("Widgets", "Quantum lattice gauge theory"), 0.5)
}

func TestBestMatch(t *testing.T) {
	tests := []struct {
		name      string
		cands     []*types.BibliographicRecord
		q         types.Query
		threshold float64
		want      int
	}{
		{
			name:  "exact title wins",
			cands: []*types.BibliographicRecord{rec("Gadget Theory", 2020), rec("A Study of Widgets", 2020)},
			q:     types.Query{Text: "A study of widgets"},
			want:  1,
		},
		{
			name:  "tie broken by year proximity",
			cands: []*types.BibliographicRecord{rec("A Study of Widgets", 2015), rec("A Study of Widgets", 2019)},
			q:     types.Query{Text: "A Study of Widgets", Year: 2020},
			want:  1,
		},
		{
			name:  "tie without year keeps source order",
			cands: []*types.BibliographicRecord{rec("A Study of Widgets", 2015), rec("A Study of Widgets", 2019)},
			q:     types.Query{Text: "A Study of Widgets"},
			want:  0,
		},
		{
			name:  "below threshold",
			cands: []*types.BibliographicRecord{rec("Gadget Theory", 2020)},
			q:     types.Query{Text: "A study of widgets"},
			want:  -1,
		},
		{
			name:  "incomplete candidates ignored",
			cands: []*types.BibliographicRecord{{Title: "A Study of Widgets"}},
			q:     types.Query{Text: "A study of widgets"},
			want:  -1,
		},
		{
			name:  "title contained in full reference text",
			cands: []*types.BibliographicRecord{rec("A Study of Widgets", 2020)},
			q:     types.Query{Text: "Smith, J. (2020). A study of widgets. Journal of Widgets, 12(3), 45-67."},
			want:  0,
		},
		{
			name:      "custom threshold",
			cands:     []*types.BibliographicRecord{rec("A Study of Gidgets", 2020)},
			q:         types.Query{Text: "A study of widgets"},
			threshold: 0.99,
			want:      -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := BestMatch(tt.cands, tt.q, tt.threshold)
			if tt.want < 0 {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, tt.cands[tt.want], got)
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in   string
		want types.Author
	}{
		{"Jane Smith", types.Author{Family: "Smith", Given: "Jane"}},
		{"Smith, Jane", types.Author{Family: "Smith", Given: "Jane"}},
		{"  Jean  Paul   Sartre ", types.Author{Family: "Sartre", Given: "Jean Paul"}},
		{"Plato", types.Author{Family: "Plato"}},
		{"", types.Author{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitName(tt.in))
		})
	}
}

func TestEntryType(t *testing.T) {
	assert.Equal(t, types.EntryArticle, entryType("journal-article"))
	assert.Equal(t, types.EntryInProceedings, entryType("proceedings-article"))
	assert.Equal(t, types.EntryBook, entryType("Book"))
	assert.Equal(t, types.EntryOther, entryType("dataset"))
}

func TestPageRange(t *testing.T) {
	assert.Equal(t, "", pageRange("", "9"))
	assert.Equal(t, "7", pageRange("7", ""))
	assert.Equal(t, "7", pageRange("7", "7"))
	assert.Equal(t, "7--9", pageRange(" 7", "9 "))
}

func TestOutcomeConstructors(t *testing.T) {
	assert.Equal(t, OutcomeNotFound, Found(&types.BibliographicRecord{Title: "No authors"}).Kind)
	assert.Equal(t, OutcomeFound, Found(rec("Widgets", 2020)).Kind)

	out := Failed("x", ErrorBlocked, nil)
	assert.Equal(t, OutcomeError, out.Kind)
	assert.ErrorIs(t, out.Err, ErrBlocked)
	assert.NotErrorIs(t, out.Err, ErrTimeout)
	assert.Equal(t, "x: blocked", out.Err.Error())
	assert.False(t, ErrorBlocked.Retryable())
	assert.False(t, ErrorMalformed.Retryable())
	assert.True(t, ErrorRateLimited.Retryable())
}
