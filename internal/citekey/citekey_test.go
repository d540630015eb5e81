// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citekey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/bibresolve/pkg/types"
)

func record(family string, year int, title string) *types.BibliographicRecord {
	return &types.BibliographicRecord{
		Title:   title,
		Authors: []types.Author{{Family: family, Given: "J."}},
		Year:    year,
	}
}

func TestBase(t *testing.T) {
	tests := []struct {
		name string
		rec  *types.BibliographicRecord
		want string
	}{
		{"simple", record("Smith", 2020, "A Study of Widgets"), "Smith2020study"},
		{"stopwords skipped", record("Lee", 2019, "On the Theory of Gadgets"), "Lee2019theory"},
		{"diacritics folded", record("Müller", 2018, "Über Widgets"), "Muller2018uber"},
		{"ligature", record("Øster", 2001, "Straße"), "Oster2001strasse"},
		{"family case normalized", record("van der BERG", 2015, "Gadgets"), "Vanderberg2015gadgets"},
		{"punctuation stripped", record("O'Neil", 2010, "Widgets: A Review"), "Oneil2010widgets"},
		{"digits kept in title word", record("Smith", 2020, "3D Widgets"), "Smith20203d"},
		{"no title word", record("Smith", 2020, "The Of"), "Smith2020"},
		{"missing year", record("Smith", 0, "Widgets"), ""},
		{"missing author", &types.BibliographicRecord{Title: "Widgets", Year: 2020}, ""},
		{"non-latin family", record("王", 2020, "Widgets"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Base(tt.rec))
		})
	}
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "a", Suffix(1))
	assert.Equal(t, "b", Suffix(2))
	assert.Equal(t, "z", Suffix(26))
	assert.Equal(t, "aa", Suffix(27))
	assert.Equal(t, "ab", Suffix(28))
	assert.Equal(t, "az", Suffix(52))
	assert.Equal(t, "ba", Suffix(53))
}

func TestGenerateCollisions(t *testing.T) {
	items := []Item{
		{Index: 0, Record: record("Smith", 2020, "A study of widgets")},
		{Index: 1, Record: record("Smith", 2020, "Study of gadgets")},
		{Index: 2, Record: record("Jones", 2019, "Gadgets")},
		{Index: 3, Record: record("Smith", 2020, "Studying things")},
		{Index: 4, Record: record("Smith", 2020, "The study")},
	}
	got := Generate(items)
	assert.Equal(t, map[int]string{
		0: "Smith2020study",
		1: "Smith2020studya",
		2: "Jones2019gadgets",
		3: "Smith2020studying",
		4: "Smith2020studyb",
	}, got)
}

func TestGenerateFallbackKeys(t *testing.T) {
	items := []Item{
		{Index: 4, Record: nil},
		{Index: 7, Record: record("Smith", 0, "Undated")},
		{Index: 9, Record: record("Smith", 2020, "Widgets")},
	}
	assert.Equal(t, map[int]string{
		4: "ref4",
		7: "ref7",
		9: "Smith2020widgets",
	}, Generate(items))
}

func TestGenerateSuffixNeverCollides(t *testing.T) {
	// A base that happens to equal an earlier suffixed key is itself
	// suffixed rather than duplicated.
	items := []Item{
		{Index: 0, Record: record("Smith", 2020, "Widgets")},
		{Index: 1, Record: record("Smith", 2020, "Widgets")},
		{Index: 2, Record: record("Smith", 2020, "Widgetsa")},
	}
	got := Generate(items)
	assert.Equal(t, "Smith2020widgets", got[0])
	assert.Equal(t, "Smith2020widgetsa", got[1])
	assert.Equal(t, "Smith2020widgetsaa", got[2])

	seen := map[string]bool{}
	for _, k := range got {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestGenerateManyCollisions(t *testing.T) {
	var items []Item
	for i := range 30 {
		items = append(items, Item{Index: i, Record: record("Smith", 2020, "Widgets")})
	}
	got := Generate(items)
	assert.Equal(t, "Smith2020widgets", got[0])
	assert.Equal(t, "Smith2020widgetsz", got[26])
	assert.Equal(t, "Smith2020widgetsaa", got[27])
	assert.Len(t, got, 30)
}

func TestGenerateDeterministic(t *testing.T) {
	items := []Item{
		{Index: 0, Record: record("Smith", 2020, "Widgets")},
		{Index: 1, Record: record("Smith", 2020, "Widgets")},
		{Index: 2, Record: nil},
	}
	first := Generate(items)
	for range 5 {
		assert.Equal(t, first, Generate(items))
	}
}
