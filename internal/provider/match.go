// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// DefaultThreshold is the minimum title similarity for a search candidate
// to be accepted when none is configured.
const DefaultThreshold = 0.75

// minContainedWords is the shortest candidate title that may match by
// being contained in a longer query text.
const minContainedWords = 3

// foldTitle lowercases s and reduces punctuation and whitespace runs to a
// single space.
func foldTitle(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// Similarity returns the normalized Levenshtein similarity of two titles
// in [0, 1], computed on folded text.
func Similarity(a, b string) float64 {
	fa, fb := foldTitle(a), foldTitle(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}
	longest := max(len([]rune(fa)), len([]rune(fb)))
	d := levenshtein.ComputeDistance(fa, fb)
	return 1 - float64(d)/float64(longest)
}

// titleScore scores a candidate title against the query text. A candidate
// title of several words found verbatim inside the query text scores 1,
// which covers queries built from a whole reference line.
func titleScore(query, candidate string) float64 {
	fq, fc := foldTitle(query), foldTitle(candidate)
	if fc != "" && len(strings.Fields(fc)) >= minContainedWords && strings.Contains(fq, fc) {
		return 1
	}
	return Similarity(query, candidate)
}

// BestMatch picks the complete candidate whose title is most similar to the
// query text. Ties go to the candidate whose year is closest to the query
// year, then to the earlier candidate. It returns nil when the best score is
// below threshold; a threshold of zero or less selects DefaultThreshold.
func BestMatch(candidates []*types.BibliographicRecord, q types.Query, threshold float64) (*types.BibliographicRecord, float64) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	var best *types.BibliographicRecord
	bestScore := -1.0
	for _, c := range candidates {
		if !c.Complete() {
			continue
		}
		s := titleScore(q.Text, c.Title)
		switch {
		case s > bestScore+1e-9:
			best, bestScore = c, s
		case math.Abs(s-bestScore) <= 1e-9 && yearDistance(c.Year, q.Year) < yearDistance(best.Year, q.Year):
			best = c
		}
	}
	if best == nil || bestScore < threshold {
		return nil, max(bestScore, 0)
	}
	return best, bestScore
}

func yearDistance(a, b int) int {
	if a == 0 || b == 0 {
		return math.MaxInt32
	}
	if a > b {
		return a - b
	}
	return b - a
}

// entryType maps a source work type (OpenAlex or Crossref vocabulary) to an
// output entry type.
func entryType(workType string) types.EntryType {
	switch strings.ToLower(strings.TrimSpace(workType)) {
	case "article", "journal-article", "journal", "review", "letter", "journalarticle":
		return types.EntryArticle
	case "proceedings-article", "conference-paper", "conference", "inproceedings", "proceedings":
		return types.EntryInProceedings
	case "book", "monograph", "edited-book", "reference-book":
		return types.EntryBook
	default:
		return types.EntryOther
	}
}

// splitName splits a display name into family and given parts. "Family,
// Given" is honored; otherwise the last space separates given from family.
func splitName(name string) types.Author {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return types.Author{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return types.Author{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return types.Author{Family: name}
	}
	return types.Author{Family: name[idx+1:], Given: name[:idx]}
}

// pageRange joins first and last page with the canonical separator.
func pageRange(first, last string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	switch {
	case first == "":
		return ""
	case last == "" || last == first:
		return first
	default:
		return first + "--" + last
	}
}
