// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citekey assigns citation keys of the form Family + Year + word,
// e.g. Smith2020study, unique across one batch of records.
package citekey

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// Item is one record to key. Index identifies the item in the result and
// is used for the fallback key of records without an author or year.
type Item struct {
	Index  int
	Record *types.BibliographicRecord
}

// stopwords are skipped when picking the title word.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"nor": true, "of": true, "on": true, "in": true, "at": true, "to": true,
	"for": true, "by": true, "with": true, "from": true, "as": true, "via": true,
}

// ligatures are letters that do not decompose into a base letter plus marks.
var ligatures = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "ł", "l", "Ł", "L", "đ", "d", "Đ", "D", "þ", "th",
)

// Generate returns a key for every item, keyed by Item.Index. Items are
// keyed in slice order: the first item with a given base keeps it and
// later ones get a, b, ... z, aa, ab, ... appended, skipping any key that
// is already taken. The same input always yields the same keys.
func Generate(items []Item) map[int]string {
	keys := make(map[int]string, len(items))
	used := make(map[string]bool, len(items))
	next := make(map[string]int)

	for _, it := range items {
		base := Base(it.Record)
		if base == "" {
			base = "ref" + strconv.Itoa(it.Index)
		}
		key := base
		for used[key] {
			next[base]++
			key = base + Suffix(next[base])
		}
		used[key] = true
		keys[it.Index] = key
	}
	return keys
}

// Base returns the unsuffixed key for rec, or "" when rec lacks a first
// author family name or a year.
func Base(rec *types.BibliographicRecord) string {
	if rec == nil || rec.Year <= 0 || len(rec.Authors) == 0 {
		return ""
	}
	family := alnum(Fold(rec.Authors[0].Family))
	if family == "" {
		return ""
	}
	family = strings.ToUpper(family[:1]) + strings.ToLower(family[1:])
	return family + strconv.Itoa(rec.Year) + titleWord(rec.Title)
}

// Suffix returns the n-th disambiguation suffix: 1 is "a", 26 is "z", 27
// is "aa".
func Suffix(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('a' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// Fold strips diacritics and expands ligatures so "Müller" becomes
// "Muller".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, ligatures.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// titleWord returns the first title word that is not a stopword, lowercased
// and reduced to ASCII letters and digits.
func titleWord(title string) string {
	for _, w := range strings.Fields(Fold(title)) {
		w = strings.ToLower(alnum(w))
		if w == "" || stopwords[w] {
			continue
		}
		return w
	}
	return ""
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
