// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract splits the reference list of converted text into
// individual ReferenceEntry values and makes a best-effort structural guess
// (author, year, title, DOI) for each one. It performs no network access.
package extract

import (
	"iter"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bibresolve/pkg/types"
)

var (
	// markerRe matches a list marker at the start of a reference line:
	// "-", "*", "+", "•", "[12]", "(12)", "12." or "12)".
	markerRe = regexp.MustCompile(`^\s*(?:[-*+•]|\[\d{1,4}\]|\(\d{1,4}\)|\d{1,4}[.)])\s+(\S.*?)\s*$`)

	// yearRe matches a plausible publication year, optionally followed by
	// a disambiguation letter (2020a).
	yearRe = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})[a-z]?\b`)

	// parenYearRe matches "(2020)", "(2020a)" and "(2020, June)".
	parenYearRe = regexp.MustCompile(`\((1[5-9]\d{2}|20\d{2})[a-z]?(?:,[^)]*)?\)`)

	doiRe = regexp.MustCompile(`(?i)\b10\.\d{4,9}/[^\s"<>]+`)

	// doiRefRe matches a DOI together with its doi: or doi.org prefix so
	// the whole reference can be removed from query text.
	doiRefRe = regexp.MustCompile(`(?i)(?:https?://(?:dx\.)?doi\.org/|doi:\s*)?10\.\d{4,9}/[^\s"<>]+`)

	// arxivRe matches an arXiv identifier written as arXiv:2301.07041v2,
	// arXiv:cs/0112017 or an arxiv.org/abs or /pdf URL. The version suffix
	// is matched but not captured.
	arxivRe = regexp.MustCompile(`(?i)(?:\barxiv:\s*|arxiv\.org/(?:abs|pdf)/)(\d{4}\.\d{4,5}|[a-z][a-z-]*(?:\.[A-Z]{2})?/\d{7})(?:v\d+)?`)

	// yearSentenceRe matches a year standing as its own sentence after the
	// author block, as in "Jane Smith. 2020. Title.".
	yearSentenceRe = regexp.MustCompile(`(?:^|[.,]\s+)(1[5-9]\d{2}|20\d{2})[a-z]?\.\s+`)

	// authorBlockRe matches an author block like "Smith, A. and Jones, B."
	// at the start of an entry, separating it from the title that follows.
	authorBlockRe = regexp.MustCompile(
		`^((?:[A-Z][a-z]+(?:,\s+[A-Z]\.?)?(?:,?\s+(?:and|&)\s+)?)+(?:\s*et\s+al\.)?)\s*[.]?\s+(.+)$`,
	)

	quotedRe = regexp.MustCompile(`["“]([^"”]{8,})["”]`)

	// abbrevRe matches abbreviations and initials whose trailing period
	// does not end a sentence.
	abbrevRe = regexp.MustCompile(`\b(?:et al|e\.g|i\.e|[Vv]ols?|[Nn]o|pp|Proc|vs|[Ee]ds?|[A-Z])\.`)

	etAlRe      = regexp.MustCompile(`(?i)\bet\s+al\.?`)
	authorSepRe = regexp.MustCompile(`\s+(?:and|&)\s+|;|,`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Extractor turns a reference-list section into ReferenceEntry values.
// An Extractor is not safe for concurrent use.
type Extractor struct {
	log     zerolog.Logger
	skipped int
}

// New returns an Extractor that logs skipped lines to log at debug level.
func New(log zerolog.Logger) *Extractor {
	return &Extractor{log: log.With().Str("component", "extract").Logger()}
}

// Entries returns a lazy, ordered sequence of the references found in
// section. Blank lines are ignored. Non-blank lines that do not look like a
// reference are skipped and counted; Skipped reports the count once
// iteration has finished.
func (e *Extractor) Entries(section string) iter.Seq[types.ReferenceEntry] {
	return func(yield func(types.ReferenceEntry) bool) {
		e.skipped = 0
		index := 0
		for line := range strings.Lines(section) {
			raw := strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(raw) == "" {
				continue
			}
			entry, ok := Parse(index, raw)
			if !ok {
				e.skipped++
				e.log.Debug().Str("line", raw).Msg("skipping unrecognized reference line")
				continue
			}
			index++
			if !yield(entry) {
				return
			}
		}
	}
}

// Skipped returns the number of non-blank lines the last iteration of
// Entries did not recognize as references.
func (e *Extractor) Skipped() int {
	return e.skipped
}

// Parse recognizes a single reference line. A line is a reference when it
// starts with a list marker and its body carries a year, a DOI or an arXiv
// identifier.
func Parse(index int, raw string) (types.ReferenceEntry, bool) {
	m := markerRe.FindStringSubmatch(raw)
	if m == nil {
		return types.ReferenceEntry{}, false
	}
	body := m[1]
	doi := findDOI(body)
	arxivID := findArxivID(body)
	if doi == "" && arxivID == "" && !yearRe.MatchString(body) {
		return types.ReferenceEntry{}, false
	}

	author, year, title := guess(stripIdentifiers(strings.ReplaceAll(body, "*", "")))
	return types.ReferenceEntry{
		Index:         index,
		RawText:       raw,
		GuessedAuthor: author,
		GuessedYear:   year,
		GuessedTitle:  title,
		DOI:           doi,
		ArxivID:       arxivID,
	}, true
}

// Body returns the reference text without its list marker.
func Body(raw string) string {
	if m := markerRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return strings.TrimSpace(raw)
}

// NewQuery derives the lookup query for an entry.
func NewQuery(e types.ReferenceEntry) types.Query {
	q := types.Query{
		Text:    e.GuessedTitle,
		DOI:     e.DOI,
		ArxivID: e.ArxivID,
		Author:  FirstFamilyName(e.GuessedAuthor),
		Year:    e.GuessedYear,
	}
	if q.Text == "" {
		text := doiRefRe.ReplaceAllString(Body(e.RawText), " ")
		text = arxivRe.ReplaceAllString(text, " ")
		q.Text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
	}
	return q
}

// guess splits a reference body into author, year and title hints. The
// author block is everything before a parenthesized (or free-standing) year
// and the title runs from the year to the next sentence terminator. Without
// such a year the body is read as "Authors. Title. Venue ...". A quoted
// title overrides the positional guess.
func guess(body string) (author string, year int, title string) {
	if loc := parenYearRe.FindStringSubmatchIndex(body); loc != nil {
		year, _ = strconv.Atoi(body[loc[2]:loc[3]])
		author = cleanAuthor(body[:loc[0]])
		title = firstSentence(strings.TrimLeft(body[loc[1]:], ".,:; "))
	} else if loc := yearSentenceRe.FindStringSubmatchIndex(body); loc != nil {
		year, _ = strconv.Atoi(body[loc[2]:loc[3]])
		author = cleanAuthor(body[:loc[2]])
		title = firstSentence(body[loc[1]:])
	} else {
		if m := yearRe.FindStringSubmatch(body); m != nil {
			year, _ = strconv.Atoi(m[1])
		}
		if m := authorBlockRe.FindStringSubmatch(body); m != nil {
			author = cleanAuthor(m[1])
			title = firstSentence(m[2])
		} else if parts := sentences(body); len(parts) >= 2 {
			author = cleanAuthor(parts[0])
			title = parts[1]
		}
	}

	if loc := quotedRe.FindStringSubmatchIndex(body); loc != nil {
		title = body[loc[2]:loc[3]]
		if a := cleanAuthor(body[:loc[0]]); a != "" {
			author = a
		}
	}
	return author, year, trimTitle(title)
}

// protect hides periods that belong to abbreviations or initials. The
// result has the same length as text so indexes stay aligned.
func protect(text string) string {
	return abbrevRe.ReplaceAllStringFunc(text, func(s string) string {
		return s[:len(s)-1] + "\x00"
	})
}

// firstSentence returns text up to the first sentence terminator. A
// question or exclamation mark is kept, a period is dropped.
func firstSentence(text string) string {
	safe := protect(text)
	end, keep := len(safe), 0
	for _, sep := range []string{". ", "? ", "! "} {
		if i := strings.Index(safe, sep); i >= 0 && i < end {
			end = i
			keep = 0
			if sep[0] != '.' {
				keep = 1
			}
		}
	}
	return text[:end+keep]
}

// sentences splits text at ". " boundaries that are not abbreviations.
func sentences(text string) []string {
	safe := protect(text)
	var parts []string
	start := 0
	for {
		i := strings.Index(safe[start:], ". ")
		if i < 0 {
			break
		}
		parts = append(parts, strings.TrimSpace(text[start:start+i]))
		start += i + 2
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func cleanAuthor(s string) string {
	s = yearRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, " ,;:(")
}

func trimTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"“”'`)
	return strings.TrimRight(s, ".,;: ")
}

// findDOI returns the first DOI in text without trailing punctuation.
func findDOI(text string) string {
	doi := doiRe.FindString(text)
	if doi == "" {
		return ""
	}
	for {
		trimmed := strings.TrimRight(doi, ".,;")
		if strings.HasSuffix(trimmed, ")") && strings.Count(trimmed, "(") < strings.Count(trimmed, ")") {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if strings.HasSuffix(trimmed, "]") && !strings.Contains(trimmed, "[") {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if trimmed == doi {
			return doi
		}
		doi = trimmed
	}
}

// stripIdentifiers removes DOIs and arXiv ids so their digits are not
// read as a year or a title.
func stripIdentifiers(body string) string {
	body = doiRefRe.ReplaceAllString(body, " ")
	body = arxivRe.ReplaceAllString(body, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(body, " "))
}

// findArxivID returns the first arXiv identifier in text without its
// version suffix.
func findArxivID(text string) string {
	if m := arxivRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// FirstFamilyName returns the family name of the first author in an author
// block written as "Family, G." or "G. Family". It returns an empty string
// when no name can be found.
func FirstFamilyName(author string) string {
	author = strings.TrimSpace(etAlRe.ReplaceAllString(author, ""))
	if author == "" {
		return ""
	}
	first := authorSepRe.Split(author, 2)[0]
	tokens := strings.Fields(first)
	for i := len(tokens) - 1; i >= 0; i-- {
		if !isInitial(tokens[i]) {
			return strings.Trim(tokens[i], ".")
		}
	}
	return ""
}

// isInitial reports whether tok looks like an initial: "J.", "J", "J.-P."
// or a run of capitals such as "JK".
func isInitial(tok string) bool {
	t := strings.Trim(tok, ".-")
	if len([]rune(t)) <= 1 || strings.Contains(t, ".") {
		return true
	}
	if len([]rune(t)) > 3 {
		return false
	}
	for _, r := range t {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
