// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// publisherAddress maps publisher names to their customary address line.
var publisherAddress = map[string]string{
	"Association for Computing Machinery": "New York, NY, USA",
	"ACM":                                 "New York, NY, USA",
	"Institute of Electrical and Electronics Engineers": "Piscataway, NJ, USA",
	"IEEE":                       "Piscataway, NJ, USA",
	"Springer":                   "Cham, Switzerland",
	"Springer Nature":            "Cham, Switzerland",
	"Elsevier":                   "Amsterdam, Netherlands",
	"Morgan & Claypool":          "San Rafael, CA, USA",
	"MIT Press":                  "Cambridge, MA, USA",
	"Cambridge University Press": "Cambridge, UK",
	"Oxford University Press":    "Oxford, UK",
	"Taylor & Francis":           "Abingdon, UK",
	"Wiley":                      "Hoboken, NJ, USA",
}

// venuePublisher maps proceedings keywords to their publisher.
var venuePublisher = map[string]string{
	"chi":      "ACM",
	"uist":     "ACM",
	"cscw":     "ACM",
	"ubicomp":  "ACM",
	"siggraph": "ACM",
	"icra":     "IEEE",
	"iros":     "IEEE",
}

// publisherKeys lists publisherAddress keys longest first so the most
// specific name wins a substring match.
var publisherKeys = func() []string {
	keys := make([]string, 0, len(publisherAddress))
	for k := range publisherAddress {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// fillPublisher supplies a missing address from the publisher table and a
// missing publisher for well-known proceedings.
func fillPublisher(rec *types.BibliographicRecord) {
	if rec.Publisher == "" && rec.Type == types.EntryInProceedings {
		if pub := publisherForVenue(rec.Venue); pub != "" {
			rec.Publisher = pub
		}
	}
	if rec.Address == "" && rec.Publisher != "" {
		rec.Address = AddressFor(rec.Publisher)
	}
}

// AddressFor returns the address for a publisher name. An exact match
// (ignoring case) is preferred; otherwise the longest table entry contained
// in the name is used, so "Elsevier BV" maps like "Elsevier".
func AddressFor(publisher string) string {
	p := strings.TrimSpace(publisher)
	for _, k := range publisherKeys {
		if strings.EqualFold(p, k) {
			return publisherAddress[k]
		}
	}
	lower := strings.ToLower(p)
	for _, k := range publisherKeys {
		if containsWord(lower, strings.ToLower(k)) {
			return publisherAddress[k]
		}
	}
	return ""
}

// publisherForVenue matches whole words of the venue against the
// proceedings keyword table.
func publisherForVenue(venue string) string {
	words := strings.FieldsFunc(strings.ToLower(venue), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if pub, ok := venuePublisher[w]; ok {
			return pub
		}
	}
	return ""
}

// containsWord reports whether phrase occurs in s on word boundaries.
func containsWord(s, phrase string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(phrase)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
