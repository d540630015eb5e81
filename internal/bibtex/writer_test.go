// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibresolve/pkg/types"
)

func article() *types.BibliographicRecord {
	return &types.BibliographicRecord{
		Type:  types.EntryArticle,
		Title: "Widgets & Gadgets: 100% of the $cost",
		Authors: []types.Author{
			{Given: "Jane", Family: "Smith"},
			{Given: "Bo", Family: "Jones"},
		},
		Venue:     "Journal of Widgets",
		Year:      2020,
		Volume:    "12",
		Number:    "3",
		Pages:     "1--12",
		Publisher: "ACM",
		Address:   "New York, NY, USA",
		DOI:       "10.1145/123",
		Abstract:  "We study widgets.",
	}
}

func TestFormatArticle(t *testing.T) {
	got := format("Smith2020widgets", article(), false)
	want := `@article{Smith2020widgets,
  author = {Smith, Jane and Jones, Bo},
  title = {Widgets \& Gadgets: 100\% of the \$cost},
  journal = {Journal of Widgets},
  year = {2020},
  volume = {12},
  number = {3},
  pages = {1--12},
  publisher = {ACM},
  address = {New York, NY, USA},
  doi = {10.1145/123},
}
`
	assert.Equal(t, want, got)
}

func TestFormatTypes(t *testing.T) {
	tests := []struct {
		name      string
		typ       types.EntryType
		wantHead  string
		wantVenue string
	}{
		{"article", types.EntryArticle, "@article{k,", "journal = {Venue}"},
		{"proceedings", types.EntryInProceedings, "@inproceedings{k,", "booktitle = {Venue}"},
		{"book", types.EntryBook, "@book{k,", ""},
		{"other", types.EntryOther, "@misc{k,", "howpublished = {Venue}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &types.BibliographicRecord{Type: tt.typ, Title: "T", Venue: "Venue", Year: 2000}
			got := format("k", rec, false)
			assert.True(t, strings.HasPrefix(got, tt.wantHead), got)
			if tt.wantVenue != "" {
				assert.Contains(t, got, tt.wantVenue)
			} else {
				assert.NotContains(t, got, "Venue")
			}
		})
	}
}

func TestFormatArticleNumber(t *testing.T) {
	rec := &types.BibliographicRecord{
		Type:      types.EntryInProceedings,
		Title:     "T",
		Year:      2021,
		ArticleNo: "138",
		NumPages:  "12",
	}
	got := format("k", rec, false)
	assert.Contains(t, got, "  articleno = {138},\n  numpages = {12},\n")
	assert.NotContains(t, got, "pages = {}")
}

func TestFormatAbstract(t *testing.T) {
	assert.NotContains(t, format("k", article(), false), "abstract")
	assert.Contains(t, format("k", article(), true), "  abstract = {We study widgets.},\n")
}

func TestFormatAuthors(t *testing.T) {
	tests := []struct {
		name    string
		authors []types.Author
		want    string
	}{
		{"empty", nil, ""},
		{"single", []types.Author{{Given: "A", Family: "B"}}, "B, A"},
		{"family only", []types.Author{{Family: "Consortium"}}, "Consortium"},
		{"given only", []types.Author{{Given: "Plato"}}, "Plato"},
		{"blank skipped", []types.Author{{}, {Given: "A", Family: "B"}}, "B, A"},
		{"escaped", []types.Author{{Given: "A", Family: "B_C"}}, `B\_C, A`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAuthors(tt.authors))
		})
	}
}

func TestEscapeLatex(t *testing.T) {
	assert.Equal(t, `a\&b \{x\} \#1 \_`, escapeLatex("a&b {x} #1 _"))
	assert.Equal(t, `\textasciitilde{}\textasciicircum{}`, escapeLatex("~^"))
	assert.Equal(t, `\textbackslash{}LaTeX`, escapeLatex(`\LaTeX`))
	assert.Equal(t, "plain", escapeLatex("plain"))
}

func entriesFixture() []Entry {
	return []Entry{
		{Key: "Smith2020widgets", Index: 2, Record: article()},
		{Key: "ref1", Index: 1, RawText: "[2] Some unknown work, 1999. 50% done"},
		{Key: "Lee2019gadgets", Index: 0, Record: &types.BibliographicRecord{
			Type: types.EntryBook, Title: "Gadgets", Year: 2019,
			Authors: []types.Author{{Given: "Ann", Family: "Lee"}},
		}},
	}
}

func TestWriteOmitsUnresolved(t *testing.T) {
	w := New(types.OutputConfig{})
	var buf bytes.Buffer
	sum, err := w.Write(&buf, entriesFixture())
	require.NoError(t, err)

	assert.Equal(t, Summary{Written: 2, Skipped: []int{1}}, sum)
	out := buf.String()
	assert.NotContains(t, out, "ref1")
	assert.Less(t, strings.Index(out, "Lee2019gadgets"), strings.Index(out, "Smith2020widgets"))
	assert.Contains(t, out, "}\n\n@article{")
}

func TestWritePlaceholder(t *testing.T) {
	w := New(types.OutputConfig{Unresolved: types.UnresolvedPlaceholder})
	var buf bytes.Buffer
	sum, err := w.Write(&buf, entriesFixture())
	require.NoError(t, err)

	assert.Equal(t, Summary{Written: 2, Placeholders: 1}, sum)
	out := buf.String()
	assert.Contains(t, out, "@misc{ref1,\n  note = {Some unknown work, 1999. 50\\% done},\n}\n")

	first := strings.Index(out, "Lee2019gadgets")
	second := strings.Index(out, "ref1")
	third := strings.Index(out, "Smith2020widgets")
	assert.True(t, first < second && second < third, out)
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	sum, err := New(types.OutputConfig{}).Write(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, buf.String())
}

func TestWriteUnknownFormat(t *testing.T) {
	w := &Writer{Format: "ris"}
	_, err := w.Write(&bytes.Buffer{}, entriesFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ris")
}

func TestWriteDoesNotReorderInput(t *testing.T) {
	in := entriesFixture()
	_, err := New(types.OutputConfig{}).Write(&bytes.Buffer{}, in)
	require.NoError(t, err)
	assert.Equal(t, 2, in[0].Index)
}

func TestWriteCSL(t *testing.T) {
	w := New(types.OutputConfig{Format: types.FormatCSLYAML, Unresolved: types.UnresolvedPlaceholder, IncludeAbstract: true})
	var buf bytes.Buffer
	sum, err := w.Write(&buf, entriesFixture())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Written)

	var items []CSLItem
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 3)

	assert.Equal(t, "Lee2019gadgets", items[0].ID)
	assert.Equal(t, "book", items[0].Type)

	assert.Equal(t, "ref1", items[1].ID)
	assert.Equal(t, "Some unknown work, 1999. 50% done", items[1].Note)

	art := items[2]
	assert.Equal(t, "article-journal", art.Type)
	assert.Equal(t, "Widgets & Gadgets: 100% of the $cost", art.Title)
	assert.Equal(t, "Journal of Widgets", art.ContainerTitle)
	assert.Equal(t, "1-12", art.Page)
	assert.Equal(t, "3", art.Issue)
	assert.Equal(t, "10.1145/123", art.DOI)
	assert.Equal(t, "We study widgets.", art.Abstract)
	assert.Equal(t, []CSLName{{Family: "Smith", Given: "Jane"}, {Family: "Jones", Given: "Bo"}}, art.Author)
	require.NotNil(t, art.Issued)
	assert.Equal(t, [][]int{{2020}}, art.Issued.DateParts)
}

func TestCSLType(t *testing.T) {
	assert.Equal(t, "article-journal", cslType(types.EntryArticle))
	assert.Equal(t, "paper-conference", cslType(types.EntryInProceedings))
	assert.Equal(t, "book", cslType(types.EntryBook))
	assert.Equal(t, "article", cslType(types.EntryOther))
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "refs.bib")
	w := New(types.OutputConfig{})

	_, err := w.WriteFile(path, entriesFixture())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Smith2020widgets")

	_, err = w.WriteFile(path, entriesFixture()[2:])
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Smith2020widgets")

	left, err := filepath.Glob(filepath.Join(dir, "out", ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestWriteFileKeepsOldOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bib")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	w := &Writer{Format: "bogus"}
	_, err := w.WriteFile(path, entriesFixture())
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestWriteEach(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "entries")
	n, err := New(types.OutputConfig{Unresolved: types.UnresolvedPlaceholder}).WriteEach(dir, entriesFixture())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	var got []string
	for _, e := range names {
		got = append(got, e.Name())
	}
	assert.ElementsMatch(t, []string{"Lee2019gadgets.bib", "Smith2020widgets.bib"}, got)

	data, err := os.ReadFile(filepath.Join(dir, "Lee2019gadgets.bib"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "@book{Lee2019gadgets,"))
}

func TestWriteEachCSLExtension(t *testing.T) {
	dir := t.TempDir()
	_, err := New(types.OutputConfig{Format: types.FormatCSLYAML}).WriteEach(dir, entriesFixture())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "Smith2020widgets.yaml"))
	assert.NoError(t, err)
}
