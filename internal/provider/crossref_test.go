// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibresolve/pkg/types"
)

const sampleCrossrefWork = `{
	"status": "ok",
	"message": {
		"DOI": "10.1145/3313831.3376000",
		"type": "proceedings-article",
		"title": ["Widgets in the Wild"],
		"container-title": ["Proceedings of the 2020 CHI Conference on Human Factors in Computing Systems"],
		"author": [{"given": "Jane", "family": "Smith"}, {"name": "Widget Consortium"}],
		"issued": {"date-parts": [[2020, 4, 21]]},
		"page": "1-12",
		"publisher": "ACM",
		"publisher-location": "New York, NY, USA",
		"abstract": "<jats:p>Widgets are &amp; remain <jats:italic>useful</jats:italic>.</jats:p>"
	}
}`

func TestCrossrefResolveByDOI(t *testing.T) {
	var path, mailto string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		mailto = r.URL.Query().Get("mailto")
		w.Write([]byte(sampleCrossrefWork))
	}))
	defer ts.Close()

	p := &Crossref{Client: ts.Client(), BaseURL: ts.URL, Email: "me@example.com"}
	out := p.Resolve(context.Background(), types.Query{DOI: "10.1145/3313831.3376000"})

	require.Equal(t, OutcomeFound, out.Kind)
	rec := out.Record
	assert.Equal(t, "/10.1145/3313831.3376000", path)
	assert.Equal(t, "me@example.com", mailto)
	assert.Equal(t, "Widgets in the Wild", rec.Title)
	assert.Equal(t, []types.Author{{Family: "Smith", Given: "Jane"}, {Family: "Widget Consortium"}}, rec.Authors)
	assert.Equal(t, 2020, rec.Year)
	assert.Equal(t, types.EntryInProceedings, rec.Type)
	assert.Equal(t, "1-12", rec.Pages)
	assert.Equal(t, "ACM", rec.Publisher)
	assert.Equal(t, "New York, NY, USA", rec.Address)
	assert.Equal(t, "Widgets are & remain useful .", rec.Abstract)
	assert.Equal(t, types.ProviderCrossref, rec.Source)
}

func TestCrossrefWithoutDOIMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	p := &Crossref{Client: ts.Client(), BaseURL: ts.URL}
	out := p.Resolve(context.Background(), types.Query{Text: "Widgets in the Wild"})

	assert.Equal(t, OutcomeNotFound, out.Kind)
	assert.Zero(t, hits.Load())
}

func TestCrossrefLookup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/busy") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(sampleCrossrefWork))
	}))
	defer ts.Close()
	p := &Crossref{Client: ts.Client(), BaseURL: ts.URL}

	rec, err := p.Lookup(context.Background(), "10.1/found")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Widgets in the Wild", rec.Title)

	rec, err = p.Lookup(context.Background(), "10.1/missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = p.Lookup(context.Background(), "10.1/busy")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCrossrefFindDOI(t *testing.T) {
	var q, filter, rows string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("query.bibliographic")
		filter = r.URL.Query().Get("filter")
		rows = r.URL.Query().Get("rows")
		w.Write([]byte(`{"message": {"items": [
			{"DOI": "10.9/other", "title": ["Completely Unrelated Work"], "author": [{"family": "Doe"}], "issued": {"date-parts": [[2020]]}},
			{"DOI": "10.9/WIDGETS", "title": ["Widgets in the Wild"], "author": [{"family": "Smith"}], "issued": {"date-parts": [[2020]]}}
		]}}`))
	}))
	defer ts.Close()

	p := &Crossref{Client: ts.Client(), BaseURL: ts.URL}
	doi, err := p.FindDOI(context.Background(), &types.BibliographicRecord{
		Title:   "Widgets in the wild",
		Authors: []types.Author{{Family: "Smith"}},
		Year:    2020,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.9/widgets", doi)
	assert.Equal(t, "Widgets in the wild Smith", q)
	assert.Equal(t, "from-pub-date:2020,until-pub-date:2020", filter)
	assert.Equal(t, "5", rows)
}

func TestCrossrefFindDOINoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {"items": [{"DOI": "10.9/x", "title": ["Something Else Entirely"], "author": [{"family": "Doe"}]}]}}`))
	}))
	defer ts.Close()

	p := &Crossref{Client: ts.Client(), BaseURL: ts.URL}
	doi, err := p.FindDOI(context.Background(), &types.BibliographicRecord{Title: "Widgets in the wild"})
	require.NoError(t, err)
	assert.Empty(t, doi)

	doi, err = p.FindDOI(context.Background(), &types.BibliographicRecord{})
	require.NoError(t, err)
	assert.Empty(t, doi)
}

func TestStripJATS(t *testing.T) {
	assert.Equal(t, "", stripJATS(""))
	assert.Equal(t, "plain text", stripJATS("plain   text"))
	assert.Equal(t, "A < B", stripJATS("<jats:p>A &lt; B</jats:p>"))
}
