// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibresolve/pkg/types"
)

func TestSemanticScholarSearch(t *testing.T) {
	var path, apiKey, year string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("x-api-key")
		year = r.URL.Query().Get("year")
		w.Write([]byte(`{"total": 1, "data": [{
			"paperId": "abc",
			"title": "Attention Is All You Need",
			"year": 2017,
			"venue": "NeurIPS",
			"journal": {"name": "Advances in Neural Information Processing Systems", "volume": " 30 ", "pages": "5998-6008"},
			"publicationTypes": ["Conference"],
			"authors": [{"name": "Ashish Vaswani"}, {"name": "Noam Shazeer"}],
			"externalIds": {"DOI": "10.5555/3295222.3295349"}
		}]}`))
	}))
	defer ts.Close()

	p := &SemanticScholar{Client: ts.Client(), BaseURL: ts.URL, APIKey: "sk_test"}
	out := p.Resolve(context.Background(), types.Query{Text: "Attention is all you need", Year: 2017})

	require.Equal(t, OutcomeFound, out.Kind)
	assert.Equal(t, "/paper/search", path)
	assert.Equal(t, "sk_test", apiKey)
	assert.Equal(t, "2017", year)

	rec := out.Record
	assert.Equal(t, "Advances in Neural Information Processing Systems", rec.Venue)
	assert.Equal(t, "30", rec.Volume)
	assert.Equal(t, "5998-6008", rec.Pages)
	assert.Equal(t, types.EntryInProceedings, rec.Type)
	assert.Equal(t, "Vaswani", rec.Authors[0].Family)
	assert.Equal(t, "10.5555/3295222.3295349", rec.DOI)
}

func TestSemanticScholarDOILookup(t *testing.T) {
	var path, apiKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("x-api-key")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	p := &SemanticScholar{Client: ts.Client(), BaseURL: ts.URL}
	out := p.Resolve(context.Background(), types.Query{DOI: "10.1/xyz", Text: "ignored"})

	assert.Equal(t, OutcomeNotFound, out.Kind)
	assert.Equal(t, "/paper/DOI:10.1/xyz", path)
	assert.Empty(t, apiKey, "no key header without a configured key")
}
