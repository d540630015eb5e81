// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// Set is the ordered provider chain built from configuration.
type Set struct {
	// Chain holds the enabled providers in priority order.
	Chain []Provider

	// Registry serves DOI discovery and lookup for enrichment. It is set
	// whether or not Crossref takes part in the chain.
	Registry *Crossref

	browser *BrowserFetcher
}

// Close releases the browser session, if one was started.
func (s *Set) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

// Build constructs the providers named in cfg.Providers.Order, skipping
// disabled ones. challenge is consulted by the scholarly-search provider in
// interactive mode; nil selects a prompt on the terminal.
func Build(cfg types.Config, challenge ChallengeHandler, log zerolog.Logger) (*Set, error) {
	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	ua := cfg.HTTP.UserAgent

	set := &Set{
		Registry: &Crossref{
			Client:    client,
			BaseURL:   cfg.Providers.Crossref.BaseURL,
			Email:     cfg.ContactEmail,
			UserAgent: ua,
			Threshold: cfg.SimilarityThreshold,
		},
	}

	for _, name := range cfg.Providers.Order {
		pc, ok := cfg.Providers.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		if !pc.Enabled {
			log.Debug().Str("provider", name).Msg("provider disabled")
			continue
		}

		switch name {
		case types.ProviderOpenAlex:
			set.Chain = append(set.Chain, &OpenAlex{
				Client:    client,
				BaseURL:   pc.BaseURL,
				Email:     cfg.ContactEmail,
				UserAgent: ua,
				Threshold: cfg.SimilarityThreshold,
			})
		case types.ProviderCrossref:
			set.Chain = append(set.Chain, set.Registry)
		case types.ProviderSemanticScholar:
			set.Chain = append(set.Chain, &SemanticScholar{
				Client:    client,
				BaseURL:   pc.BaseURL,
				APIKey:    pc.APIKey,
				UserAgent: ua,
				Threshold: cfg.SimilarityThreshold,
			})
		case types.ProviderArxiv:
			set.Chain = append(set.Chain, &Arxiv{
				Client:    client,
				BaseURL:   pc.BaseURL,
				UserAgent: ua,
				Threshold: cfg.SimilarityThreshold,
			})
		case types.ProviderScholar:
			set.Chain = append(set.Chain, set.scholar(cfg, pc, client, challenge, log))
		}
	}

	if len(set.Chain) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	return set, nil
}

func (s *Set) scholar(cfg types.Config, pc types.ProviderConfig, client *http.Client, challenge ChallengeHandler, log zerolog.Logger) *Scholar {
	var fetcher PageFetcher = &HTTPFetcher{Client: client}
	if cfg.Scholar.Browser {
		s.browser = &BrowserFetcher{Headless: !cfg.Scholar.Interactive}
		fetcher = s.browser
	}
	if challenge == nil {
		challenge = &TerminalPrompt{In: os.Stdin, Out: os.Stderr}
	}
	return &Scholar{
		Fetcher:          fetcher,
		BaseURL:          pc.BaseURL,
		Pacer:            PacerFor(cfg.Scholar),
		Interactive:      cfg.Scholar.Interactive,
		Challenge:        challenge,
		ChallengeTimeout: cfg.Scholar.ChallengeTimeout,
		Threshold:        cfg.SimilarityThreshold,
		Log:              log.With().Str("provider", types.ProviderScholar).Logger(),
	}
}
