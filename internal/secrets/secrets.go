// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Recognized keys: contact-email, semantic-scholar-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// DefaultDir is the secrets directory consulted by the CLI.
const DefaultDir = ".secrets/"

// Secret file names.
const (
	KeyContactEmail    = "contact-email"
	KeySemanticScholar = "semantic-scholar-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings but do not abort.
func Load(dir string, log zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills credentials in cfg that configuration left empty. Values set
// through the config file, environment or flags win over secret files.
func Apply(cfg *types.Config, s map[string]string) {
	if cfg.ContactEmail == "" {
		cfg.ContactEmail = s[KeyContactEmail]
	}
	if cfg.Providers.SemanticScholar.APIKey == "" {
		cfg.Providers.SemanticScholar.APIKey = s[KeySemanticScholar]
	}
}
