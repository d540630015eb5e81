// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibresolve/internal/cache"
	"github.com/pdiddy/bibresolve/internal/metrics"
	"github.com/pdiddy/bibresolve/internal/pipeline"
	"github.com/pdiddy/bibresolve/internal/provider"
	"github.com/pdiddy/bibresolve/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <input.md|->",
	Short: "Resolve the reference list of a document into a citation file",
	Long: `Resolve reads a text or Markdown document (or stdin with -), finds its
References section and resolves every entry. Results are cached, so an
interrupted run resumes cheaply: re-run with --start-from set to the index
printed at the end, or with --resume to read it from the run report.

The citation file defaults to the input name with a .bib (or .yaml)
extension; -o - writes it to stdout. A run report is written next to it as
<output>.report.yaml.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringP("output", "o", "", "citation file path, - for stdout")
	f.Bool("resume", false, "start from the next index recorded in the previous run report")
	f.StringSlice("providers", nil, "provider order, e.g. openalex,crossref,semantic_scholar,arxiv,scholar")
	f.Bool("scholar", false, "enable the scholarly search provider")
	f.Bool("fast", false, "use the short delay profile for scholarly search")
	f.Bool("interactive", false, "pause on anti-automation challenges until solved in a browser")
	f.Bool("browser", false, "fetch scholarly search pages through headless Chrome")
	f.Int("max", 0, "maximum number of entries to process (0 for all)")
	f.Int("start-from", 0, "index of the first entry to process")
	f.Int("workers", 0, "entries resolved concurrently")
	f.Bool("force-refresh", false, "ignore cached results")
	f.Bool("enrich", true, "look up missing DOIs and merge registry metadata")
	f.Bool("clean", true, "trim fields and drop empty values")
	f.Float64("threshold", 0, "minimum title similarity (0-1) for search matches")
	f.String("format", "", "output format: bibtex or csl-yaml")
	f.String("unresolved", "", "unresolved entries: omit or placeholder")
	f.String("per-entry-dir", "", "also write one file per resolved entry into this directory")
	f.Bool("include-abstract", false, "include abstracts in the output")
	f.String("email", "", "contact email sent to APIs with a polite pool")
	f.String("metrics-file", "", "write Prometheus text-format metrics to this file")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	input := args[0]
	text, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = defaultOutput(input, cfg.Output.Format)
	}

	if resume, _ := cmd.Flags().GetBool("resume"); resume {
		prev, err := pipeline.ReadReport(pipeline.ReportPath(out))
		if err != nil {
			return fmt.Errorf("--resume: %w", err)
		}
		cfg.StartFrom = prev.NextIndex
		log.Info().Int("start_from", cfg.StartFrom).Str("previous_run", prev.RunID).Msg("resuming")
	}

	store, err := cache.Open(cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	set, err := provider.Build(cfg, nil, log)
	if err != nil {
		return err
	}
	defer set.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.Run(ctx, text, out, pipeline.Options{
		Config:   cfg,
		Chain:    set.Chain,
		Registry: set.Registry,
		Store:    store,
		Metrics:  metrics.New(),
		Log:      log,
		Progress: cmd.ErrOrStderr(),
		Stdout:   cmd.OutOrStdout(),
	})
	var runErr *pipeline.RunError
	if errors.As(err, &runErr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nstopped: %v\nresume with: bibresolve resolve %s --start-from %d\n",
			runErr.Err, input, runErr.NextIndex)
		return err
	}
	if err != nil {
		return err
	}

	if out != pipeline.StdoutPath {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d entries, report %s)\n",
			out, report.Written.Written+report.Written.Placeholders, pipeline.ReportPath(out))
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

// defaultOutput derives the citation file name from the input name.
func defaultOutput(input, format string) string {
	if input == "-" {
		return pipeline.StdoutPath
	}
	ext := ".bib"
	if format == types.FormatCSLYAML {
		ext = ".yaml"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}
