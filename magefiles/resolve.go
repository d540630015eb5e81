//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Resolve builds the CLI and resolves the references of $INPUT, writing
// $OUTPUT when set. Extra flags can be passed in $BIBRESOLVE_FLAGS.
func Resolve() error {
	mg.Deps(Build)

	input := os.Getenv("INPUT")
	if input == "" {
		return fmt.Errorf("set INPUT to the document to resolve")
	}
	args := []string{"resolve", input}
	if out := os.Getenv("OUTPUT"); out != "" {
		args = append(args, "--output", out)
	}
	if extra := os.Getenv("BIBRESOLVE_FLAGS"); extra != "" {
		args = append(args, strings.Fields(extra)...)
	}
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// CacheStats prints statistics about the resolution cache.
func CacheStats() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "cache", "stats")
}
