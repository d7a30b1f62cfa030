// Package fileprocessor handles scenario file selection and processing.
package fileprocessor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/retroenv/decompverify/internal/scenario"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

var errNoFiles = errors.New("no scenario files found")

// Summary contains the results of all processed scenario files.
type Summary struct {
	Files   int
	Results []scenario.Result
}

// Passed returns the number of passed scenarios.
func (s Summary) Passed() int {
	passed := 0
	for _, result := range s.Results {
		if result.Passed() {
			passed++
		}
	}
	return passed
}

// Failed returns the number of failed scenarios.
func (s Summary) Failed() int {
	return len(s.Results) - s.Passed()
}

// ProcessFile runs all scenarios of a scenario file.
func ProcessFile(ctx context.Context, logger *log.Logger, runner *scenario.Runner,
	resolver scenario.Resolver, path string) ([]scenario.Result, error) {

	scenarios, err := scenario.LoadFile(path, resolver)
	if err != nil {
		return nil, fmt.Errorf("loading scenarios: %w", err)
	}
	logger.Debug("Loaded scenario file", log.String("file", path), log.Int("scenarios", len(scenarios)))

	results, err := runner.RunAll(ctx, scenarios)
	if err != nil {
		return results, fmt.Errorf("running scenarios of '%s': %w", path, err)
	}
	return results, nil
}

// ProcessFiles runs the scenarios of all files in order. It stops at the
// first file that can not be loaded or when the context is canceled.
func ProcessFiles(ctx context.Context, logger *log.Logger, runner *scenario.Runner,
	resolver scenario.Resolver, files []string, report func(file string, result scenario.Result)) (Summary, error) {

	var summary Summary
	for _, file := range files {
		results, err := ProcessFile(ctx, logger, runner, resolver, file)
		for _, result := range results {
			report(file, result)
		}
		summary.Results = append(summary.Results, results...)
		if err != nil {
			return summary, err
		}
		summary.Files++
	}
	return summary, nil
}

// GetFilesToProcess returns the sorted list of files to process. Arguments
// can be file names or glob patterns, every file is returned once.
func GetFilesToProcess(args []string) ([]string, error) {
	seen := set.New[string]()
	var files []string

	for _, arg := range args {
		matches := []string{arg}
		if strings.ContainsAny(arg, "*?[") {
			var err error
			matches, err = filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("globbing pattern '%s': %w", arg, err)
			}
		}

		for _, match := range matches {
			if seen.Contains(match) {
				continue
			}
			seen.Add(match)
			files = append(files, match)
		}
	}

	if len(files) == 0 {
		return nil, errNoFiles
	}
	sort.Strings(files)
	return files, nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, quiet bool, version, commit, date string) {
	if quiet {
		return
	}

	logger.Info("decompverify", log.String("version", VersionString(version, commit)))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}

// VersionString returns the version with the abbreviated commit hash.
func VersionString(version, commit string) string {
	if commit == "" {
		return version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", version, commit)
}
