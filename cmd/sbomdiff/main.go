// Command sbomdiff compares two local SBOM files and reports what
// changed between them, with flag-parsing, signal-handling, and
// logger setup around a two-file semantic diff.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/diff"
	"github.com/sbomdiff/sbomdiff/internal/match"
	"github.com/sbomdiff/sbomdiff/internal/parser"
	"github.com/sbomdiff/sbomdiff/internal/version"
)

// Exit codes let an enclosing tool branch on outcome without parsing
// the JSON result: the core returns structured results, the CLI maps
// them to a process status.
const (
	exitNoChange      = 0
	exitChangePresent = 1
	exitNewVuln       = 2
	exitRuntimeError  = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		verbose      = flag.Bool("v", false, "Verbose output (debug mode)")
		showVersion  = flag.Bool("version", false, "Show version and exit")
		preset       = flag.String("preset", "balanced", "Matching preset: strict, balanced, or permissive")
		graphDiff    = flag.Bool("graph-diff", false, "Compute dependency-graph reachability and SCC structure deltas")
		explain      = flag.Bool("explain", false, "Attach a match explanation to every paired component")
		failOnChange = flag.Bool("fail-on-change", false, "Exit 1 if any component change is present")
		failOnVuln   = flag.Bool("fail-on-vuln", false, "Exit 2 if any newly introduced vulnerability is present")
		timeout      = flag.Duration("timeout", 5*time.Minute, "Timeout for the diff operation")
		shards       = flag.Int("shards", 0, "Residual-match shard count; 0 lets the engine decide")
	)

	flag.CommandLine.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Fprintf(os.Stdout, "sbomdiff version %s\n", version.Get())
		return exitNoChange
	}

	logger := setupLogger(*verbose)

	args := flag.Args()
	if len(args) != 2 {
		logger.Error("exactly two SBOM files are required", "got", len(args))
		printUsage()
		return exitRuntimeError
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, cancelling operation", "signal", sig)
		cancel()
	}()

	oldDoc, err := parseFile(ctx, args[0], logger)
	if err != nil {
		logger.Error("failed to parse file", "file", args[0], "error", err)
		return exitRuntimeError
	}
	newDoc, err := parseFile(ctx, args[1], logger)
	if err != nil {
		logger.Error("failed to parse file", "file", args[1], "error", err)
		return exitRuntimeError
	}

	result, err := diff.Run(ctx, oldDoc, newDoc, diff.Config{
		Preset:         match.Preset(*preset),
		GraphDiff:      *graphDiff,
		ExplainMatches: *explain,
		Shards:         *shards,
	}, logger)
	if err != nil {
		logger.Error("diff failed", "error", err)
		return exitRuntimeError
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(result); encodeErr != nil {
		logger.Error("failed to write output", "error", encodeErr)
		return exitRuntimeError
	}

	if *failOnVuln && result.Summary.VulnsIntroduced > 0 {
		return exitNewVuln
	}
	if *failOnChange && result.Summary.Total > 0 {
		return exitChangePresent
	}
	return exitNoChange
}

// printUsage prints the usage message.
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <old-sbom-file> <new-sbom-file>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Compare two SBOM files and report the semantic diff between them.\n\n")
	fmt.Fprintf(os.Stderr, "The diff result is written to stdout as JSON.\n\n")
	fmt.Fprintf(os.Stderr, "This CLI tool is designed for local, one-off comparisons.\n")
	fmt.Fprintf(os.Stderr, "For a long-running HTTP service, see 'sbomdiffd' daemon.\n\n")
	fmt.Fprintf(os.Stderr, "Arguments:\n")
	fmt.Fprintf(os.Stderr, "  old-sbom-file        Path to the baseline SBOM file\n")
	fmt.Fprintf(os.Stderr, "  new-sbom-file        Path to the comparison SBOM file\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

// setupLogger sets up the logger based on the verbose flag.
func setupLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelError
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// parseFile reads and parses a single SBOM file into a NormalizedSbom.
func parseFile(ctx context.Context, filename string, logger *slog.Logger) (*canonical.NormalizedSbom, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	dialect, _, br, err := parser.Detect(parser.Source{Reader: bytes.NewReader(data), NameHint: filename})
	if err != nil {
		return nil, fmt.Errorf("detect format: %w", err)
	}
	logger.DebugContext(ctx, "detected SBOM dialect", "file", filename, "dialect", dialect)

	return parser.ParseDialect(ctx, dialect, br, parser.Source{
		SizeHint: int64(len(data)),
		NameHint: filename,
	}, parser.Options{})
}
