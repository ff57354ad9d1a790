package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codegrove/structgrep/pkg/cache"
	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/match"
	"github.com/codegrove/structgrep/pkg/observability"
	"github.com/codegrove/structgrep/pkg/rewrite"
)

// ErrDryRunAndWrite is returned when --write and --dry-run are both set.
var ErrDryRunAndWrite = errors.New("--write and --dry-run are mutually exclusive")

func rewriteCmd() *cobra.Command {
	var (
		language string
		rulePath string
		ruleText string
		root     string
		rev      string
		allFiles bool
		write    bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Apply a rule's fix to matching source files",
		Long: `Rewrite one or more source files using a rule's fix template.

Without --write, prints a unified diff for each file that would change.

Examples:
  structgrep rewrite --language go --rule-file rules/var-to-let.yaml --write main.go
  structgrep rewrite --language go --rule-file rules/var-to-let.yaml --all --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if write && dryRun {
				return ErrDryRunAndWrite
			}

			if write && rev != "" {
				return ErrWriteRequiresWorkingTree
			}

			return runRewrite(rewriteOptions{
				files:    args,
				language: language,
				rulePath: rulePath,
				ruleText: ruleText,
				root:     root,
				rev:      rev,
				allFiles: allFiles,
				write:    write,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "force language (default: detected per file)")
	cmd.Flags().StringVar(&rulePath, "rule-file", "", "path to a YAML rule document with a fix")
	cmd.Flags().StringVar(&ruleText, "rule", "", "a bare pattern string (carries no fix; ignored when --rule-file is set)")
	cmd.Flags().StringVar(&root, "root", ".", "root directory to search under --all, or the repository path under --rev")
	cmd.Flags().StringVar(&rev, "rev", "", "preview the fix against a git revision's tree (implies dry-run)")
	cmd.Flags().BoolVar(&allFiles, "all", false, "rewrite all source files under --root recursively")
	cmd.Flags().BoolVar(&write, "write", false, "write changes back to disk instead of printing a diff")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the diff without writing (default)")

	return cmd
}

// ErrWriteRequiresWorkingTree is returned when --write is combined with --rev,
// since a historical git tree has no working-directory path to write back to.
var ErrWriteRequiresWorkingTree = errors.New("--write cannot be used with --rev; omit --write to preview the diff")

type rewriteOptions struct {
	files    []string
	language string
	rulePath string
	ruleText string
	root     string
	rev      string
	allFiles bool
	write    bool
}

func runRewrite(opts rewriteOptions, writer io.Writer) error {
	start := time.Now()

	providers, err := initCLIObservability(observability.ModeCLI)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, rootSpan := providers.Tracer.Start(context.Background(), "structgrep.rewrite")
	defer rootSpan.End()

	defer func() { _ = providers.Shutdown(context.Background()) }()

	scanMetrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init scan metrics: %w", err)
	}

	ruleSource, err := loadRuleSource(opts.rulePath, opts.ruleText)
	if err != nil {
		return err
	}

	registry := lang.NewRegistry()
	blobCache := cache.NewLRUBlobCache(0)

	if err := observability.RegisterCacheMetrics(providers.Meter, blobCache, nil); err != nil {
		return fmt.Errorf("init cache metrics: %w", err)
	}

	files, err := collectSearchFiles(ctx, searchOptions{
		files:    opts.files,
		language: opts.language,
		root:     opts.root,
		rev:      opts.rev,
		allFiles: opts.allFiles,
	}, registry, blobCache, writer)
	if err != nil {
		return err
	}

	ruleCache := newRuleCache(registry, ruleSource)

	changed := 0
	var scannedBytes uint64

	for _, f := range files {
		scannedBytes += uint64(len(f.Content))

		rc, err := ruleCache.forLanguage(f.Language)
		if err != nil {
			return err
		}

		doc, err := match.Parse(f.Language, f.Content)
		if err != nil {
			return fmt.Errorf("parse %s: %w", f.Path, err)
		}

		edits, err := rc.Rewrite(doc)

		doc.Close()

		if err != nil {
			if errors.Is(err, match.ErrNoFixer) {
				return err
			}

			return fmt.Errorf("rewrite %s: %w", f.Path, err)
		}

		if len(edits) == 0 {
			continue
		}

		changed++

		rewritten := rewrite.Apply(string(f.Content), edits)

		if opts.write {
			if err := os.WriteFile(f.Path, []byte(rewritten), 0o644); err != nil { //nolint:gosec,mnd // source file, preserve default perms
				return fmt.Errorf("write %s: %w", f.Path, err)
			}

			color.New(color.FgGreen).Fprintf(writer, "rewrote %s\n", f.Path)

			continue
		}

		fmt.Fprintf(writer, "--- %s\n", f.Path)

		greenFn := color.New(color.FgGreen).SprintFunc()
		redFn := color.New(color.FgRed).SprintFunc()

		insColor := func(s string) string { return greenFn(s) }
		delColor := func(s string) string { return redFn(s) }

		if err := rewrite.WriteDiff(writer, string(f.Content), rewritten, insColor, delColor); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)

	blobStats := blobCache.Stats()
	scanMetrics.RecordRun(ctx, observability.ScanStats{
		FilesScanned:    int64(len(files)),
		Matches:         changed,
		FileDurations:   []time.Duration{elapsed},
		BlobCacheHits:   blobStats.Hits,
		BlobCacheMisses: blobStats.Misses,
	})

	color.New(color.FgGreen).Fprintf(writer, "\n%d file(s) changed (%s scanned in %s)\n",
		changed, humanize.Bytes(scannedBytes), elapsed.Round(time.Millisecond))

	return nil
}
