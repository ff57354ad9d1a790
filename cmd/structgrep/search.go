package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/codegrove/structgrep/internal/walk"
	"github.com/codegrove/structgrep/pkg/cache"
	"github.com/codegrove/structgrep/pkg/gitlib"
	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/match"
	"github.com/codegrove/structgrep/pkg/observability"
)

// ErrRuleRequired is returned when neither --rule nor --rule-file is set.
var ErrRuleRequired = errors.New("one of --rule or --rule-file must be set")

func searchCmd() *cobra.Command {
	var (
		language   string
		rulePath   string
		ruleText   string
		root       string
		rev        string
		allFiles   bool
		workers    int
		showTables bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search source files for a structural pattern",
		Long: `Search one or more source files for matches of a structgrep rule.

Examples:
  structgrep search --language go --rule-file rules/no-fmt-println.yaml main.go
  structgrep search --language go --rule 'fmt.Println($A)' --all
  structgrep search --language go --rule 'fmt.Println($A)' --all --rev HEAD~5
  structgrep search --language go --rule '$A == nil' main.go`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(searchOptions{
				files:      args,
				language:   language,
				rulePath:   rulePath,
				ruleText:   ruleText,
				root:       root,
				rev:        rev,
				allFiles:   allFiles,
				workers:    workers,
				showTables: showTables,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "force language (default: detected per file)")
	cmd.Flags().StringVar(&rulePath, "rule-file", "", "path to a YAML rule document")
	cmd.Flags().StringVar(&ruleText, "rule", "", "a bare pattern string")
	cmd.Flags().StringVar(&root, "root", ".", "root directory to search under --all, or the repository path under --rev")
	cmd.Flags().StringVar(&rev, "rev", "", "search a git revision's tree instead of the working directory")
	cmd.Flags().BoolVar(&allFiles, "all", false, "search all source files under --root recursively")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of parallel workers (default: number of CPUs)")
	cmd.Flags().BoolVar(&showTables, "table", true, "render results as a table")

	return cmd
}

type searchOptions struct {
	files      []string
	language   string
	rulePath   string
	ruleText   string
	root       string
	rev        string
	allFiles   bool
	workers    int
	showTables bool
}

type foundMatch struct {
	path string
	m    match.Match
}

func runSearch(opts searchOptions, writer io.Writer) error {
	start := time.Now()

	providers, err := initCLIObservability(observability.ModeCLI)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, rootSpan := providers.Tracer.Start(context.Background(), "structgrep.scan")
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

	files, err := collectSearchFiles(ctx, opts, registry, blobCache, writer)
	if err != nil {
		return err
	}

	ruleCache := newRuleCache(registry, ruleSource)

	results, err := searchFilesParallel(files, ruleCache, opts.workers)
	if err != nil {
		return err
	}

	if opts.showTables {
		renderMatchTable(results, writer)
	} else {
		for _, r := range results {
			fmt.Fprintf(writer, "%s:%d:%d: %s\n", r.path, r.m.Node.StartPos().Row+1, r.m.Node.StartPos().Column+1, r.m.Node.Text())
		}
	}

	elapsed := time.Since(start)

	blobStats := blobCache.Stats()
	scanMetrics.RecordRun(ctx, observability.ScanStats{
		FilesScanned:    int64(len(files)),
		Matches:         len(results),
		FileDurations:   []time.Duration{elapsed},
		BlobCacheHits:   blobStats.Hits,
		BlobCacheMisses: blobStats.Misses,
	})

	color.New(color.FgGreen).Fprintf(writer, "\n%d match(es) in %d file(s) (%s scanned in %s)\n",
		len(results), len(files), humanize.Bytes(totalBytes(files)), elapsed.Round(time.Millisecond))

	return nil
}

func totalBytes(files []walk.File) uint64 {
	var n uint64
	for _, f := range files {
		n += uint64(len(f.Content))
	}

	return n
}

func loadRuleSource(rulePath, ruleText string) ([]byte, error) {
	if rulePath != "" {
		data, err := os.ReadFile(rulePath)
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", rulePath, err)
		}

		return data, nil
	}

	if ruleText != "" {
		return []byte("rule:\n  pattern: " + quoteYAMLScalar(ruleText) + "\n"), nil
	}

	return nil, ErrRuleRequired
}

// quoteYAMLScalar wraps s in double quotes, escaping any embedded quotes, so
// a bare pattern string with arbitrary punctuation is a safe YAML scalar.
func quoteYAMLScalar(s string) string {
	escaped := make([]byte, 0, len(s)+2)
	escaped = append(escaped, '"')

	for i := range len(s) {
		c := s[i]
		if c == '"' || c == '\\' {
			escaped = append(escaped, '\\')
		}

		escaped = append(escaped, c)
	}

	escaped = append(escaped, '"')

	return string(escaped)
}

func collectSearchFiles(ctx context.Context, opts searchOptions, registry *lang.Registry, blobCache *cache.LRUBlobCache, writer io.Writer) ([]walk.File, error) {
	if opts.rev != "" {
		repo, err := gitlib.LoadRepository(opts.root)
		if err != nil {
			return nil, fmt.Errorf("open repository %s: %w", opts.root, err)
		}
		defer repo.Free()

		printRevisionProvenance(writer, repo, opts.rev)

		return walk.Tree(ctx, repo, opts.rev, registry, opts.language, blobCache)
	}

	if opts.allFiles {
		return walk.Dir(opts.root, registry, opts.language)
	}

	if len(opts.files) == 0 {
		return nil, ErrNoSourceFiles
	}

	files := make([]walk.File, 0, len(opts.files))

	for _, p := range opts.files {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}

		langName := opts.language
		if langName == "" {
			langName = lang.GuessFromExtension(filepath.Ext(p))
		}

		l, err := registry.Get(langName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		files = append(files, walk.File{Path: p, Language: l, Content: content})
	}

	return files, nil
}

// ErrNoSourceFiles indicates neither explicit files nor --all produced any input.
var ErrNoSourceFiles = errors.New("no source files given: pass files, or use --all")

// printRevisionProvenance prints who authored the commit a --rev scan ran
// against. A rev that resolves to a tree with no owning commit (e.g. a bare
// tree object) has nothing to report and is silently skipped.
func printRevisionProvenance(writer io.Writer, repo *gitlib.Repository, rev string) {
	commit, err := repo.ResolveCommit(rev)
	if err != nil {
		return
	}
	defer commit.Free()

	author, committer := commit.Author(), commit.Committer()

	line := fmt.Sprintf("scanning %s (%s) authored by %s", rev, commit.Hash().String()[:shortHashLen], author.String())
	if committer.Email != author.Email || !committer.When.Equal(author.When) {
		line += fmt.Sprintf(", committed by %s", committer.String())
	}

	color.New(color.FgCyan).Fprintln(writer, line)
}

const shortHashLen = 12

// ruleCache compiles one *match.RuleCore per language on first use, since a
// rule document's constraints/utils/fix are language-independent syntax but
// its pattern compiles against a specific grammar.
type ruleCache struct {
	mu     sync.Mutex
	source []byte
	cores  map[*lang.Language]*match.RuleCore
}

func newRuleCache(_ *lang.Registry, source []byte) *ruleCache {
	return &ruleCache{source: source, cores: make(map[*lang.Language]*match.RuleCore)}
}

func (c *ruleCache) forLanguage(l *lang.Language) (*match.RuleCore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rc, ok := c.cores[l]; ok {
		return rc, nil
	}

	rc, err := match.Compile(l, c.source)
	if err != nil {
		return nil, fmt.Errorf("compile rule for %s: %w", l.Name(), err)
	}

	c.cores[l] = rc

	return rc, nil
}

// searchFilesParallel runs FindAll across files with a worker pool, mirroring
// the structure of a tree-sitter parse fan-out: each worker borrows the
// shared, read-only compiled RuleCore and owns its own Document per file.
func searchFilesParallel(files []walk.File, cache *ruleCache, workers int) ([]foundMatch, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	if len(files) == 0 {
		return nil, nil
	}

	fileCh := make(chan walk.File, workers)

	var (
		mu       sync.Mutex
		results  []foundMatch
		firstErr atomic.Value
		wg       sync.WaitGroup
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for f := range fileCh {
				if firstErr.Load() != nil {
					continue
				}

				rc, err := cache.forLanguage(f.Language)
				if err != nil {
					firstErr.CompareAndSwap(nil, err)

					continue
				}

				doc, err := match.Parse(f.Language, f.Content)
				if err != nil {
					firstErr.CompareAndSwap(nil, fmt.Errorf("parse %s: %w", f.Path, err))

					continue
				}

				matches := rc.FindAll(doc)

				mu.Lock()
				for _, m := range matches {
					results = append(results, foundMatch{path: f.Path, m: m})
				}
				mu.Unlock()

				doc.Close()
			}
		}()
	}

	for _, f := range files {
		fileCh <- f
	}

	close(fileCh)
	wg.Wait()

	if errVal := firstErr.Load(); errVal != nil {
		if err, ok := errVal.(error); ok {
			return nil, err
		}
	}

	return results, nil
}

func renderMatchTable(results []foundMatch, writer io.Writer) {
	if len(results) == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(writer)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"file", "line", "col", "kind", "text"})

	for _, r := range results {
		pos := r.m.Node.StartPos()
		tbl.AppendRow(table.Row{r.path, pos.Row + 1, pos.Column + 1, r.m.Node.Kind(), truncate(r.m.Node.Text(), maxTableTextWidth)})
	}

	tbl.Render()
}

const maxTableTextWidth = 80

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
