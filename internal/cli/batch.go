package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clausecheck/internal/pipeline"
	"github.com/ppiankov/clausecheck/internal/worker"
)

var (
	outputDir    string
	listFile     bool
	batchTimeout time.Duration
	concurrency  int
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|list-file>",
	Short: "Check every contract in a folder in parallel",
	Long: `Batch scans a folder of contracts (.txt, .html, .htm, .md) with a
worker pool and writes one JSON and one Markdown report per contract.

Example:
  clausecheck batch ./contracts
  clausecheck batch ./contracts --concurrency 8 --output-dir ./reports
  clausecheck batch contracts.txt --list`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent scans (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./clausecheck-reports", "output directory for reports")
	batchCmd.Flags().BoolVar(&listFile, "list", false, "argument is a file listing contract paths, one per line")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")

	addPipelineFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	workers := concurrency
	if workers <= 0 {
		workers = a.cfg.Concurrency.Workers
	}

	var paths []string
	if listFile {
		paths, err = worker.ReadPathsFromFile(args[0])
	} else {
		paths, err = worker.CollectFiles(args[0], worker.DocumentExtensions)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  clausecheck batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s (%d contracts)\n", args[0], len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Retrieval:    %s\n", a.index.Warmup(ctx))
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	results := worker.NewBatchProcessor(p, workers).ProcessFiles(ctx, paths)
	renderer := pipeline.NewRenderer("")

	successCount, failureCount := 0, 0
	used := make(map[string]int)
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		slug := uniqueSlug(used, sanitizeFilename(result.Path))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}

		if result.Report.Failed() {
			failureCount++
		} else {
			successCount++
		}
		renderer.RenderSummary(os.Stderr, result.Report)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d contracts\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", " ", "-",
)

// sanitizeFilename turns a contract path into a report file stem
func sanitizeFilename(path string) string {
	s := filepath.Base(path)
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = filenameReplacer.Replace(s)
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	if s == "" || s == "." {
		s = "report"
	}
	return s
}

// uniqueSlug suffixes repeated stems (a/contract.txt, b/contract.txt)
func uniqueSlug(used map[string]int, slug string) string {
	n := used[slug]
	used[slug] = n + 1
	if n == 0 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, n+1)
}
