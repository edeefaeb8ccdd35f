package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/pipeline"
)

var (
	outJSON     string
	outMD       string
	mdLang      string
	scanGoal    string
	contentType string
	timeout     time.Duration
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <file|->",
	Short: "Check one contract and write a compliance report",
	Long: `Scan runs one contract through the compliance pipeline:
- Extract text (plain text or HTML; PDF and images need OCR first)
- Evaluate every rule atom of the catalog
- Cite the supporting law passages
- Explain each finding and translate it into the target languages

Example:
  clausecheck scan contract.txt
  clausecheck scan contract.html --json report.json --md report.md --md-lang en
  cat contract.txt | clausecheck scan - --translate-provider ollama`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path (empty to skip)")
	scanCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	scanCmd.Flags().StringVar(&mdLang, "md-lang", "ru", "language of the Markdown report (ru, en, ky)")
	scanCmd.Flags().StringVar(&scanGoal, "goal", "", "goal recorded in the report")
	scanCmd.Flags().StringVar(&contentType, "content-type", "", "content type (default: guessed from the file extension)")
	scanCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall scan timeout")

	addPipelineFlags(scanCmd)
}

// addPipelineFlags binds the flags shared by scan and batch to viper keys
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("rules", "", "rule catalog YAML (default: store, then built-in NBKR atoms)")
	cmd.Flags().String("corpus", "", "knowledge corpus file (default: store, then built-in laws)")
	cmd.Flags().Bool("lexical", false, "force lexical retrieval")
	cmd.Flags().Int("top-k", 0, "citations per finding")
	cmd.Flags().String("translate-provider", "", "translation provider (openai, ollama)")
	cmd.Flags().String("translate-model", "", "translation model")
	cmd.Flags().StringSlice("lang", nil, "translation targets (default en,ky)")

	bind := map[string]string{
		"rules.catalog_path":      "rules",
		"retrieval.corpus_path":   "corpus",
		"retrieval.force_lexical": "lexical",
		"retrieval.top_k":         "top-k",
		"translate.provider":      "translate-provider",
		"translate.model":         "translate-model",
		"translate.targets":       "lang",
	}
	// binding happens at run time so scan and batch do not overwrite each other
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for key, flag := range bind {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		return nil
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
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

	in := pipeline.Input{Goal: scanGoal, Source: args[0], ContentType: contentType}
	if args[0] == "-" {
		in.Data, err = io.ReadAll(cmd.InOrStdin())
		in.Source = "stdin"
	} else {
		in.Data, err = os.ReadFile(args[0])
		if in.ContentType == "" {
			in.ContentType = extract.ContentTypeForPath(args[0])
		}
	}
	if err != nil {
		return fmt.Errorf("read contract: %w", err)
	}

	report := p.Run(ctx, in)

	renderer := pipeline.NewRenderer(mdLang)
	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}
	renderer.RenderSummary(cmd.OutOrStdout(), report)

	if report.Failed() {
		return fmt.Errorf("scan failed: %s", report.Error)
	}
	return nil
}
