package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/clausecheck/internal/corpus"
	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/model"
)

var (
	kbLawID       string
	kbChunkTokens int
	kbReplace     bool
	kbTopK        int
	kbLawHint     string
	kbSemantic    bool
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the legal knowledge base",
}

var kbIngestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Split a law text into citable passages and store them",
	Long: `Ingest extracts a law (text or HTML), splits it on "Пункт", "Статья"
and numbered headers, chunks long blocks and stores the passages.

Example:
  clausecheck kb ingest nbkr-regulation.html --law-id nbkr_2024_12`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.store == nil {
			return errNoStore
		}

		docs, err := corpus.IngestFile(ctx, args[0], kbLawID, extract.NewTextExtractor(), kbChunkTokens)
		if err != nil {
			return err
		}
		if kbReplace {
			n, err := a.store.DeleteDocs(ctx, kbLawID)
			if err != nil {
				return err
			}
			a.logger.Info("replaced law passages", zap.String("law_id", kbLawID), zap.Int64("deleted", n))
		}
		if err := a.store.UpsertDocs(ctx, docs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Ingested %d passages into %s\n", len(docs), kbLawID)
		return nil
	},
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var cites []model.Citation
		if kbSemantic {
			cites, err = a.index.Nearest(ctx, args[0], kbTopK)
		} else {
			cites, err = a.index.Search(ctx, args[0], kbTopK, kbLawHint)
		}
		if err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Retrieval mode: %s\n\n", a.index.Mode(ctx))
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tLAW\tREF\tSNIPPET")
		for _, c := range cites {
			fmt.Fprintf(w, "%.4f\t%s\t%s\t%s\n", c.Score, c.LawID, c.Ref, oneLine(c.Snippet, 80))
		}
		return w.Flush()
	},
}

var kbSnapshotCmd = &cobra.Command{
	Use:   "snapshot <path>",
	Short: "Embed the knowledge base and save an index snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.index.SaveSnapshot(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s snapshot of %d passages: %s\n",
			a.index.Mode(ctx), len(a.index.Docs()), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbIngestCmd, kbSearchCmd, kbSnapshotCmd)

	kbIngestCmd.Flags().StringVar(&kbLawID, "law-id", corpus.DefaultLawID, "law identifier for the ingested passages")
	kbIngestCmd.Flags().IntVar(&kbChunkTokens, "chunk-tokens", 400, "approximate tokens per passage for long blocks")
	kbIngestCmd.Flags().BoolVar(&kbReplace, "replace", false, "delete existing passages of the law first")

	kbSearchCmd.Flags().IntVar(&kbTopK, "top-k", 5, "number of results")
	kbSearchCmd.Flags().StringVar(&kbLawHint, "law-hint", "", "boost passages whose law id or ref contains this")
	kbSearchCmd.Flags().BoolVar(&kbSemantic, "semantic", false, "rank by embedding similarity instead of keyword hits")
}

// oneLine collapses whitespace and truncates to n runes
func oneLine(s string, n int) string {
	out := make([]rune, 0, n)
	space := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == ' ' || r == '\r' {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, r)
		if len(out) >= n {
			return string(out) + "…"
		}
	}
	return string(out)
}
