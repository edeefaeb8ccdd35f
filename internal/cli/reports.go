package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clausecheck/internal/pipeline"
	"github.com/ppiankov/clausecheck/internal/store"
)

var (
	reportsLimit  int
	reportsFormat string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse stored scan reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent stored reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.store == nil {
			return errNoStore
		}

		list, err := a.store.ListReports(cmd.Context(), reportsLimit)
		if err != nil {
			return err
		}
		return writeReportList(cmd.OutOrStdout(), list)
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored report as Markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.store == nil {
			return errNoStore
		}

		report, err := a.store.Report(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderer := pipeline.NewRenderer(mdLang)
		if reportsFormat == "json" {
			return renderer.WriteJSON(cmd.OutOrStdout(), report)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), renderer.Markdown(report))
		return err
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd)

	reportsListCmd.Flags().IntVar(&reportsLimit, "limit", 20, "number of reports to list")
	reportsShowCmd.Flags().StringVar(&reportsFormat, "format", "md", "output format: md or json")
	reportsShowCmd.Flags().StringVar(&mdLang, "md-lang", "ru", "language of the Markdown report (ru, en, ky)")
}

func writeReportList(w io.Writer, list []store.ReportSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tVIOLATIONS\tSOURCE")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.Violations, orDash(r.Source))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
