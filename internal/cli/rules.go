package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/clausecheck/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and manage the rule catalog",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rule atoms",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cat, err := a.loadCatalog(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tSEVERITY\tPREDICATE\tLAW REF\tTITLE")
		for _, atom := range cat.Atoms() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				atom.Code, atom.Severity, atom.Predicate, atom.LawRef, atom.Title.Get("ru"))
		}
		return w.Flush()
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <catalog.yaml>",
	Short: "Check a rule catalog for malformed atoms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := rules.LoadCatalogFile(args[0])
		if err != nil {
			return err
		}
		if err := cat.Validate(); err != nil {
			for _, e := range unwrapJoined(err) {
				fmt.Fprintf(os.Stderr, "✗ %v\n", e)
			}
			return fmt.Errorf("%s: catalog has malformed atoms", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d rule atoms OK\n", args[0], cat.Len())
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <catalog.yaml>",
	Short: "Validate a catalog and store it for later scans",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := rules.LoadCatalogFile(args[0])
		if err != nil {
			return err
		}
		if err := cat.Validate(); err != nil {
			return fmt.Errorf("refusing to import: %w", err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.store == nil {
			return errNoStore
		}
		if err := a.store.UpsertRules(cmd.Context(), cat.Atoms()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d rule atoms\n", cat.Len())
		return nil
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the active catalog as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cat, err := a.loadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cat); err != nil {
			return fmt.Errorf("encode catalog: %w", err)
		}
		return enc.Close()
	},
}

var errNoStore = errors.New("no store configured (set --store or store.path)")

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesValidateCmd, rulesImportCmd, rulesExportCmd)
}

// unwrapJoined splits an errors.Join result back into its parts
func unwrapJoined(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
