// File: cmd/visit.go
package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
)

func newVisitCmd() *cobra.Command {
	var asJSON bool

	visitCmd := &cobra.Command{
		Use:   "visit [label...]",
		Short: "Visit targets once, in order, and print the results",
		Long: `Runs one visit per target without the scheduler. With no labels every
configured target is visited. Results are reported and retained exactly as
scheduled visits are.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			targets, err := selectTargets(cfg, args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			components, err := newComponents(ctx, cfg, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			results := make([]schemas.SessionResult, 0, len(targets))
			for _, t := range targets {
				if ctx.Err() != nil {
					break
				}
				results = append(results, components.Runner.Run(ctx, t))
			}
			return printResults(cmd.OutOrStdout(), results, asJSON)
		},
	}
	visitCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return visitCmd
}

// selectTargets keeps configuration order. Unknown labels are an error.
func selectTargets(cfg *config.Config, labels []string) ([]schemas.Target, error) {
	if err := cfg.RequireTargets(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return cfg.Targets(), nil
	}

	wanted := make(map[string]bool, len(labels))
	for _, l := range labels {
		wanted[l] = true
	}
	var out []schemas.Target
	for _, t := range cfg.Targets() {
		if wanted[t.Label] {
			out = append(out, t)
			delete(wanted, t.Label)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for _, l := range labels {
			if wanted[l] {
				missing = append(missing, l)
			}
		}
		return nil, fmt.Errorf("unknown target label(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func printResults(w io.Writer, results []schemas.SessionResult, asJSON bool) error {
	if asJSON {
		enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tSTATUS\tREASON\tPROFILE\tDURATION\tARTIFACT")
	for _, r := range results {
		artifact := "-"
		if r.Artifact != nil {
			artifact = r.Artifact.FileName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Target.Label, r.Status, orDash(r.FailureReason), orDash(r.Profile), r.Duration().Round(time.Millisecond), artifact)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
