package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/heather/internal/app"
	"github.com/Ramsey-B/heather/pkg/authority"
)

func newBindCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bind [authority-key...]",
		Short: "Link unlinked author values to identities, all identities when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBatchLock(func() error {
				return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
					summary, err := a.Runner.Run(cmd.Context(), args)
					if err != nil {
						return err
					}
					return reportSummary(cmd.OutOrStdout(), summary)
				})
			})
		},
	}
}

func newClaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <authority-key>",
		Short: "Link an identity to the records its owner submitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBatchLock(func() error {
				return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
					summary, err := a.Runner.Claim(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return reportSummary(cmd.OutOrStdout(), summary)
				})
			})
		},
	}
}

// reportSummary prints the run and fails the command when any unit failed.
func reportSummary(out io.Writer, summary authority.RunSummary) error {
	counts := [][]string{
		{"identities", strconv.Itoa(summary.Identities)},
		{"identities failed", strconv.Itoa(summary.IdentitiesFailed)},
		{"identities skipped", strconv.Itoa(summary.IdentitiesSkipped)},
		{"variants", strconv.Itoa(summary.Variants)},
		{"candidates", strconv.Itoa(summary.Candidates)},
		{"records written", strconv.Itoa(summary.RecordsWritten)},
		{"records unchanged", strconv.Itoa(summary.RecordsUnchanged)},
		{"records failed", strconv.Itoa(summary.RecordsFailed)},
		{"values bound", strconv.Itoa(summary.ValuesBound)},
		{"match count lookups", strconv.Itoa(summary.MatchCountLookups)},
		{"duration", summary.FinishedAt.Sub(summary.StartedAt).String()},
	}
	fmt.Fprintln(out, renderTable([]string{string(summary.Kind), "count"}, counts, []columnAlignment{alignLeft, alignRight}))

	if len(summary.Failures) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(summary.Failures))
	for _, f := range summary.Failures {
		rows = append(rows, []string{f.AuthorityKey, f.ItemID, f.Error})
	}
	fmt.Fprintln(out, renderTable([]string{"authority key", "item", "error"}, rows, nil))
	return fmt.Errorf("%s run finished with %d failures", summary.Kind, len(summary.Failures))
}
