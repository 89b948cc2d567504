package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/heather/internal/app"
	"github.com/Ramsey-B/heather/pkg/models"
)

func newReviewCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newGenerateCommand(ctx),
		newMatchesCommand(ctx),
		newAcceptCommand(ctx),
		newRejectCommand(ctx),
		newUnlinkCommand(ctx),
		newVariantsCommand(ctx),
		newLookupCommand(ctx),
	}
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <authority-key>",
		Short: "Rebuild an identity's potential matches from the search index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
				matches, err := a.Review.GeneratePotentialMatches(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printMatches(cmd.OutOrStdout(), matches)
				return nil
			})
		},
	}
}

func newMatchesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "matches <authority-key>",
		Short: "List an identity's potential matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
				matches, err := a.Review.GetPotentialMatches(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printMatches(cmd.OutOrStdout(), matches)
				return nil
			})
		},
	}
}

func newAcceptCommand(ctx *commandContext) *cobra.Command {
	var confidenceFlag string

	cmd := &cobra.Command{
		Use:   "accept <authority-key> <item-id>",
		Short: "Accept a potential match",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			confidence, err := models.ParseConfidence(confidenceFlag)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
				if err := a.Review.Accept(cmd.Context(), args[1], args[0], confidence); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted item %s for %s at %s\n", args[1], args[0], confidence)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&confidenceFlag, "confidence", models.ConfidenceAccepted.String(), "Confidence to bind the item's values at")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <authority-key> <item-id...>",
		Short: "Reject potential matches so they are never proposed again",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
				if err := a.Review.Reject(cmd.Context(), args[1:], args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected %d items for %s\n", len(args)-1, args[0])
				return nil
			})
		},
	}
}

func newUnlinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <authority-key> <item-id>",
		Short: "Remove an identity's link from a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
				if err := a.Review.Unlink(cmd.Context(), args[1], args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unlinked item %s from %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func newVariantsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "variants <authority-key>",
		Short: "Show the name variants searched for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(a *app.App) error {
				variants, err := a.Review.Variants(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows := ectolinq.Map(variants, func(v models.NameVariant) []string {
					excluded := make([]string, 0, len(v.ExcludedItemIDs))
					for id := range v.ExcludedItemIDs {
						excluded = append(excluded, id)
					}
					sort.Strings(excluded)
					return []string{v.Text, strings.Join(excluded, ", ")}
				})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"variant", "excluded items"}, rows, nil))
				return nil
			})
		},
	}
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "lookup <text>",
		Short: "Search the index for records by author text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), false, func(a *app.App) error {
				result := a.Retriever.Lookup(cmd.Context(), strings.Join(args, " "), scope)
				rows := ectolinq.Map(result.IDs, func(id string) []string { return []string{id} })
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"item"}, rows, nil))
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(result.IDs), result.Total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Restrict the search to a collection or community")
	return cmd
}

func printMatches(out io.Writer, matches []models.PotentialMatch) {
	rows := ectolinq.Map(matches, func(m models.PotentialMatch) []string {
		return []string{m.ItemID, strconv.FormatBool(m.Pending), m.UpdatedAt.Format("2006-01-02 15:04")}
	})
	fmt.Fprintln(out, renderTable([]string{"item", "pending", "updated"}, rows, nil))
}
