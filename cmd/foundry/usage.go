package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/azfoundry/foundry-go/sdk/apierr"
)

func newUsageCmd(a *app) *cobra.Command {
	var (
		limit   int
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show locally recorded token usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.openUsage()
			if store == nil {
				return apierr.Dependency("usage database unavailable", nil)
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if summary {
				sums, err := store.SummaryByModel(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "MODEL\tCALLS\tPROMPT\tCOMPLETION\tTOTAL")
				for _, s := range sums {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
						s.Model, s.Calls, s.PromptTokens, s.CompletionTokens, s.TotalTokens)
				}
				return nil
			}

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "TIME\tOPERATION\tMODEL\tTOKENS\tDURATION")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					r.RecordedAt.Format("2006-01-02 15:04:05"), r.Operation, r.Model, r.TotalTokens, r.Duration)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().BoolVar(&summary, "summary", false, "aggregate usage per model")

	return cmd
}
