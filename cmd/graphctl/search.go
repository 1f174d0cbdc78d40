package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/graphview/internal/series"
	"github.com/dgnsrekt/graphview/internal/series/postgres"
)

func newSearchCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "search [patterns...]",
		Short: "Search series labels in the demo store or a postgres database",
		Long: `Search series labels. Every pattern must appear in a label, case-insensitively.
Without --database the built-in demo collections are searched.

Example: graphctl search weather par`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, closeStore, err := searchStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeStore()

			labels, err := series.NewReader(store).Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(labels) == 0 {
				fmt.Fprintln(out, keyStyle.Render("no matching series"))
				return nil
			}
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d series", len(labels))))
			for _, label := range labels {
				fmt.Fprintln(out, okStyle.Render("•")+" "+valueStyle.Render(label))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database", "", "Postgres URL (default: in-memory demo data)")
	return cmd
}

func searchStore(ctx context.Context, databaseURL string) (series.Store, func(), error) {
	if databaseURL == "" {
		mem := series.NewMemoryStore()
		mem.SeedDemo()
		return mem, func() {}, nil
	}
	pg, err := postgres.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
