package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/graphview/internal/config"
)

func newConfigCmd() *cobra.Command {
	var bucket string

	cmd := &cobra.Command{
		Use:       "config <stage>",
		Short:     "Print the deployment descriptor for a stage",
		Long:      "Print the deployment descriptor for a stage as JSON. Stages: " + strings.Join(config.StageNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.StageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := config.StageJSON(args[0], bucket)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Value for DB_BUCKET")
	return cmd
}
