package main

import (
	"github.com/spf13/cobra"

	"github.com/af-corp/mlapi/internal/output"
)

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	var (
		format    string
		resources bool
	)
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the routes the configuration document produces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := s.compile(cmd.Context())
			if err != nil {
				return err
			}
			formatter := output.NewFormatter(cmd.OutOrStdout(), format)
			if resources {
				return formatter.PrintResources(m.Resources)
			}
			return formatter.PrintRoutes(m.Routes)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatTable, "output format (table, json, yaml)")
	cmd.Flags().BoolVar(&resources, "resources", false, "summarize resources by kind instead of listing routes")
	return cmd
}
