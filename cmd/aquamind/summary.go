package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/aquamind/pkg/filter"
)

func summaryCmd(a *app) *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Validate filters and print the resulting query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.buildState(filters)
			if err != nil {
				return err
			}
			defer closeState(state)

			out := cmd.OutOrStdout()
			reportErr := reportState(out, state)
			fmt.Fprintf(out, "Query: %s\n", filter.Values(state.Filters()).Encode())
			return reportErr
		},
	}

	addFilterFlag(cmd, &filters)
	return cmd
}
