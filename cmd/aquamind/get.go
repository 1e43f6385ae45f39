package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/internal/entityloader"
)

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <endpoint> <id>...",
		Short: "Fetch entities by ID in a single batched request",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := domain.ResolveEndpoint(args[0])
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", raw)
				}
				ids = append(ids, id)
			}

			c, err := a.client(nil)
			if err != nil {
				return err
			}
			loader := entityloader.NewEntityLoader(c, endpoint, a.logger.Named("loader"))
			records, err := loader.LoadMany(cmd.Context(), ids)
			if err != nil {
				return err
			}

			found := make([]domain.Record, 0, len(records))
			for i, rec := range records {
				if rec == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Not found: %d\n", ids[i])
					continue
				}
				found = append(found, rec)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(found)
		},
	}
}
