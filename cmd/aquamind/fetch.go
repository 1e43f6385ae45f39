package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/aquamind/internal/domain"
)

func fetchCmd(a *app) *cobra.Command {
	var (
		filters    []string
		maxPages   int
		save       bool
		out        string
		format     string
		printItems bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <endpoint>",
		Short: "Fetch every page of a filtered listing",
		Long: `Fetch walks all pages of a list endpoint with the given filters applied.

The endpoint is a short name such as "batches" or an API path such as
/api/v1/batch/batches/. Filters are validated before any request is made.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, ok := domain.ParseExportFormat(format)
			if !ok {
				return fmt.Errorf("unknown format %q", format)
			}
			endpoint, err := domain.ResolveEndpoint(args[0])
			if err != nil {
				return err
			}
			state, err := a.buildState(filters)
			if err != nil {
				return err
			}
			defer closeState(state)

			stderr := cmd.ErrOrStderr()
			if err := reportState(stderr, state); err != nil {
				return err
			}

			c, err := a.client(nil)
			if err != nil {
				return err
			}
			if maxPages <= 0 {
				maxPages = a.cfg.Pagination.MaxPages
			}
			selection := state.Filters()
			items, err := c.ListAll(cmd.Context(), endpoint, selection, maxPages, func(current, total int) {
				fmt.Fprintf(stderr, "\rFetched page %d of %d", current, total)
			})
			fmt.Fprintln(stderr)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", endpoint, err)
			}
			fmt.Fprintf(stderr, "Fetched %d items from %s\n", len(items), endpoint)

			if printItems {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(items); err != nil {
					return err
				}
			}
			if !save && out == "" {
				return nil
			}

			repo, closeRepo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()
			if save && !a.cfg.Database.Enabled {
				a.logger.Warn("database disabled; snapshot is not persisted beyond this run")
			}

			svc := a.exportService(repo)
			snapshot, err := svc.Save(cmd.Context(), domain.ListSnapshot{
				Endpoint:      endpoint,
				Filters:       state.FormattedFilters(),
				FilterSummary: state.FilterSummary(),
				Items:         items,
			})
			if err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
			if save {
				fmt.Fprintf(stderr, "Saved snapshot %s\n", snapshot.ID)
			}
			if out != "" {
				path, err := svc.ExportToFile(cmd.Context(), snapshot.ID, exportFormat, out)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				a.logger.Info("wrote export", zap.String("path", path))
				fmt.Fprintf(stderr, "Wrote %s\n", path)
			}
			return nil
		},
	}

	addFilterFlag(cmd, &filters)
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "store the listing as a snapshot")
	cmd.Flags().StringVarP(&out, "out", "o", "", "export the listing to this file")
	cmd.Flags().StringVar(&format, "format", "xlsx", "export format: xlsx or csv")
	cmd.Flags().BoolVar(&printItems, "print", false, "print fetched items as JSON")

	return cmd
}
