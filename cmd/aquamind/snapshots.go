package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/internal/repository"
)

func snapshotsCmd(a *app) *cobra.Command {
	var (
		endpoint string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := repository.SnapshotFilter{Limit: limit}
			if endpoint != "" {
				resolved, err := domain.ResolveEndpoint(endpoint)
				if err != nil {
					return err
				}
				opts.Endpoint = resolved
			}

			repo, closeRepo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			snapshots, err := a.exportService(repo).Snapshots(cmd.Context(), opts)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tENDPOINT\tITEMS\tFETCHED\tFILTERS")
			for _, s := range snapshots {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Endpoint, s.ItemCount, s.FetchedAt.Format(time.RFC3339), s.FilterSummary)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "only list snapshots of this endpoint")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum snapshots to list")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export <snapshot-id>",
		Short: "Export a stored snapshot to XLSX or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid snapshot id: %w", err)
			}
			exportFormat, ok := domain.ParseExportFormat(format)
			if !ok {
				return fmt.Errorf("unknown format %q", format)
			}

			repo, closeRepo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			path, err := a.exportService(repo).ExportToFile(cmd.Context(), id, exportFormat, out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "xlsx", "export format: xlsx or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: export directory)")
	return cmd
}
