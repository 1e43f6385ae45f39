package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rpattn/aquamind/internal/client"
	"github.com/rpattn/aquamind/internal/config"
	"github.com/rpattn/aquamind/internal/db"
	"github.com/rpattn/aquamind/internal/export"
	"github.com/rpattn/aquamind/internal/logging"
	"github.com/rpattn/aquamind/internal/repository"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "aquamind",
		Short: "Query and export AquaMind list endpoints",
		Long: `aquamind fetches filtered listings from the AquaMind Django REST API.

Filters select entities by ID with Django "__in" lookups, for example
--filter hall__in=1,2,3. Listings are drained page by page and can be
stored as snapshots and exported to XLSX or CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./config.yaml when present)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or console")
	flags.String("base-url", "", "AquaMind API base URL")
	flags.String("token", "", "API token sent as 'Authorization: Token <token>'")
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = a.v.BindPFlag("api.token", flags.Lookup("token"))

	rootCmd.AddCommand(
		fetchCmd(a),
		summaryCmd(a),
		getCmd(a),
		snapshotsCmd(a),
		exportCmd(a),
		migrateCmd(a),
		serveCmd(a),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) client(reg prometheus.Registerer) (*client.Client, error) {
	opts := []client.Option{client.WithLogger(a.logger.Named("client"))}
	if reg != nil {
		opts = append(opts, client.WithRegisterer(reg))
	}
	return client.New(a.cfg.Client(), opts...)
}

// repository opens Postgres when enabled and falls back to memory. The
// returned func releases the connection.
func (a *app) repository(ctx context.Context) (repository.SnapshotRepository, func(), error) {
	if !a.cfg.Database.Enabled {
		return repository.NewMemorySnapshotRepository(), func() {}, nil
	}

	dbCfg := a.cfg.DB()
	if a.cfg.Database.Migrate {
		if err := db.RunMigrations(dbCfg, a.logger.Named("migrate")); err != nil {
			return nil, nil, err
		}
	}
	conn, err := db.NewConnection(ctx, dbCfg, a.logger.Named("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return repository.NewSnapshotRepository(conn.Pool), conn.Close, nil
}

func (a *app) exportService(repo repository.SnapshotRepository) *export.Service {
	return export.NewService(repo,
		export.WithExportDirectory(a.cfg.Export.Directory),
		export.WithDownloadTokenTTL(a.cfg.Export.DownloadTokenTTL),
		export.WithLogger(a.logger.Named("export")),
	)
}
