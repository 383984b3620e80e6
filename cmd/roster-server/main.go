package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikepea/roster/pkg/roster/config"
	"github.com/mikepea/roster/pkg/roster/database"
	"github.com/mikepea/roster/pkg/roster/documents"
	"github.com/mikepea/roster/pkg/roster/importexport"
	"github.com/mikepea/roster/pkg/roster/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "roster-server",
	Short: "Roster keeps the groups of a tabletop world",
	Long: `Roster stores the groups of a tabletop world (parties, encounters,
crews) and their member actors, and tracks which party is the primary one.

Run without arguments to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if cfg.Debug {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := database.Connect(cfg.DBPath, cfg.Debug); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("database ready", zap.String("path", cfg.DBPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := database.Close(); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import groups from JSON or YAML bundles",
	Long: `Import groups from bundle files. Files ending in .yaml or .yml are
read as YAML, everything else as JSON. Groups with an id replace the
stored group with that id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := documents.NewStore(database.GetDB(), nil, logger.Named("documents"))
		svc := importexport.NewService(store, logger.Named("import"))

		skipped := 0
		for _, path := range args {
			result, err := svc.ImportFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			for _, msg := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: imported %d, skipped %d\n", path, result.Imported, result.Skipped)
			skipped += result.Skipped
		}
		if skipped > 0 {
			return fmt.Errorf("%d groups skipped", skipped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, importCmd)
}

func serve(ctx context.Context) error {
	s := server.New(database.GetDB(), cfg, logger)
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting roster server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
