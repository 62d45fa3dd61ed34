package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lucasvieira/zapcamp/internal/api"
	"github.com/lucasvieira/zapcamp/internal/campaign"
	"github.com/lucasvieira/zapcamp/internal/config"
	"github.com/lucasvieira/zapcamp/internal/dispatch"
	"github.com/lucasvieira/zapcamp/internal/gateway"
	"github.com/lucasvieira/zapcamp/internal/places"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "zapcamp",
		Short: "ZapCamp — WhatsApp lead capture and campaign dispatcher",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(processCmd(&configPath))
	rootCmd.AddCommand(sweepCmd(&configPath))
	rootCmd.AddCommand(captureCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ZapCamp server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			gw := gateway.NewClient(cfg.Gateway)
			scheduler := dispatch.NewScheduler(store, log)
			runner := dispatch.NewRunner(cfg.Dispatch, store, gw, log)
			campaigns := campaign.NewService(store, scheduler, log)
			importer := places.NewImporter(places.NewClient(cfg.Places), store, cfg.Places.PageDelay, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			runner.Start(ctx)

			server := api.NewServer(cfg.Server, api.Deps{
				Store:     store,
				Campaigns: campaigns,
				Scheduler: scheduler,
				Processor: runner.Processor(),
				Gateway:   gw,
				Importer:  importer,
			}, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Str("gateway", cfg.Gateway.BaseURL).
				Str("storage", cfg.Storage.Driver).
				Msg("ZapCamp is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			runner.Stop()

			log.Info().Msg("ZapCamp stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

// processCmd runs one processing batch and exits, for driving the queue from
// an external cron instead of the in-process runner.
func processCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process due dispatch jobs once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			if limit <= 0 {
				limit = cfg.Dispatch.BatchLimit
			}

			gw := gateway.NewClient(cfg.Gateway)
			processor := dispatch.NewProcessor(store, gw, cfg.Dispatch.SendDelay, log)

			stats, err := processor.ProcessBatch(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("batch processing failed: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "max jobs to process in this run")
	return cmd
}

func sweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete campaigns whose jobs are all finished",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			processor := dispatch.NewProcessor(store, gateway.NewClient(cfg.Gateway), cfg.Dispatch.SendDelay, log)
			examined, err := processor.SweepCompletions(context.Background())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			fmt.Printf("examined %d in-progress campaign(s)\n", examined)
			return nil
		},
	}
}

func captureCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Import leads from a places search",
		RunE: func(cmd *cobra.Command, args []string) error {
			term, _ := cmd.Flags().GetString("term")
			location, _ := cmd.Flags().GetString("location")
			if term == "" || location == "" {
				return fmt.Errorf("--term and --location are required")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			importer := places.NewImporter(places.NewClient(cfg.Places), store, cfg.Places.PageDelay, log)
			result, err := importer.Import(context.Background(), term, location)
			if err != nil {
				return fmt.Errorf("capture failed: %w", err)
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("term", "", "search term, e.g. \"dentista\"")
	cmd.Flags().String("location", "", "location, e.g. \"São Paulo\"")
	return cmd
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show contact, dispatch and campaign stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			ctx := context.Background()
			contacts, err := store.ContactStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get contact stats: %w", err)
			}
			dispatches, err := store.DispatchStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get dispatch stats: %w", err)
			}
			campaigns, err := store.CampaignStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get campaign stats: %w", err)
			}

			out, _ := json.MarshalIndent(map[string]interface{}{
				"contacts":   contacts,
				"dispatches": dispatches,
				"campaigns":  campaigns,
			}, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ZapCamp v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
