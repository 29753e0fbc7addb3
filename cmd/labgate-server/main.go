package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/labgate/labgate/internal/config"
	dbpkg "github.com/labgate/labgate/internal/db"
	"github.com/labgate/labgate/internal/httpapi"
	"github.com/labgate/labgate/internal/labgate/service"
	"github.com/labgate/labgate/internal/labgate/store"
	sqlitestore "github.com/labgate/labgate/internal/labgate/store/sqlite"
	"github.com/labgate/labgate/internal/obs"
)

// version is set by ldflags at build time.
var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "labgate-server",
		Short:   "Presence tracking server: toggles Inside/Outside on each scan",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Run the database integrity check and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cfg)
		},
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Provision the roster and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg)
		},
	}

	root.AddCommand(serve, check, seed)
	root.RunE = serve.RunE // bare invocation serves

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := log.New(os.Stdout, "labgate-server ", log.LstdFlags|log.LUTC)

	conn, err := dbpkg.Open(ctx, dbpkg.Config{
		Path:     cfg.DBPath,
		Recovery: dbpkg.RecoveryMode(cfg.Recovery),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	roster, err := rosterFor(cfg)
	if err != nil {
		return err
	}
	if err := dbpkg.ProvisionRoster(ctx, conn, roster); err != nil {
		return err
	}

	writer := dbpkg.NewWorker(conn)
	defer writer.Close()

	// Stores
	rosterStore := sqlitestore.NewRosterStore(conn, writer)
	ledgerStore := sqlitestore.NewLedgerStore(conn, writer)

	// Services
	toggleSvc := service.NewToggleService(rosterStore, ledgerStore)
	viewSvc := service.NewViewService(ledgerStore, cfg.PresenceWindow, cfg.HistoryLimit)
	rosterSvc := service.NewRosterService(rosterStore)

	obs.Init()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		Toggle:         toggleSvc,
		Views:          viewSvc,
		Roster:         rosterSvc,
		DB:             conn,
		ScanRatePerSec: cfg.ScanRatePerSec,
		ScanBurst:      cfg.ScanBurst,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s (env=%s window=%s)", cfg.HTTPAddr, cfg.Env, cfg.PresenceWindow)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCheck(ctx context.Context, cfg config.Config) error {
	logger := log.New(os.Stdout, "labgate-check ", log.LstdFlags|log.LUTC)

	// Never reset from the check command, whatever the config says.
	conn, err := dbpkg.Open(ctx, dbpkg.Config{
		Path:     cfg.DBPath,
		Recovery: dbpkg.RecoveryAbort,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := dbpkg.IntegrityCheck(ctx, conn); err != nil {
		return err
	}
	logger.Printf("integrity check ok: %s", cfg.DBPath)
	return nil
}

func runSeed(ctx context.Context, cfg config.Config) error {
	logger := log.New(os.Stdout, "labgate-seed ", log.LstdFlags|log.LUTC)

	conn, err := dbpkg.Open(ctx, dbpkg.Config{
		Path:     cfg.DBPath,
		Recovery: dbpkg.RecoveryMode(cfg.Recovery),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	roster, err := rosterFor(cfg)
	if err != nil {
		return err
	}
	if err := dbpkg.ProvisionRoster(ctx, conn, roster); err != nil {
		return err
	}
	logger.Printf("provisioned %d identities into %s", len(roster), cfg.DBPath)
	return nil
}

// rosterFor resolves the identities to provision: the configured roster
// file when set, the built-in dev roster in dev, nothing in prod.
func rosterFor(cfg config.Config) ([]store.IdentityRecord, error) {
	if cfg.RosterPath != "" {
		return dbpkg.LoadRosterFile(cfg.RosterPath)
	}
	if cfg.Env == "dev" {
		return dbpkg.DevRoster(), nil
	}
	return nil, nil
}
