package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/vipul43/ledger-sync/internal/config"
	"github.com/vipul43/ledger-sync/internal/database"
	"github.com/vipul43/ledger-sync/internal/repository"
	"github.com/vipul43/ledger-sync/internal/service"
	"github.com/vipul43/ledger-sync/internal/watcher"
	"github.com/vipul43/ledger-sync/internal/xero"
)

func newSyncCmd(a *app) *cobra.Command {
	var full, watch, migrate bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync accounts, contacts, invoices and journals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if full {
				a.cfg.ForceFullSync = true
			}
			return runSync(cmd.Context(), a.cfg, watch, migrate)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "force a full resync of every entity (SYNC_FORCE_FULL)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and sync every POLL_INTERVAL seconds")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before syncing")
	return cmd
}

func runSync(parent context.Context, cfg *config.Config, watch, migrate bool) error {
	if migrate {
		log.Println("Running database migrations...")
		if err := database.RunMigrations(cfg.DatabaseURL, database.DefaultEngine); err != nil {
			return err
		}
		log.Println("Migrations completed successfully")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Println("Database connected successfully")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	tokens := repository.NewTokenRepository(db)
	seeded, err := tokens.Seed(ctx, cfg.XeroTenantID, cfg.XeroRefreshToken)
	if err != nil {
		return err
	}
	if seeded {
		log.Printf("Seeded refresh token for tenant %s from XERO_REFRESH_TOKEN", cfg.XeroTenantID)
	}

	tokenManager := xero.NewTokenManager(xero.TokenManagerConfig{
		ClientID:     cfg.XeroClientID,
		ClientSecret: cfg.XeroClientSecret,
		TokenURL:     cfg.XeroTokenURL,
		TenantID:     cfg.XeroTenantID,
		ExpiryBuffer: cfg.TokenExpiryBuffer,
	}, tokens)
	client := xero.NewClient(xero.ClientConfig{
		BaseURL:           cfg.XeroAPIURL,
		TenantID:          cfg.XeroTenantID,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, tokenManager)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	type outcome struct {
		summary service.Summary
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		if !watch {
			summary, err := newOrchestrator(db, client, cfg, cfg.ForceFullSync).Run(ctx)
			done <- outcome{summary: summary, err: err}
			return
		}
		runner := watcher.Runner(newOrchestrator(db, client, cfg, false))
		if cfg.ForceFullSync {
			runner = &forcedFirstRun{
				forced:  newOrchestrator(db, client, cfg, true),
				regular: runner,
			}
		}
		done <- outcome{err: watcher.New(runner, time.Duration(cfg.PollInterval)*time.Second).Start(ctx)}
	}()

	// Wait for shutdown signal or completion
	select {
	case <-sigChan:
		log.Println("Shutdown signal received")
		cancel()

		// Wait for graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded")
		case res := <-done:
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				log.Printf("Sync stopped with error: %v", res.err)
			}
		}

		log.Println("Application stopped")
		if watch {
			return nil
		}
		return report(service.Summary{}, errors.New("interrupted, progress is checkpointed"))

	case res := <-done:
		return report(res.summary, res.err)
	}
}

func newOrchestrator(db *gorm.DB, client *xero.Client, cfg *config.Config, forceFull bool) *service.Orchestrator {
	entities := repository.NewEntityRepository(db)
	checkpoints := repository.NewCheckpointRepository(db)

	policy := service.NewPolicy(checkpoints, entities, cfg.FullResyncInterval, forceFull)
	syncer := service.NewEntitySyncer(client, entities, checkpoints, policy, service.SyncerConfig{
		PageSize:      cfg.PageSize,
		BatchPages:    cfg.BatchPages,
		VerifyCommits: cfg.VerifyCommits,
	})
	return service.NewOrchestrator(syncer, repository.NewSyncLogRepository(db))
}

// forcedFirstRun applies --full to the first watch iteration only.
type forcedFirstRun struct {
	forced  watcher.Runner
	regular watcher.Runner
	used    bool
}

func (r *forcedFirstRun) Run(ctx context.Context) (service.Summary, error) {
	if r.used {
		return r.regular.Run(ctx)
	}
	r.used = true
	return r.forced.Run(ctx)
}

// report prints the terse run summary; details are in the log.
func report(summary service.Summary, err error) error {
	if err != nil {
		color.New(color.FgRed, color.Bold).Printf("ERROR: Sync failed - %v\n", err)
		return errReported
	}

	color.New(color.FgGreen, color.Bold).Printf("SUCCESS: Synced %d total records\n", summary.Total)
	for _, r := range summary.Results {
		fmt.Printf("  %-9s %-11s %d\n", r.Entity, r.Mode, r.Records)
	}
	return nil
}
