package main

import (
	"errors"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vipul43/ledger-sync/internal/config"
)

// errReported means the failure was already printed to the user.
var errReported = errors.New("failed")

type app struct {
	cfg *config.Config
	log io.Closer
}

// execute runs cmd and closes the log file afterwards, including when a
// subcommand fails.
func execute(cmd *cobra.Command, a *app) error {
	defer a.closeLog()
	return cmd.Execute()
}

func (a *app) closeLog() {
	if a.log == nil {
		return
	}
	log.SetOutput(os.Stderr)
	if err := a.log.Close(); err != nil {
		log.Printf("Warning: failed to close log file: %v", err)
	}
	a.log = nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledger-sync",
		Short: "Mirror Xero accounting data into PostgreSQL",
		Long: `ledger-sync pulls accounts, contacts, invoices and journals from the Xero
accounting API and upserts them into PostgreSQL. Runs are checkpointed per
entity, so an interrupted run resumes from its last committed batch.`,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = setupLogging(cfg.LogFile)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSyncCmd(a), newMigrateCmd(a), newAuthorizeCmd(a))
	return root
}

// setupLogging sends the detailed log to a rotating file when one is configured.
func setupLogging(path string) io.Closer {
	if path == "" {
		return nil
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	log.SetOutput(w)
	return w
}
