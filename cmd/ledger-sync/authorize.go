package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vipul43/ledger-sync/internal/database"
	"github.com/vipul43/ledger-sync/internal/repository"
	"github.com/vipul43/ledger-sync/internal/xero"
)

func newAuthorizeCmd(a *app) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Obtain and store the first refresh token for XERO_TENANT_ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			authorizer := xero.NewAuthorizer(xero.AuthorizerConfig{
				ClientID:     a.cfg.XeroClientID,
				ClientSecret: a.cfg.XeroClientSecret,
				AuthURL:      a.cfg.XeroAuthURL,
				TokenURL:     a.cfg.XeroTokenURL,
				CallbackAddr: addr,
			})

			fmt.Println("Open this URL in your browser and grant access:")
			fmt.Println()
			fmt.Println("  " + authorizer.AuthCodeURL())
			fmt.Println()
			fmt.Printf("Waiting for authorization (timeout in %s)...\n", timeout)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			code, err := authorizer.Await(ctx)
			if err != nil {
				return err
			}
			state, err := authorizer.Exchange(ctx, code, a.cfg.XeroTenantID)
			if err != nil {
				return err
			}

			db, err := database.Connect(a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := repository.NewTokenRepository(db).Save(ctx, state); err != nil {
				return err
			}

			color.Green("SUCCESS: Refresh token stored for tenant %s", a.cfg.XeroTenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "listen", xero.DefaultCallbackAddr, "address of the local OAuth callback listener")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the browser callback")
	return cmd
}
