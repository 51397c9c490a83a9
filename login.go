package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/nollavik/watchsync/internal/api"
	"github.com/nollavik/watchsync/internal/config"
)

func newLoginCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the watchlist server",
		Long: `Sign in using the device code flow: a short code is displayed here and
entered on the server's verification page. The token is saved locally and
refreshed automatically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Login bootstraps config: --server or WATCHSYNC_SERVER_URL must
			// provide the server on first run; afterwards the config file has it.
			if err := loadConfig(); err != nil {
				return err
			}

			logger := buildLogger()
			ctx := cmd.Context()

			ocfg := &oauth2.Config{
				ClientID: resolvedCfg.ClientID,
				Scopes:   resolvedCfg.Scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:       resolvedCfg.AuthURL,
					TokenURL:      resolvedCfg.TokenURL,
					DeviceAuthURL: resolvedCfg.DeviceAuthURL,
				},
			}

			display := func(da api.DeviceAuth) {
				fmt.Printf("To sign in, visit:\n\n  %s\n\nand enter the code: %s\n\n", da.VerificationURI, da.UserCode)
			}

			if err := api.Login(ctx, resolvedCfg.TokenPath, ocfg, account, display, logger); err != nil {
				return err
			}

			if err := config.EnsureDefaultConfig(config.DefaultConfigPath(), resolvedCfg.ServerURL, account); err != nil {
				logger.Warn("could not write starter config file", "error", err.Error())
			}

			statusf("Signed in.\n")

			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account name to record (e.g. user@example.com)")

	return cmd
}
