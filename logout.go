package main

import (
	"github.com/spf13/cobra"

	"github.com/nollavik/watchsync/internal/config"
	"github.com/nollavik/watchsync/internal/store"
	"github.com/nollavik/watchsync/internal/tokenfile"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local state",
		Long: `Remove the saved token and clear the local database: the cached
watchlist snapshot, any queued offline changes, and settings. Queued changes
belong to the account being signed out and are discarded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			if err := tokenfile.Delete(config.TokenPath()); err != nil {
				return err
			}

			// Best effort: a missing or broken database is fine on logout.
			if st, err := store.Open(config.StatePath(), logger); err == nil {
				defer st.Close()

				if err := st.Reset(cmd.Context()); err != nil {
					logger.Warn("could not clear local state", "error", err.Error())
				}
			}

			statusf("Signed out.\n")

			return nil
		},
	}
}
