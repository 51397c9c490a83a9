package api

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/nollavik/watchsync/internal/tokenfile"
)

// DeviceAuth holds the device code response fields that the CLI displays to
// the user.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
}

// Login performs the device code OAuth2 flow against the watchlist service:
//  1. Requests a device code
//  2. Calls display so the CLI can show the user code and verification URL
//  3. Polls until the user authorizes (blocking, respects ctx cancellation)
//  4. Saves the token to disk at tokenPath
//
// The oauth2.Config (endpoints, client ID, scopes) comes from the resolved
// configuration so tests and self-hosted servers can point it anywhere.
func Login(
	ctx context.Context,
	tokenPath string,
	cfg *oauth2.Config,
	account string,
	display func(DeviceAuth),
	logger *slog.Logger,
) error {
	logger.Info("starting device code auth flow", slog.String("path", tokenPath))

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("api: device auth request failed: %w", err)
	}

	logger.Info("device code received, waiting for user authorization")

	display(DeviceAuth{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
	})

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return fmt.Errorf("api: device code authorization failed: %w", err)
	}

	if err := tokenfile.Save(tokenPath, tok, account); err != nil {
		return fmt.Errorf("api: saving token: %w", err)
	}

	logger.Info("login successful",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return nil
}

// FileTokenSource yields bearer tokens from the token file, refreshing them
// through the OAuth endpoint when expired and persisting the refreshed token
// back to disk. It re-reads the file on every call: a token rotated by a
// concurrent login (or another process) is picked up on the next request,
// which is what makes queued-mutation replay survive credential rotation.
type FileTokenSource struct {
	Path   string
	Config *oauth2.Config
	Logger *slog.Logger
}

// Token implements TokenSource.
func (f *FileTokenSource) Token() (string, error) {
	tok, account, err := tokenfile.Load(f.Path)
	if err != nil {
		return "", err
	}

	if tok == nil {
		return "", fmt.Errorf("api: not logged in (no token at %s)", f.Path)
	}

	if tok.Valid() || f.Config == nil {
		return tok.AccessToken, nil
	}

	// Expired with a refresh token: refresh through oauth2 and persist the
	// rotated token so other contexts (the daemon, a second CLI run) see it.
	fresh, err := f.Config.TokenSource(context.Background(), tok).Token()
	if err != nil {
		return "", fmt.Errorf("api: refreshing token: %w", err)
	}

	if fresh.AccessToken != tok.AccessToken {
		if f.Logger != nil {
			f.Logger.Debug("token refreshed", slog.Time("expiry", fresh.Expiry))
		}

		if err := tokenfile.Save(f.Path, fresh, account); err != nil {
			return "", err
		}
	}

	return fresh.AccessToken, nil
}

// StaticTokenSource returns the same token forever. Test helper and escape
// hatch for WATCHSYNC_TOKEN-style environments.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token() (string, error) {
	return string(s), nil
}
