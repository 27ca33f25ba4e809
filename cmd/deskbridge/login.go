package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/auth"
	"github.com/waabox/deskbridge/internal/tui"
)

var loginClientID string

func init() {
	rootCmd.AddCommand(cmdLogin)
	rootCmd.AddCommand(cmdLogout)

	cmdLogin.Flags().StringVar(&loginClientID, "client-id", "", "OAuth client ID (default: graph.client_id from config)")
}

var cmdLogin = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Microsoft Graph with a device code",
	Long:  "Starts the device authorization flow, shows the code to enter at the verification URL and saves the issued tokens to the configured token store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		clientID := loginClientID
		if clientID == "" {
			clientID = cfg.Graph.ClientID
		}
		if clientID == "" {
			return errors.New("no client ID: pass --client-id or set graph.client_id in the config file")
		}

		store, err := auth.NewTokenStore(cfg.TokenStoreOrDefault(), cfg.AppIDOrDefault())
		if err != nil {
			return err
		}
		tm := auth.NewTokenManager(store)
		flow := auth.NewGraphDeviceFlow(clientID, cfg.Graph.AuthorityURL,
			auth.WithTenant(cfg.TenantOrDefault()), auth.WithTimeout(cfg.GraphTimeout()))
		complete := func(ctx context.Context, deviceCode string, interval int) (auth.GraphTokens, error) {
			return tm.Complete(ctx, flow, deviceCode, pollInterval(interval))
		}

		if isTerminal(os.Stderr) {
			_, err = tui.RunLogin(cmd.Context(), tui.NewLoginModel(flow.RequestCode, complete), os.Stderr)
		} else {
			_, err = runPlainLogin(cmd.Context(), os.Stderr, flow.RequestCode, complete)
		}
		if err != nil {
			logger.Warn("Graph sign-in failed", zap.Error(err))
			return err
		}

		logger.Info("Graph sign-in completed", zap.String("store", cfg.TokenStoreOrDefault()))
		fmt.Fprintf(os.Stderr, "Signed in. Tokens saved to the %s store", cfg.TokenStoreOrDefault())
		if fs, ok := store.(*auth.FileStore); ok {
			fmt.Fprintf(os.Stderr, " (%s)", fs.Path())
		}
		fmt.Fprintln(os.Stderr)
		return nil
	},
}

var cmdLogout = &cobra.Command{
	Use:   "logout",
	Short: "Remove saved Microsoft Graph tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := auth.NewTokenStore(cfg.TokenStoreOrDefault(), cfg.AppIDOrDefault())
		if err != nil {
			return err
		}
		if err := auth.NewTokenManager(store).Clear(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Signed out.")
		return nil
	},
}

// pollInterval keeps a provider that omits the interval from being polled
// back to back.
func pollInterval(interval int) int {
	if interval <= 0 {
		return auth.DefaultPollInterval
	}
	return interval
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// runPlainLogin runs the device flow with line-oriented prompts on w.
// It blocks until the user completes authorization or an error occurs.
func runPlainLogin(
	ctx context.Context,
	w io.Writer,
	requestCode func(ctx context.Context) (auth.DeviceCodeResponse, error),
	complete func(ctx context.Context, deviceCode string, interval int) (auth.GraphTokens, error),
) (auth.GraphTokens, error) {
	code, err := requestCode(ctx)
	if err != nil {
		return auth.GraphTokens{}, fmt.Errorf("requesting device code: %w", err)
	}
	fmt.Fprintf(w, "Visit:      %s\n", code.VerificationURI)
	fmt.Fprintf(w, "Enter code: %s\n", code.UserCode)
	fmt.Fprintf(w, "Waiting for authorization...\n")

	expires := time.Duration(code.ExpiresIn) * time.Second
	if expires <= 0 {
		expires = 15 * time.Minute
	}
	codeCtx, cancel := context.WithTimeout(ctx, expires)
	defer cancel()
	return complete(codeCtx, code.DeviceCode, code.Interval)
}
