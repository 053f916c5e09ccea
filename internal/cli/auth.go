package cli

import (
	"bufio"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"trade-journal/internal/broker"
	"trade-journal/internal/errors"
)

// addAuthCommands adds Kite Connect session commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Zerodha Kite Connect session",
	}
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	rootCmd.AddCommand(cmd)
}

// zerodha builds the Kite broker from the loaded configuration. The session
// file is kept next to config.toml.
func (app *App) zerodha() (*broker.ZerodhaBroker, error) {
	kite := app.Config.Credentials.Kite
	if kite.APIKey == "" {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "credentials.kite.api_key is not set")
	}
	return broker.NewZerodhaBroker(broker.ZerodhaConfig{
		APIKey:      kite.APIKey,
		APISecret:   kite.APISecret,
		AccessToken: kite.AccessToken,
		TokenPath:   filepath.Join(filepath.Dir(app.Config.Path), "session.json"),
		Exchange:    app.Config.Broker.Exchange,
		Product:     app.Config.Broker.Product,
	}), nil
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to Zerodha Kite Connect",
		Long: `Login to Zerodha Kite Connect.

Opens the Kite login page and asks for the request_token from the redirect
URL. The session is saved and reused until it expires at 6 AM IST.`,
		Example: `  journal auth login
  journal auth login --token=<request_token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			zb, err := app.zerodha()
			if err != nil {
				return err
			}

			token, _ := cmd.Flags().GetString("token")
			if token == "" {
				loginURL := zb.LoginURL()
				output.Info("Opening Zerodha login page...")
				output.Bold("Login URL:")
				output.Println(loginURL)
				output.Println()

				if err := openURL(loginURL); err != nil {
					output.Warning("Could not open browser automatically")
				}

				output.Info("After logging in, you'll be redirected to a URL like:")
				output.Dim("  https://your-redirect-url.com/?request_token=XXXXXX&status=success")
				output.Bold("Paste the request_token value here:")
				output.Printf("> ")

				reader := bufio.NewReader(cmd.InOrStdin())
				input, _ := reader.ReadString('\n')
				token = strings.TrimSpace(input)
				if token == "" {
					return errors.NewValidationError("request_token", "", "no token provided")
				}
			}

			output.Info("Completing login with token...")
			if err := zb.CompleteLogin(ctx, token); err != nil {
				return err
			}
			output.Success("✓ Login successful!")
			return nil
		},
	}

	cmd.Flags().String("token", "", "Request token from redirect URL")
	return cmd
}

func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			status := map[string]interface{}{
				"broker_mode":   app.Config.Broker.Mode,
				"authenticated": false,
			}
			zb, err := app.zerodha()
			if err == nil {
				status["authenticated"] = zb.IsAuthenticated()
			}

			if output.IsJSON() {
				return output.JSON(status)
			}
			output.Printf("  Broker mode: %s\n", app.Config.Broker.Mode)
			switch {
			case err != nil:
				output.Dim("  Kite Connect not configured")
			case zb.IsAuthenticated():
				output.Success("✓ Authenticated")
			default:
				output.Warning("Not authenticated")
				output.Info("Run 'journal auth login' to authenticate")
			}
			return nil
		},
	}
}
