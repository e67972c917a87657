package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rfpchat/cmd/rfpchat/chat"
	"rfpchat/internal/api"
	"rfpchat/internal/config"
	"rfpchat/internal/logging"
)

const version = "1.0.0"

var (
	// Global flags
	serverURL string
	verbose   bool

	// Logger for non-interactive subcommands; the TUI has its own surface.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rfpchat",
	Short: "rfpchat - terminal client for the RFP document-analysis assistant",
	Long: `rfpchat is a terminal client for an RFP/RFQ document-analysis assistant.

Sign in (with an optional second factor), upload a document, and chat with an
assistant that has ingested it. The backend is reached over four HTTP
endpoints under a configurable base URL.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "rfpchat" && cmd.CalledAs() == "rfpchat" {
			return nil
		}

		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		if serverURL != "" {
			cfg.BaseURL = serverURL
		}
		if err := logging.Initialize(config.Dir()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		return chat.Run(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rfpchat %s\n", version)
	},
}

var (
	setupUsername string
	setupOutFile  string
)

// twoFactorSetupCmd fetches the TOTP provisioning QR code for an account and
// writes it to a PNG file to be scanned with an authenticator app.
var twoFactorSetupCmd = &cobra.Command{
	Use:   "2fa-setup",
	Short: "Download the TOTP provisioning QR code for an account",
	Long: `Fetches the QR code used to enroll an authenticator app for the given
account and writes it as a PNG file.

Example:
  rfpchat 2fa-setup --username alice --out alice-totp.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if setupUsername == "" {
			return fmt.Errorf("--username is required")
		}

		cfg := config.LoadOrDefault()
		if serverURL != "" {
			cfg.BaseURL = serverURL
		}

		client := api.New(cfg.BaseURL, cfg.HTTPTimeout())
		png, err := client.TwoFactorSetup(cmd.Context(), setupUsername)
		if err != nil {
			return fmt.Errorf("fetch QR code: %w", err)
		}

		if err := os.WriteFile(setupOutFile, png, 0o644); err != nil {
			return fmt.Errorf("write QR code: %w", err)
		}
		logger.Info("wrote provisioning QR code",
			zap.String("username", setupUsername), zap.String("file", setupOutFile))
		fmt.Printf("Wrote %s. Scan it with your authenticator app.\n", setupOutFile)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL (overrides config file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	twoFactorSetupCmd.Flags().StringVar(&setupUsername, "username", "", "account to enroll")
	twoFactorSetupCmd.Flags().StringVar(&setupOutFile, "out", "totp-qr.png", "output PNG path")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(twoFactorSetupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
