package cmd

import (
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/jmcleod/pinvault/cmd/pinvault/cmd.Version=...".
var Version = "dev"

var (
	dataDir        string
	backend        string
	verifierScheme string
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "pinvault",
	Short: "PinVault is a PIN-protected local media vault",
	Long: `A local vault that guards private media behind a PIN.
Media is sealed with AES-256-GCM under a device key kept in the secret store,
and repeated wrong PINs trigger a temporary lockout.`,
	SilenceUsage: true,
}

func Execute() {
	memguard.CatchInterrupt()
	err := rootCmd.Execute()
	memguard.Purge()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "bbolt", "Secret store backend (bbolt or sqlite)")
	rootCmd.PersistentFlags().StringVar(&verifierScheme, "scheme", "sha256", "PIN verifier scheme for new PINs (sha256 or argon2id)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}
