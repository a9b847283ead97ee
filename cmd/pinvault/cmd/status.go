package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmcleod/pinvault/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault state and preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		configured, err := a.vault.Authenticator().IsConfigured(ctx)
		if err != nil {
			return err
		}
		prefs, err := a.prefs.Load(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		row := func(k string, v any) { fmt.Fprintf(w, "%s:\t%v\n", k, v) }

		row("Data directory", dataDir)
		row("Backend", backend)
		if fi, err := os.Stat(a.dbPath); err == nil {
			row("Store size", humanize.Bytes(uint64(fi.Size())))
		}
		row("PIN configured", yesNo(configured))
		row("Encryption key", a.keyStatus())
		row("Panic lock", onOff(prefs.PanicLockEnabled))
		row("Panic sensitivity", fmt.Sprintf("%.1fg", prefs.PanicSensitivity))
		row("Biometric unlock", onOff(prefs.RequireBiometrics))
		if prefs.AutoLockEnabled {
			row("Auto-lock", fmt.Sprintf("after %d min", prefs.AutoLockMinutes))
		} else {
			row("Auto-lock", "off")
		}
		return w.Flush()
	},
}

// keyStatus describes the encryption key. Only the bbolt backend records
// when an entry was written.
func (a *app) keyStatus() string {
	if a.bolt == nil {
		return "unknown"
	}
	at, ok, err := a.bolt.UpdatedAt(vault.KeyNamespace, vault.KeyName)
	switch {
	case err != nil:
		a.logger.Warn("failed to read key metadata", "error", err)
		return "unknown"
	case !ok:
		return "not created"
	default:
		return "created " + humanize.Time(at)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
