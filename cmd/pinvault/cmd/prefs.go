package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	prefPanicLock   bool
	prefSensitivity float64
	prefBiometrics  bool
	prefAutoLock    bool
	prefAutoLockMin int
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change security preferences",
	Long: `Show the security preferences, or change the ones given as flags.
Auto-lock minutes must be one of 1, 5, 15 or 30.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		p, err := a.prefs.Load(ctx)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		changed := false
		if flags.Changed("panic-lock") {
			p.PanicLockEnabled, changed = prefPanicLock, true
		}
		if flags.Changed("sensitivity") {
			p.PanicSensitivity, changed = prefSensitivity, true
		}
		if flags.Changed("biometrics") {
			p.RequireBiometrics, changed = prefBiometrics, true
		}
		if flags.Changed("auto-lock") {
			p.AutoLockEnabled, changed = prefAutoLock, true
		}
		if flags.Changed("auto-lock-minutes") {
			p.AutoLockMinutes, changed = prefAutoLockMin, true
		}
		if changed {
			if err := a.prefs.Save(ctx, p); err != nil {
				return err
			}
		}

		out, err := yaml.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding preferences: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)

	prefsCmd.Flags().BoolVar(&prefPanicLock, "panic-lock", false, "Lock when a panic gesture is detected")
	prefsCmd.Flags().Float64Var(&prefSensitivity, "sensitivity", 2.5, "Shake threshold in g")
	prefsCmd.Flags().BoolVar(&prefBiometrics, "biometrics", false, "Accept biometric unlock")
	prefsCmd.Flags().BoolVar(&prefAutoLock, "auto-lock", false, "Lock after a period of inactivity")
	prefsCmd.Flags().IntVar(&prefAutoLockMin, "auto-lock-minutes", 5, "Inactivity period in minutes")
}
