package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/pinvault/vault"
)

var (
	pinFlag     string
	confirmFlag string
	oldPINFlag  string
	newPINFlag  string
	resetYes    bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the vault PIN",
	Long: `Create the vault PIN. The PIN is entered twice and must be 4 to 6 digits.
Without --pin and --confirm both entries are read from stdin, one per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		r := newPINReader(cmd)
		pin, err := r.read(pinFlag, "PIN")
		if err != nil {
			return err
		}
		auth := a.vault.Authenticator()
		if err := auth.BeginSetup(cmd.Context(), pin); err != nil {
			if errors.Is(err, vault.ErrAlreadyConfigured) {
				return fmt.Errorf("%w: use \"pinvault change-pin\" or \"pinvault reset\"", err)
			}
			return err
		}
		confirm, err := r.read(confirmFlag, "PIN confirmation")
		if err != nil {
			auth.CancelSetup()
			return err
		}
		if err := auth.ConfirmSetup(cmd.Context(), confirm); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "PIN set.")
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Check a PIN against the vault",
	Long: `Check a PIN against the vault and open a session for this process.

Failed attempts and lockouts are held in memory for one process only. Each
pinvault invocation starts with a clean count, so the CLI gives no brute-force
protection across invocations. Protect the data directory itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		pin, err := newPINReader(cmd).read(pinFlag, "PIN")
		if err != nil {
			return err
		}
		if err := a.authenticate(cmd, pin); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unlocked (session %s).\n", a.vault.Authenticator().SessionID())
		return nil
	},
}

var changePINCmd = &cobra.Command{
	Use:   "change-pin",
	Short: "Replace the vault PIN",
	Long: `Replace the vault PIN. The current PIN must be correct and the new PIN
must differ from it. Missing values are read from stdin: current PIN, new PIN,
then the confirmation of the new PIN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		r := newPINReader(cmd)
		oldPIN, err := r.read(oldPINFlag, "current PIN")
		if err != nil {
			return err
		}
		newPIN, err := r.read(newPINFlag, "new PIN")
		if err != nil {
			return err
		}
		confirm, err := r.read(confirmFlag, "new PIN confirmation")
		if err != nil {
			return err
		}
		if confirm != newPIN {
			return vault.ErrPINMismatch
		}
		if err := a.vault.Authenticator().ChangePIN(cmd.Context(), oldPIN, newPIN); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "PIN changed.")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the PIN and the encryption key",
	Long: `Erase the PIN and the encryption key. Media encrypted before the reset
can no longer be decrypted. Requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return errors.New("reset destroys the encryption key; pass --yes to confirm")
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.vault.Authenticator().Reset(cmd.Context()); err != nil {
			return fmt.Errorf("reset incomplete: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Vault reset.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd, unlockCmd, changePINCmd, resetCmd)

	setupCmd.Flags().StringVar(&pinFlag, "pin", "", "New PIN")
	setupCmd.Flags().StringVar(&confirmFlag, "confirm", "", "New PIN again")

	unlockCmd.Flags().StringVar(&pinFlag, "pin", "", "Vault PIN")

	changePINCmd.Flags().StringVar(&oldPINFlag, "old", "", "Current PIN")
	changePINCmd.Flags().StringVar(&newPINFlag, "new", "", "New PIN")
	changePINCmd.Flags().StringVar(&confirmFlag, "confirm", "", "New PIN again")

	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the reset")
}
