package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const sealedExt = ".pvlt"

var decryptJobs int

var encryptCmd = &cobra.Command{
	Use:   "encrypt FILE...",
	Short: "Seal files with the vault key",
	Long: `Seal each FILE with the vault key and write it to FILE.pvlt. The vault key
is created on first use. The original files are left in place.`,
	Args: cobra.MinimumNArgs(1),
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

		for _, path := range args {
			plaintext, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			sealed, err := a.vault.Encrypt(cmd.Context(), plaintext)
			if err != nil {
				return fmt.Errorf("encrypting %s: %w", path, err)
			}
			out := path + sealedExt
			if err := os.WriteFile(out, sealed, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", path, out, humanize.Bytes(uint64(len(sealed))))
		}
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE.pvlt...",
	Short: "Open files sealed by encrypt",
	Long: `Open each FILE.pvlt and write the plaintext next to it without the .pvlt
extension. Nothing is written unless every file decrypts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if !strings.HasSuffix(path, sealedExt) {
				return fmt.Errorf("%s: expected a %s file", path, sealedExt)
			}
		}

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

		payloads := make([][]byte, len(args))
		for i, path := range args {
			if payloads[i], err = os.ReadFile(path); err != nil {
				return err
			}
		}
		plaintexts, err := a.vault.DecryptAll(cmd.Context(), payloads, decryptJobs)
		if err != nil {
			return err
		}
		for i, path := range args {
			out := strings.TrimSuffix(path, sealedExt)
			if err := os.WriteFile(out, plaintexts[i], 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", path, out, humanize.Bytes(uint64(len(plaintexts[i]))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encryptCmd, decryptCmd)

	encryptCmd.Flags().StringVar(&pinFlag, "pin", "", "Vault PIN")
	decryptCmd.Flags().StringVar(&pinFlag, "pin", "", "Vault PIN")
	decryptCmd.Flags().IntVarP(&decryptJobs, "jobs", "j", 4, "Files decrypted in parallel")
}
