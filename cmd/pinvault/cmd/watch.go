package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/pinvault/paniclock"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Unlock and lock again on panic events read from stdin",
	Long: `Unlock the vault, then read sensor events from stdin, one per line, until
one of them locks the vault:

  accel X Y Z    accelerometer sample in g
  gravity Z      gravity z component in g
  tap            a single tap
  background     the app left the foreground

Shake, face-down and tap triggers only fire while panic lock is enabled in
the preferences.`,
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
		if err := a.authenticate(cmd, pin); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Unlocked, watching for panic events.")

		d := paniclock.NewDetector(a.vault, a.prefs, paniclock.WithLogger(a.logger))
		for {
			line, err := r.in.ReadString('\n')
			if line = strings.TrimSpace(line); line != "" {
				ev, perr := parseEvent(line)
				if perr != nil {
					return perr
				}
				fired, ferr := d.OnTrigger(cmd.Context(), ev)
				if ferr != nil {
					return ferr
				}
				if fired {
					fmt.Fprintln(cmd.OutOrStdout(), "Locked.")
					return nil
				}
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(cmd.OutOrStdout(), "Input closed, still unlocked.")
				return nil
			}
			if err != nil {
				return err
			}
		}
	},
}

func parseEvent(line string) (paniclock.Event, error) {
	fields := strings.Fields(line)
	nums := make([]float64, 0, 3)
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return paniclock.Event{}, fmt.Errorf("event %q: %w", line, err)
		}
		nums = append(nums, v)
	}

	switch {
	case fields[0] == "accel" && len(nums) == 3:
		return paniclock.Event{Kind: paniclock.EventAcceleration, X: nums[0], Y: nums[1], Z: nums[2]}, nil
	case fields[0] == "gravity" && len(nums) == 1:
		return paniclock.Event{Kind: paniclock.EventGravity, Z: nums[0]}, nil
	case fields[0] == "tap" && len(nums) == 0:
		return paniclock.Event{Kind: paniclock.EventTap}, nil
	case fields[0] == "background" && len(nums) == 0:
		return paniclock.Event{Kind: paniclock.EventBackground}, nil
	default:
		return paniclock.Event{}, fmt.Errorf("unrecognized event %q", line)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&pinFlag, "pin", "", "Vault PIN")
}
