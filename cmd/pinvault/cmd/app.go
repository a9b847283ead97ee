package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/pinvault/secretstore"
	bboltstore "github.com/jmcleod/pinvault/secretstore/bbolt"
	sqlitestore "github.com/jmcleod/pinvault/secretstore/sqlite"
	"github.com/jmcleod/pinvault/settings"
	"github.com/jmcleod/pinvault/vault"
)

const (
	boltFile     = "secrets.db"
	sqliteFile   = "secrets.sqlite"
	settingsFile = "settings.yaml"

	minPINLength = 4
	maxPINLength = 6
)

// app is the vault wiring shared by every command invocation.
type app struct {
	vault  *vault.Vault
	prefs  *settings.File
	bolt   *bboltstore.Store
	dbPath string
	logger *slog.Logger
	close  func() error
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	scheme, err := vault.ParseVerifierScheme(verifierScheme)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a := &app{
		prefs:  settings.NewFile(filepath.Join(dataDir, settingsFile)),
		logger: logger,
	}
	var raw secretstore.Store
	switch backend {
	case "bbolt":
		a.dbPath = filepath.Join(dataDir, boltFile)
		s, err := bboltstore.NewStoreFromFile(a.dbPath, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to open secret store: %w", err)
		}
		a.bolt, raw, a.close = s, s, s.Close
	case "sqlite":
		a.dbPath = filepath.Join(dataDir, sqliteFile)
		s, err := sqlitestore.Open(ctx, a.dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open secret store: %w", err)
		}
		raw, a.close = s, s.Close
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}

	store := secretstore.WithRetry(raw, clock.WallClock, secretstore.WithRetryLogger(logger))
	a.vault = vault.New(store,
		vault.WithLogger(logger),
		vault.WithPINPolicy(vault.NumericPINPolicy(minPINLength, maxPINLength)),
		vault.WithVerifierScheme(scheme),
		vault.WithPreferences(a.prefs),
		vault.WithKeyCache(),
	)
	return a, nil
}

func (a *app) Close() error {
	a.vault.Authenticator().Lock(context.Background())
	return a.close()
}

// pinReader resolves PINs from flags, falling back to one line of stdin per PIN.
type pinReader struct {
	in *bufio.Reader
}

func newPINReader(cmd *cobra.Command) *pinReader {
	return &pinReader{in: bufio.NewReader(cmd.InOrStdin())}
}

func (r *pinReader) read(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", prompt, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// authenticate unlocks the vault with pin and explains the common failures.
func (a *app) authenticate(cmd *cobra.Command, pin string) error {
	err := a.vault.Authenticator().Authenticate(cmd.Context(), pin)
	switch {
	case errors.Is(err, vault.ErrNotConfigured):
		return fmt.Errorf("%w: run \"pinvault setup\" first", err)
	case err != nil:
		return err
	}
	return nil
}
