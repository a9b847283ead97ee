// Package settings holds the user preferences the vault reads but does not own:
// panic lock enablement, biometric unlock and auto-lock.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// AutoLockChoices are the idle periods, in minutes, offered to users.
var AutoLockChoices = []int{1, 5, 15, 30}

// ErrInvalidPreferences is returned when preferences fail validation.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Preferences are the security toggles stored alongside the app's other settings.
type Preferences struct {
	PanicLockEnabled  bool    `yaml:"panic_lock_enabled"`
	PanicSensitivity  float64 `yaml:"panic_sensitivity"`
	RequireBiometrics bool    `yaml:"require_biometrics"`
	AutoLockEnabled   bool    `yaml:"auto_lock_enabled"`
	AutoLockMinutes   int     `yaml:"auto_lock_minutes"`
}

// Defaults returns the preferences of a fresh install.
func Defaults() Preferences {
	return Preferences{
		PanicLockEnabled:  false,
		PanicSensitivity:  2.5,
		RequireBiometrics: false,
		AutoLockEnabled:   false,
		AutoLockMinutes:   5,
	}
}

// Validate checks that the preferences hold values the UI could have produced.
func (p Preferences) Validate() error {
	if !slices.Contains(AutoLockChoices, p.AutoLockMinutes) {
		return fmt.Errorf("%w: auto-lock minutes must be one of %v, got %d", ErrInvalidPreferences, AutoLockChoices, p.AutoLockMinutes)
	}
	if p.PanicSensitivity <= 0 {
		return fmt.Errorf("%w: panic sensitivity must be positive", ErrInvalidPreferences)
	}
	return nil
}

// AutoLockAfter returns the idle period after which the vault locks, or zero
// when auto-lock is disabled.
func (p Preferences) AutoLockAfter() time.Duration {
	if !p.AutoLockEnabled {
		return 0
	}
	return time.Duration(p.AutoLockMinutes) * time.Minute
}

// Store loads and saves preferences.
type Store interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// Memory is an in-memory Store.
type Memory struct {
	mu    sync.RWMutex
	prefs Preferences
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Memory store seeded with p.
func NewMemory(p Preferences) *Memory {
	return &Memory{prefs: p}
}

func (m *Memory) Load(ctx context.Context) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefs, nil
}

func (m *Memory) Save(ctx context.Context, p Preferences) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = p
	return nil
}

// File is a Store persisted as YAML. A missing file yields Defaults.
type File struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*File)(nil)

// NewFile returns a File store at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the location of the preferences file.
func (f *File) Path() string {
	return f.path
}

func (f *File) Load(ctx context.Context) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	p := Defaults()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("reading preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("parsing preferences: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

func (f *File) Save(ctx context.Context, p Preferences) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing preferences: %w", err)
	}
	return nil
}
