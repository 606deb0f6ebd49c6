package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	appName      = "mangapdf"
	DefaultLabel = "Default"
)

var ErrNoConfig = errors.New("no config selected")

// ConfigRoot is the per-user directory that holds every profile.
func ConfigRoot() string {
	// Windows
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, appName)
	}

	// Linux/macOS XDG
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// Store is a directory of labeled YAML profiles plus a file naming the
// active one.
type Store struct {
	Root string
}

func DefaultStore() *Store {
	return &Store{Root: ConfigRoot()}
}

func (s *Store) ConfigsDir() string {
	return filepath.Join(s.Root, "configs")
}

func (s *Store) currentFile() string {
	return filepath.Join(s.Root, "current_config")
}

func (s *Store) Path(label string) string {
	return filepath.Join(s.ConfigsDir(), label+".yaml")
}

func (s *Store) ensureDirs() error {
	return os.MkdirAll(s.ConfigsDir(), 0755)
}

func (s *Store) CurrentLabel() (string, error) {
	b, err := os.ReadFile(s.currentFile())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", err
	}

	label := strings.TrimSpace(string(b))
	if label == "" {
		return "", ErrNoConfig
	}
	return label, nil
}

func (s *Store) ActivePath() (string, error) {
	label, err := s.CurrentLabel()
	if err != nil {
		return "", err
	}

	path := s.Path(label)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("active config %q: %w", label, err)
	}
	return path, nil
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

func (s *Store) List() ([]ConfigInfo, error) {
	entries, err := os.ReadDir(s.ConfigsDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	active, _ := s.CurrentLabel()
	var out []ConfigInfo

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		label := strings.TrimSuffix(name, ".yaml")
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(s.ConfigsDir(), name),
			Active: label == active,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *Store) Switch(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if _, err := os.Stat(s.Path(label)); err != nil {
		return fmt.Errorf("config %q does not exist", label)
	}
	if err := s.ensureDirs(); err != nil {
		return err
	}

	return os.WriteFile(s.currentFile(), []byte(label), 0644)
}

// Init writes the Default profile and makes it active. An existing Default
// profile is kept and os.ErrExist returned alongside its path.
func (s *Store) Init() (string, error) {
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.Path(DefaultLabel)
	if _, err := os.Stat(path); err == nil {
		_ = os.WriteFile(s.currentFile(), []byte(DefaultLabel), 0644)
		return path, os.ErrExist
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, os.WriteFile(s.currentFile(), []byte(DefaultLabel), 0644)
}

// Reset overwrites the active profile with default values.
func (s *Store) Reset() (string, error) {
	path, err := s.ActivePath()
	if err != nil {
		return "", err
	}
	return path, SaveYAML(DefaultConfig(), path)
}
