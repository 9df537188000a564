// Package config loads and persists the remote connection settings.
//
// Settings live in a YAML file managed through viper, with TORIL_* env
// variables taking precedence so a CI job can publish without a settings
// file on disk. The token is stored opaquely; acquiring and scoping it is
// the operator's concern.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Defaults applied when a field is unset.
const (
	DefaultFilePath = "public/data/db.json"
	DefaultBranch   = "main"
)

// ErrIncomplete is returned by Validate when required connection parameters
// are missing. It is a configuration error: surfaced immediately, never
// retried.
var ErrIncomplete = errors.New("incomplete connection settings")

// Settings are the remote connection parameters for publishing.
type Settings struct {
	Token     string `mapstructure:"token"`
	RepoOwner string `mapstructure:"repo_owner"`
	RepoName  string `mapstructure:"repo_name"`
	FilePath  string `mapstructure:"file_path"`
	Branch    string `mapstructure:"branch"`
}

// Validate checks that every parameter needed for a network call is present
// and that the target path is a JSON document.
func (s *Settings) Validate() error {
	var missing []string
	if s.Token == "" {
		missing = append(missing, "token")
	}
	if s.RepoOwner == "" {
		missing = append(missing, "repo_owner")
	}
	if s.RepoName == "" {
		missing = append(missing, "repo_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	if !strings.HasSuffix(s.FilePath, ".json") {
		return fmt.Errorf("file_path must end in .json (got %q)", s.FilePath)
	}
	return nil
}

// Normalize trims every field, strips a leading slash from the file path
// and fills in defaults. Applied on load and before save so stored settings
// are always canonical.
func (s *Settings) Normalize() {
	s.Token = strings.TrimSpace(s.Token)
	s.RepoOwner = strings.TrimSpace(s.RepoOwner)
	s.RepoName = strings.TrimSpace(s.RepoName)
	s.FilePath = strings.TrimPrefix(strings.TrimSpace(s.FilePath), "/")
	s.Branch = strings.TrimSpace(s.Branch)

	if s.FilePath == "" {
		s.FilePath = DefaultFilePath
	}
	if s.Branch == "" {
		s.Branch = DefaultBranch
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TORIL")
	v.AutomaticEnv()
	_ = v.BindEnv("token")
	_ = v.BindEnv("repo_owner")
	_ = v.BindEnv("repo_name")
	_ = v.BindEnv("file_path")
	_ = v.BindEnv("branch")

	v.SetDefault("file_path", DefaultFilePath)
	v.SetDefault("branch", DefaultBranch)
	return v
}

// Load reads settings from path. A missing file is not an error: defaults
// and environment variables still apply, and Validate reports what is
// actually missing when a command needs the network.
func Load(path string) (*Settings, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound *fs.PathError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.Normalize()
	return &s, nil
}

// Save normalizes and writes settings to path, creating parent directories
// as needed. The file is written with owner-only permissions because it
// holds the token.
func Save(path string, s *Settings) error {
	s.Normalize()
	if !strings.HasSuffix(s.FilePath, ".json") {
		return fmt.Errorf("file_path must end in .json (got %q)", s.FilePath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	v := newViper(path)
	v.Set("token", s.Token)
	v.Set("repo_owner", s.RepoOwner)
	v.Set("repo_name", s.RepoName)
	v.Set("file_path", s.FilePath)
	v.Set("branch", s.Branch)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to restrict settings permissions: %w", err)
	}
	return nil
}

// DefaultPath returns the settings location under the user config dir,
// falling back to the working directory when none is resolvable.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "toril.yaml"
	}
	return filepath.Join(dir, "toril", "settings.yaml")
}
