package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/toril-digital/toril/internal/cms"
	"github.com/toril-digital/toril/internal/config"
)

var (
	flagDataPath     string
	flagSettingsPath string
)

// Output styles. Colors are dropped when the terminal doesn't do color.
var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func init() {
	if termenv.EnvColorProfile() == termenv.Ascii {
		okStyle = lipgloss.NewStyle()
		errStyle = lipgloss.NewStyle()
		warnStyle = lipgloss.NewStyle()
	}
}

var rootCmd = &cobra.Command{
	Use:   "toril",
	Short: "Editorial CMS core: local article store with GitHub publishing",
	Long: `toril manages a local store of articles and authors for a small
editorial team and publishes the consolidated dataset as a JSON document to
a GitHub repository, which a static site uses as its database.

Local edits are always safe: only publishing can fail, and the data stays
on disk for a later retry.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataPath, "data", defaultDataPath(),
		"path to the local store database")
	rootCmd.PersistentFlags().StringVar(&flagSettingsPath, "settings", config.DefaultPath(),
		"path to the connection settings file")

	rootCmd.AddGroup(
		&cobra.Group{ID: "content", Title: "Content commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
	)
}

func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "toril.db"
	}
	return filepath.Join(home, ".toril", "toril.db")
}

// openCore opens the CMS facade with the global flags applied.
func openCore() *cms.CMS {
	core, err := cms.New(cms.Options{
		DataPath:     flagDataPath,
		SettingsPath: flagSettingsPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return core
}
