package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/toril-digital/toril/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "sync",
	Short:   "Configure the GitHub connection",
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively configure and verify the connection",
	Run: func(cmd *cobra.Command, args []string) {
		current, err := config.Load(flagSettingsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if term.IsTerminal(int(os.Stdin.Fd())) {
			err = runSettingsForm(current)
		} else {
			err = runSettingsPlain(current)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := config.Save(flagSettingsPath, current); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(okStyle.Render("Configuración guardada.") + " " + dimStyle.Render(flagSettingsPath))

		core := openCore()
		defer core.Close()
		res := core.VerifyConnection(context.Background())
		if !res.Success {
			fmt.Fprintln(os.Stderr, errStyle.Render(res.Message))
			os.Exit(1)
		}
		fmt.Println(okStyle.Render(res.Message))
	},
}

// runSettingsForm edits s in place through an interactive form.
func runSettingsForm(s *config.Settings) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Token de GitHub").
				Description("Personal access token con permiso de escritura (repo)").
				EchoMode(huh.EchoModePassword).
				Value(&s.Token),
			huh.NewInput().
				Title("Propietario").
				Description("Usuario u organización del repositorio").
				Value(&s.RepoOwner),
			huh.NewInput().
				Title("Repositorio").
				Value(&s.RepoName),
			huh.NewInput().
				Title("Ruta del archivo").
				Description("Ruta del JSON dentro del repositorio").
				Placeholder(config.DefaultFilePath).
				Value(&s.FilePath),
			huh.NewInput().
				Title("Rama").
				Placeholder(config.DefaultBranch).
				Value(&s.Branch),
		),
	)
	return form.Run()
}

// runSettingsPlain reads the fields line by line when stdin is not a TTY,
// still hiding the token when the terminal allows it.
func runSettingsPlain(s *config.Settings) error {
	fmt.Fprint(os.Stderr, "Token de GitHub: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		s.Token = strings.TrimSpace(string(raw))
	} else {
		if _, err := fmt.Scanln(&s.Token); err != nil {
			return err
		}
	}

	prompt := func(label string, dst *string) {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		fmt.Scanln(dst)
	}
	prompt("Propietario", &s.RepoOwner)
	prompt("Repositorio", &s.RepoName)
	prompt("Ruta del archivo", &s.FilePath)
	prompt("Rama", &s.Branch)
	return nil
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current connection settings",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := config.Load(flagSettingsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		token := dimStyle.Render("(no configurado)")
		if s.Token != "" {
			token = "****" + tail(s.Token, 4)
		}
		fmt.Printf("%s\n", titleStyle.Render("Conexión GitHub"))
		fmt.Printf("  token:      %s\n", token)
		fmt.Printf("  repositorio: %s/%s\n", s.RepoOwner, s.RepoName)
		fmt.Printf("  archivo:    %s\n", s.FilePath)
		fmt.Printf("  rama:       %s\n", s.Branch)
		if err := s.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render(err.Error()))
		}
	},
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func init() {
	settingsCmd.AddCommand(settingsInitCmd, settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}
