package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toril-digital/toril/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store statistics and sync state",
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		stats, err := core.Stats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(titleStyle.Render("Toril CMS"))
		fmt.Printf("  artículos:  %d\n", stats.TotalArticles)
		fmt.Printf("  autores:    %d\n", stats.TotalAuthors)
		fmt.Printf("  historial:  %d\n", stats.TotalArchived)

		settings, err := config.Load(flagSettingsPath)
		if err == nil && settings.Validate() == nil {
			fmt.Println("  conexión:   " + okStyle.Render("configurada"))
		} else {
			fmt.Println("  conexión:   " + warnStyle.Render("sin configurar") +
				dimStyle.Render("  (toril settings init)"))
		}

		if len(stats.RecentArticles) > 0 {
			fmt.Println()
			fmt.Println(dimStyle.Render("Últimos artículos:"))
			for _, a := range stats.RecentArticles {
				fmt.Printf("  %s %s\n", a.Date, a.Title)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
