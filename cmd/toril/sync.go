package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:     "publish",
	GroupID: "sync",
	Short:   "Publish the current content to GitHub now",
	Long: `Serialize the local store and push it to the configured GitHub
repository, bypassing the debounce window. Retries on concurrent
edits to the remote file.`,
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		res := core.ForcePublish(context.Background())
		if !res.Success {
			fmt.Fprintln(os.Stderr, errStyle.Render(res.Message))
			os.Exit(1)
		}
		fmt.Println(okStyle.Render(res.Message))
	},
}

var verifyCmd = &cobra.Command{
	Use:     "verify",
	GroupID: "sync",
	Short:   "Check the GitHub connection without writing anything",
	Run: func(cmd *cobra.Command, args []string) {
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

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Replace local content with the published document",
	Long: `Download the published document from GitHub and replace the
local articles, authors and archive with its contents. Local
changes that were never published are lost.`,
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		if !flagPullYes {
			fmt.Fprint(os.Stderr, warnStyle.Render("Esto sobrescribirá el contenido local. ¿Continuar? [y/N] "))
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				fmt.Fprintln(os.Stderr, "Cancelado.")
				os.Exit(1)
			}
		}

		res := core.Pull(context.Background())
		if !res.Success {
			fmt.Fprintln(os.Stderr, errStyle.Render(res.Message))
			os.Exit(1)
		}
		fmt.Println(okStyle.Render(res.Message))
	},
}

var flagPullYes bool

func init() {
	pullCmd.Flags().BoolVarP(&flagPullYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(publishCmd, verifyCmd, pullCmd)
}
