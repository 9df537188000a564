package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/toril-digital/toril/internal/model"
)

var authorCmd = &cobra.Command{
	Use:     "author",
	GroupID: "content",
	Short:   "Manage the author roster",
}

var authorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List authors",
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		authors, err := core.ListAuthors()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, a := range authors {
			role := dimStyle.Render(a.Role)
			if a.SystemRole == model.RoleAdmin {
				role = warnStyle.Render(a.Role + " (admin)")
			}
			fmt.Printf("%s  %s  %s\n", titleStyle.Render(a.Name), role, dimStyle.Render("id="+a.ID))
		}
	},
}

var (
	flagAuthorName  string
	flagAuthorRole  string
	flagAuthorImage string
	flagAuthorAdmin bool
)

var authorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an author",
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		role := model.RoleEditor
		if flagAuthorAdmin {
			role = model.RoleAdmin
		}
		author := model.Author{
			ID:         uuid.NewString(),
			Name:       flagAuthorName,
			Role:       flagAuthorRole,
			ImageURL:   flagAuthorImage,
			SystemRole: role,
		}
		if err := core.UpsertAuthor(author, false); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s id=%s\n", okStyle.Render("Autor añadido."), author.ID)
	},
}

var authorRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove an author",
	Long: `Remove an author from the roster.

Articles keep their authorId; lookups for a removed author resolve
to a placeholder so existing content still renders.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		if err := core.RemoveAuthor(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(okStyle.Render("Autor eliminado."))
	},
}

func init() {
	authorAddCmd.Flags().StringVar(&flagAuthorName, "name", "", "display name (required)")
	authorAddCmd.Flags().StringVar(&flagAuthorRole, "role", "Redactor", "editorial role shown next to the byline")
	authorAddCmd.Flags().StringVar(&flagAuthorImage, "image", "", "portrait URL")
	authorAddCmd.Flags().BoolVar(&flagAuthorAdmin, "admin", false, "grant admin rights")
	_ = authorAddCmd.MarkFlagRequired("name")

	authorCmd.AddCommand(authorListCmd, authorAddCmd, authorRmCmd)
	rootCmd.AddCommand(authorCmd)
}
