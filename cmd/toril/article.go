package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/toril-digital/toril/internal/model"
)

var articleCmd = &cobra.Command{
	Use:     "article",
	GroupID: "content",
	Short:   "Manage articles in the local store",
}

var articleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active articles, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		articles, err := core.ListActive()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(articles) == 0 {
			fmt.Println(dimStyle.Render("No hay artículos."))
			return
		}
		for _, a := range articles {
			state := warnStyle.Render("borrador")
			if a.IsPublished {
				state = okStyle.Render("publicado")
			}
			author, err := core.AuthorByID(a.AuthorID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s  %s  %s\n", titleStyle.Render(a.Title), state,
				dimStyle.Render(fmt.Sprintf("[%s] %s · %s · id=%s", a.Category, author.Name, a.Date, a.ID)))
		}
	},
}

var (
	flagArticleTitle    string
	flagArticleSummary  string
	flagArticleContent  string
	flagArticleCategory string
	flagArticleAuthor   string
	flagArticleImage    string
	flagArticleDate     string
	flagArticlePublish  bool
	flagArticleSkipSync bool
)

var articleNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an article",
	Long: `Create an article in the local store.

The --date flag accepts RFC 3339 timestamps or natural language
("yesterday at 6pm", "last friday"). Omitted, it defaults to now.`,
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		date, err := parseDate(flagArticleDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		article := model.Article{
			ID:            uuid.NewString(),
			Title:         flagArticleTitle,
			Summary:       flagArticleSummary,
			Content:       flagArticleContent,
			ImageURL:      flagArticleImage,
			ContentImages: []string{},
			Category:      model.Category(flagArticleCategory),
			AuthorID:      flagArticleAuthor,
			Date:          model.Timestamp(date),
			IsPublished:   flagArticlePublish,
		}
		if err := core.UpsertArticle(article, flagArticleSkipSync); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s id=%s\n", okStyle.Render("Artículo creado."), article.ID)
	},
}

var articleArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Move an article to the archive (soft delete)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		actor, _ := cmd.Flags().GetString("actor")
		if err := core.ArchiveArticle(args[0], actor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(okStyle.Render("Artículo archivado."))
	},
}

var articleRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore an archived article as a draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		ok, err := core.RestoreArticle(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, errStyle.Render("No existe ese artículo en el historial."))
			os.Exit(1)
		}
		fmt.Println(okStyle.Render("Artículo restaurado como borrador."))
	},
}

var articleArchivedCmd = &cobra.Command{
	Use:   "archived",
	Short: "List archived articles",
	Run: func(cmd *cobra.Command, args []string) {
		core := openCore()
		defer core.Close()

		archived, err := core.ListArchived()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(archived) == 0 {
			fmt.Println(dimStyle.Render("El historial está vacío."))
			return
		}
		for _, a := range archived {
			fmt.Printf("%s  %s\n", titleStyle.Render(a.Title),
				dimStyle.Render(fmt.Sprintf("archivado %s por %s · id=%s", a.ArchivedAt, a.ArchivedBy, a.ID)))
		}
	},
}

// parseDate accepts RFC 3339 or natural language, defaulting to now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("could not parse date %q", s)
	}
	return r.Time, nil
}

func init() {
	articleNewCmd.Flags().StringVar(&flagArticleTitle, "title", "", "article title (required)")
	articleNewCmd.Flags().StringVar(&flagArticleSummary, "summary", "", "short summary")
	articleNewCmd.Flags().StringVar(&flagArticleContent, "content", "", "article body (rich text blob)")
	articleNewCmd.Flags().StringVar(&flagArticleCategory, "category", string(model.CategoryActualidad),
		fmt.Sprintf("category %v", model.Categories()))
	articleNewCmd.Flags().StringVar(&flagArticleAuthor, "author", "", "author id (required)")
	articleNewCmd.Flags().StringVar(&flagArticleImage, "image", "", "cover image URL")
	articleNewCmd.Flags().StringVar(&flagArticleDate, "date", "", "publication date (RFC 3339 or natural language)")
	articleNewCmd.Flags().BoolVar(&flagArticlePublish, "publish", false, "mark as published")
	articleNewCmd.Flags().BoolVar(&flagArticleSkipSync, "skip-sync", false, "do not schedule a publish")
	_ = articleNewCmd.MarkFlagRequired("title")
	_ = articleNewCmd.MarkFlagRequired("author")

	articleArchiveCmd.Flags().String("actor", "", "id of the user archiving (default: system)")

	articleCmd.AddCommand(articleListCmd, articleNewCmd, articleArchiveCmd, articleRestoreCmd, articleArchivedCmd)
	rootCmd.AddCommand(articleCmd)
}
