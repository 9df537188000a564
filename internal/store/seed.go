package store

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toril-digital/toril/internal/model"
)

//go:embed seed.yaml
var seedData []byte

// seedFile mirrors seed.yaml. Kept separate from the model types so the
// model carries only wire (JSON) tags.
type seedFile struct {
	Authors []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		Role       string `yaml:"role"`
		ImageURL   string `yaml:"imageUrl"`
		SystemRole string `yaml:"systemRole"`
	} `yaml:"authors"`
	Articles []struct {
		ID                string `yaml:"id"`
		Title             string `yaml:"title"`
		Summary           string `yaml:"summary"`
		Content           string `yaml:"content"`
		ImageURL          string `yaml:"imageUrl"`
		Category          string `yaml:"category"`
		AuthorID          string `yaml:"authorId"`
		IsPublished       bool   `yaml:"isPublished"`
		BullfightLocation string `yaml:"bullfightLocation"`
		BullfightCattle   string `yaml:"bullfightCattle"`
		BullfightSummary  string `yaml:"bullfightSummary"`
		BullfightResults  []struct {
			Bullfighter string `yaml:"bullfighter"`
			Result      string `yaml:"result"`
		} `yaml:"bullfightResults"`
	} `yaml:"articles"`
}

func loadSeed() seedFile {
	var f seedFile
	if err := yaml.Unmarshal(seedData, &f); err != nil {
		// The seed is compiled in; failing to parse it is a build defect.
		panic(fmt.Sprintf("store: invalid embedded seed data: %v", err))
	}
	return f
}

func seedAuthors() []model.Author {
	f := loadSeed()
	authors := make([]model.Author, 0, len(f.Authors))
	for _, a := range f.Authors {
		authors = append(authors, model.Author{
			ID:         model.NormalizeID(a.ID),
			Name:       a.Name,
			Role:       a.Role,
			ImageURL:   a.ImageURL,
			SystemRole: model.SystemRole(a.SystemRole),
		})
	}
	return authors
}

func seedArticles() []model.Article {
	f := loadSeed()
	articles := make([]model.Article, 0, len(f.Articles))
	for _, a := range f.Articles {
		article := model.Article{
			ID:            model.NormalizeID(a.ID),
			Title:         a.Title,
			Summary:       a.Summary,
			Content:       a.Content,
			ImageURL:      a.ImageURL,
			ContentImages: []string{},
			Category:      model.Category(a.Category),
			AuthorID:      model.NormalizeID(a.AuthorID),
			Date:          model.Timestamp(time.Now()),
			IsPublished:   a.IsPublished,

			BullfightLocation: a.BullfightLocation,
			BullfightCattle:   a.BullfightCattle,
			BullfightSummary:  a.BullfightSummary,
		}
		for _, r := range a.BullfightResults {
			article.BullfightResults = append(article.BullfightResults, model.ChronicleResult{
				Bullfighter: r.Bullfighter,
				Result:      r.Result,
			})
		}
		articles = append(articles, article)
	}
	return articles
}
