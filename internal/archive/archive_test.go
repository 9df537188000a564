package archive

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/toril-digital/toril/internal/model"
	"github.com/toril-digital/toril/internal/store"
)

func setupManager(t *testing.T) (*store.Store, *Manager) {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Start from empty collections, not the seed.
	if err := s.ReplaceArticles(nil, true); err != nil {
		t.Fatalf("ReplaceArticles: %v", err)
	}
	if err := s.ReplaceArchive(nil, true); err != nil {
		t.Fatalf("ReplaceArchive: %v", err)
	}

	m := New(s, log.New(io.Discard, "", 0))
	return s, m
}

func chronicle(id string) model.Article {
	return model.Article{
		ID:            id,
		Title:         "Crónica de prueba",
		Summary:       "Resumen",
		Content:       "<p>Texto</p>",
		ImageURL:      "https://example.com/1.jpg",
		ContentImages: []string{"https://example.com/2.jpg"},
		Category:      model.CategoryCronicas,
		AuthorID:      "2",
		Date:          "2026-03-01T17:00:00Z",
		IsPublished:   true,

		BullfightLocation: "La Glorieta",
		BullfightCattle:   "Toros de Victorino",
		BullfightSummary:  "Tarde seria",
		BullfightResults: []model.ChronicleResult{
			{Bullfighter: "Emilio de Justo", Result: "dos orejas"},
		},
	}
}

func TestArchiveMovesArticle(t *testing.T) {
	s, m := setupManager(t)

	if err := s.SaveArticle(chronicle("10"), true); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	before := time.Now()
	if err := m.Archive("10", "1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	articles, _ := s.Articles()
	if len(articles) != 0 {
		t.Errorf("active collection should be empty, got %d", len(articles))
	}

	archive, _ := s.ArchivedArticles()
	if len(archive) != 1 {
		t.Fatalf("archive should have 1 record, got %d", len(archive))
	}
	got := archive[0]
	if got.ArchivedBy != "1" {
		t.Errorf("ArchivedBy = %q, want %q", got.ArchivedBy, "1")
	}
	at, err := time.Parse(time.RFC3339, got.ArchivedAt)
	if err != nil {
		t.Fatalf("ArchivedAt %q not RFC3339: %v", got.ArchivedAt, err)
	}
	if at.Before(before.Add(-time.Minute)) {
		t.Errorf("ArchivedAt %v too far in the past", at)
	}
}

func TestArchiveMissingIDIsNoOp(t *testing.T) {
	s, m := setupManager(t)

	if err := s.SaveArticle(chronicle("10"), true); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	if err := m.Archive("nope", "1"); err != nil {
		t.Fatalf("Archive of missing id should be a no-op, got %v", err)
	}

	articles, _ := s.Articles()
	archive, _ := s.ArchivedArticles()
	if len(articles) != 1 || len(archive) != 0 {
		t.Errorf("collections changed: %d active, %d archived", len(articles), len(archive))
	}
}

func TestArchiveStampsSystemActor(t *testing.T) {
	s, m := setupManager(t)
	if err := s.SaveArticle(chronicle("10"), true); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	if err := m.Archive("10", ""); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	archive, _ := s.ArchivedArticles()
	if archive[0].ArchivedBy != model.SystemActor {
		t.Errorf("ArchivedBy = %q, want %q", archive[0].ArchivedBy, model.SystemActor)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	s, m := setupManager(t)

	original := chronicle("10")
	if err := s.SaveArticle(original, true); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if err := m.Archive("10", "1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	ok, err := m.Restore("10")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !ok {
		t.Fatal("Restore returned false for an archived id")
	}

	archive, _ := s.ArchivedArticles()
	if len(archive) != 0 {
		t.Errorf("archive should be empty after restore, got %d", len(archive))
	}

	articles, _ := s.Articles()
	if len(articles) != 1 {
		t.Fatalf("active collection should have 1 article, got %d", len(articles))
	}
	got := articles[0]

	if got.IsPublished {
		t.Error("restored article must come back as a draft")
	}
	if got.ID != original.ID || got.Title != original.Title || got.Summary != original.Summary ||
		got.Content != original.Content || got.ImageURL != original.ImageURL ||
		got.Category != original.Category || got.AuthorID != original.AuthorID ||
		got.Date != original.Date {
		t.Errorf("restore changed article fields: %+v", got)
	}
	if len(got.BullfightResults) != 1 || got.BullfightResults[0].Result != "dos orejas" {
		t.Errorf("restore lost chronicle results: %+v", got.BullfightResults)
	}
	if got.BullfightLocation != original.BullfightLocation {
		t.Errorf("BullfightLocation = %q, want %q", got.BullfightLocation, original.BullfightLocation)
	}
}

func TestRestoreNonChronicleDefaultsEmpty(t *testing.T) {
	s, m := setupManager(t)

	plain := model.Article{
		ID:       "20",
		Title:    "Opinión",
		Category: model.CategoryOpinion,
		AuthorID: "1",
		Date:     "2026-04-01T09:00:00Z",
	}
	if err := s.SaveArticle(plain, true); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if err := m.Archive("20", "1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := m.Restore("20"); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	articles, _ := s.Articles()
	got := articles[0]
	if got.ContentImages == nil || got.BullfightResults == nil {
		t.Error("restore must emit empty sequences, not nil")
	}
	if got.BullfightLocation != "" || got.BullfightCattle != "" || got.BullfightSummary != "" {
		t.Errorf("chronicle fields should be empty strings: %+v", got)
	}
}

func TestRestoreMissingID(t *testing.T) {
	s, m := setupManager(t)

	if err := s.SaveArticle(chronicle("10"), true); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	ok, err := m.Restore("10")
	if err != nil || ok {
		t.Fatalf("Restore of non-archived id = (%v, %v), want (false, nil)", ok, err)
	}

	articles, _ := s.Articles()
	archive, _ := s.ArchivedArticles()
	if len(articles) != 1 || len(archive) != 0 {
		t.Errorf("collections mutated: %d active, %d archived", len(articles), len(archive))
	}
}

func TestIDPartitionInvariant(t *testing.T) {
	s, m := setupManager(t)

	for _, id := range []string{"1", "2", "3"} {
		if err := s.SaveArticle(chronicle(id), true); err != nil {
			t.Fatalf("SaveArticle: %v", err)
		}
	}
	if err := m.Archive("2", "1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	active, _ := s.Articles()
	archived, _ := s.ArchivedArticles()

	seen := make(map[string]int)
	for _, a := range active {
		seen[a.ID]++
	}
	for _, a := range archived {
		seen[a.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s appears %d times across active+archive", id, n)
		}
	}
}

func TestRepeatedArchiveRestoreCycles(t *testing.T) {
	s, m := setupManager(t)
	if err := s.SaveArticle(chronicle("10"), true); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := m.Archive("10", "1"); err != nil {
			t.Fatalf("cycle %d Archive: %v", i, err)
		}
		ok, err := m.Restore("10")
		if err != nil || !ok {
			t.Fatalf("cycle %d Restore = (%v, %v)", i, ok, err)
		}
	}

	active, _ := s.Articles()
	archived, _ := s.ArchivedArticles()
	if len(active) != 1 || len(archived) != 0 {
		t.Errorf("after cycles: %d active, %d archived", len(active), len(archived))
	}
}
