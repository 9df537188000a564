package cms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/toril-digital/toril/internal/config"
	"github.com/toril-digital/toril/internal/model"
)

// fakeRemote is a minimal GitHub stand-in: one document, sha bumped per
// write, conflict on stale sha.
type fakeRemote struct {
	mu      sync.Mutex
	exists  bool
	sha     int
	content []byte
	puts    int
	failAll bool
}

func (f *fakeRemote) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeRemote) document(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(f.content, &doc); err != nil {
		t.Fatalf("remote document invalid: %v", err)
	}
	return doc
}

func (f *fakeRemote) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if !strings.Contains(r.URL.Path, "/contents/") {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"permissions": map[string]bool{"push": true},
			})
			return
		}

		switch r.Method {
		case http.MethodGet:
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"sha":     "v" + string(rune('0'+f.sha)),
				"content": base64.StdEncoding.EncodeToString(f.content),
			})
		case http.MethodPut:
			f.puts++
			if f.failAll {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var body struct {
				Content string `json:"content"`
			}
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &body)
			content, _ := base64.StdEncoding.DecodeString(body.Content)
			f.content = content
			f.exists = true
			f.sha++
			w.WriteHeader(http.StatusCreated)
		}
	})
}

// setupCMS wires a CMS against a fake remote with a short quiet period and
// empty (unseeded) collections.
func setupCMS(t *testing.T, quiet time.Duration) (*CMS, *fakeRemote) {
	t.Helper()

	remote := &fakeRemote{}
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")
	err := config.Save(settingsPath, &config.Settings{
		Token:     "test-token",
		RepoOwner: "prensa",
		RepoName:  "web",
		FilePath:  "public/data/db.json",
		Branch:    "main",
	})
	if err != nil {
		t.Fatalf("Save settings: %v", err)
	}

	c, err := New(Options{
		DataPath:     ":memory:",
		SettingsPath: settingsPath,
		QuietPeriod:  quiet,
		Logger:       log.New(io.Discard, "", 0),
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	for _, clear := range []error{
		c.Store().ReplaceArticles(nil, true),
		c.Store().ReplaceAuthors(nil, true),
		c.Store().ReplaceArchive(nil, true),
	} {
		if clear != nil {
			t.Fatalf("clearing collections: %v", clear)
		}
	}
	return c, remote
}

// TestEditorialScenario walks the full author/article/archive/restore flow.
func TestEditorialScenario(t *testing.T) {
	c, _ := setupCMS(t, time.Hour)

	author := model.Author{ID: "1", Name: "A", Role: "R", SystemRole: model.RoleAdmin}
	if err := c.UpsertAuthor(author, true); err != nil {
		t.Fatalf("UpsertAuthor: %v", err)
	}
	authors, err := c.ListAuthors()
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if len(authors) != 1 || authors[0].Name != "A" {
		t.Fatalf("authors = %+v", authors)
	}

	article := model.Article{
		ID: "10", Title: "T", Category: model.CategoryActualidad, AuthorID: "1",
		Date: "2026-06-01T10:00:00Z", IsPublished: true,
	}
	if err := c.UpsertArticle(article, true); err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}

	if err := c.ArchiveArticle("10", "1"); err != nil {
		t.Fatalf("ArchiveArticle: %v", err)
	}
	active, _ := c.ListActive()
	if len(active) != 0 {
		t.Fatalf("active = %+v, want empty", active)
	}
	archived, _ := c.ListArchived()
	if len(archived) != 1 || archived[0].ArchivedBy != "1" || archived[0].ArchivedAt == "" {
		t.Fatalf("archived = %+v", archived)
	}

	ok, err := c.RestoreArticle("10")
	if err != nil || !ok {
		t.Fatalf("RestoreArticle = (%v, %v)", ok, err)
	}
	active, _ = c.ListActive()
	if len(active) != 1 || active[0].IsPublished {
		t.Fatalf("restored article must be a draft: %+v", active)
	}
	archived, _ = c.ListArchived()
	if len(archived) != 0 {
		t.Fatalf("archive should be empty again: %+v", archived)
	}
}

func TestDebounceCoalescing(t *testing.T) {
	c, remote := setupCMS(t, 80*time.Millisecond)

	if err := c.UpsertAuthor(model.Author{ID: "1", Name: "A", SystemRole: model.RoleAdmin}, true); err != nil {
		t.Fatalf("UpsertAuthor: %v", err)
	}

	// Five saves inside the quiet period: one publish, reflecting the last.
	for i := 1; i <= 5; i++ {
		article := model.Article{
			ID: "10", Title: "Borrador " + string(rune('0'+i)),
			Category: model.CategoryActualidad, AuthorID: "1",
		}
		if err := c.UpsertArticle(article, false); err != nil {
			t.Fatalf("UpsertArticle: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for remote.putCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Allow a straggler publish to surface if coalescing is broken.
	time.Sleep(200 * time.Millisecond)

	if got := remote.putCount(); got != 1 {
		t.Fatalf("publishes = %d, want exactly 1", got)
	}

	doc := remote.document(t)
	var articles []model.Article
	_ = json.Unmarshal(doc["articles"], &articles)
	if len(articles) != 1 || articles[0].Title != "Borrador 5" {
		t.Errorf("published payload is not the final state: %+v", articles)
	}
}

func TestForcePublishCancelsDebounce(t *testing.T) {
	c, remote := setupCMS(t, 60*time.Millisecond)

	article := model.Article{ID: "10", Title: "T", Category: model.CategoryOpinion, AuthorID: "1"}
	if err := c.UpsertArticle(article, false); err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}

	res := c.ForcePublish(context.Background())
	if !res.Success {
		t.Fatalf("ForcePublish: %s", res.Message)
	}

	// The debounced publish must not fire on top of the explicit one.
	time.Sleep(200 * time.Millisecond)
	if got := remote.putCount(); got != 1 {
		t.Errorf("publishes = %d, want 1 (debounce cancelled)", got)
	}
}

func TestPendingFlag(t *testing.T) {
	c, _ := setupCMS(t, time.Hour)

	if c.Pending() {
		t.Fatal("fresh CMS should have no pending changes")
	}

	if err := c.UpsertArticle(model.Article{ID: "1", Title: "T", Category: model.CategoryOpinion, AuthorID: "1"}, false); err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}
	if !c.Pending() {
		t.Fatal("mutation should set the pending flag")
	}

	if res := c.ForcePublish(context.Background()); !res.Success {
		t.Fatalf("ForcePublish: %s", res.Message)
	}
	if c.Pending() {
		t.Error("successful publish should clear the pending flag")
	}
}

func TestPendingSurvivesFailedPublish(t *testing.T) {
	c, remote := setupCMS(t, time.Hour)
	remote.failAll = true

	if err := c.UpsertArticle(model.Article{ID: "1", Title: "T", Category: model.CategoryOpinion, AuthorID: "1"}, false); err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}

	res := c.ForcePublish(context.Background())
	if res.Success {
		t.Fatal("publish should fail against a broken remote")
	}
	if !c.Pending() {
		t.Error("failed publish must leave the pending flag set")
	}

	// Local state remains authoritative and visible.
	active, err := c.ListActive()
	if err != nil || len(active) != 1 {
		t.Errorf("local state lost after failed publish: %v, %v", active, err)
	}
}

func TestEventsEmitted(t *testing.T) {
	var mu sync.Mutex
	var got []EventType

	remote := &fakeRemote{}
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")
	if err := config.Save(settingsPath, &config.Settings{
		Token: "t", RepoOwner: "o", RepoName: "r", FilePath: "db.json", Branch: "main",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c, err := New(Options{
		DataPath:     ":memory:",
		SettingsPath: settingsPath,
		QuietPeriod:  time.Hour,
		Logger:       log.New(io.Discard, "", 0),
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
		Events: func(e Event) {
			mu.Lock()
			got = append(got, e.Type)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := c.UpsertArticle(model.Article{ID: "1", Title: "T", Category: model.CategoryOpinion, AuthorID: "1"}, false); err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}
	_ = c.ForcePublish(context.Background())

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventChange, EventPublishStarted, EventPublishFinished}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAuthorByIDPlaceholder(t *testing.T) {
	c, _ := setupCMS(t, time.Hour)

	author, err := c.AuthorByID("ghost")
	if err != nil {
		t.Fatalf("AuthorByID: %v", err)
	}
	if author.Name == "" || author.ID != "ghost" {
		t.Errorf("placeholder = %+v", author)
	}
}

func TestStats(t *testing.T) {
	c, _ := setupCMS(t, time.Hour)

	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		article := model.Article{ID: id, Title: "T" + id, Category: model.CategoryOpinion, AuthorID: "1"}
		if err := c.UpsertArticle(article, true); err != nil {
			t.Fatalf("UpsertArticle: %v", err)
		}
	}
	if err := c.ArchiveArticle("7", "1"); err != nil {
		t.Fatalf("ArchiveArticle: %v", err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalArticles != 6 || stats.TotalArchived != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.RecentArticles) != 5 {
		t.Errorf("recent = %d articles, want 5", len(stats.RecentArticles))
	}
	if stats.RecentArticles[0].ID != "6" {
		t.Errorf("recent[0] = %+v, want the newest active article", stats.RecentArticles[0])
	}
}
