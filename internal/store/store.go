// Package store provides the durable local store for the CMS core.
//
// Three named collections are kept as JSON documents in a single SQLite
// key/value table: active articles, authors, and the archive of soft-deleted
// articles. Reads seed the collection on first access, so callers never see
// a "not initialized" state. Every mutating call fires the change hook
// unless the caller suppresses it with skipSync, which is how multi-step
// operations (archive, restore, pull) publish exactly once.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/toril-digital/toril/internal/model"
)

// Collection names as persisted in the collections table.
const (
	keyArticles = "articles"
	keyAuthors  = "authors"
	keyArchive  = "archive"
)

// Store is the keyed local store. All operations are synchronous; a single
// read-modify-write per call, no torn reads.
type Store struct {
	conn *sql.DB
	path string

	// changeHook is invoked after every mutation not marked skipSync.
	// Typically wired to the sync scheduler's Schedule.
	changeHook func()
}

// Open creates or opens the store database at the specified path.
// Use ":memory:" for an ephemeral store (tests).
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// One connection: collections are read-modify-write documents, and a
	// second connection to a :memory: database would see a different schema.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS collections (
		name       TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// SetChangeHook registers fn to run after every non-suppressed mutation.
// Pass nil to disable. Not safe to call concurrently with mutations.
func (s *Store) SetChangeHook(fn func()) {
	s.changeHook = fn
}

func (s *Store) notify(skipSync bool) {
	if skipSync || s.changeHook == nil {
		return
	}
	s.changeHook()
}

// readCollection loads the named collection into v.
// Returns false if the collection has never been written.
func (s *Store) readCollection(name string, v any) (bool, error) {
	var data string
	err := s.conn.QueryRow("SELECT data FROM collections WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("failed to decode collection %s: %w", name, err)
	}
	return true, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func writeCollectionTo(db execer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", name, err)
	}
	_, err = db.Exec(
		"INSERT INTO collections (name, data, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		name, string(data), model.Timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to write collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeCollection(name string, v any) error {
	return writeCollectionTo(s.conn, name, v)
}

// Authors returns the author collection, seeding the bootstrap roster and
// persisting it on first-ever access.
func (s *Store) Authors() ([]model.Author, error) {
	authors := []model.Author{}
	ok, err := s.readCollection(keyAuthors, &authors)
	if err != nil {
		return nil, err
	}
	if !ok {
		authors = seedAuthors()
		if err := s.writeCollection(keyAuthors, authors); err != nil {
			return nil, err
		}
	}
	return authors, nil
}

// SaveAuthor upserts an author by id. Existing records are replaced in
// place; new authors are appended. Fires the change hook unless skipSync.
func (s *Store) SaveAuthor(author model.Author, skipSync bool) error {
	author.ID = model.NormalizeID(author.ID)
	if err := author.Validate(); err != nil {
		return fmt.Errorf("invalid author: %w", err)
	}

	authors, err := s.Authors()
	if err != nil {
		return err
	}

	replaced := false
	for i := range authors {
		if model.SameID(authors[i].ID, author.ID) {
			authors[i] = author
			replaced = true
			break
		}
	}
	if !replaced {
		authors = append(authors, author)
	}

	if err := s.writeCollection(keyAuthors, authors); err != nil {
		return err
	}
	s.notify(skipSync)
	return nil
}

// DeleteAuthor removes an author by id. Articles referencing the author are
// left untouched; consumers fall back to a display placeholder.
func (s *Store) DeleteAuthor(id string) error {
	authors, err := s.Authors()
	if err != nil {
		return err
	}

	kept := authors[:0]
	for _, a := range authors {
		if !model.SameID(a.ID, id) {
			kept = append(kept, a)
		}
	}

	if err := s.writeCollection(keyAuthors, kept); err != nil {
		return err
	}
	s.notify(false)
	return nil
}

// Articles returns the active-article collection, seeding the sample data
// on first-ever access. Most recently created articles come first.
func (s *Store) Articles() ([]model.Article, error) {
	articles := []model.Article{}
	ok, err := s.readCollection(keyArticles, &articles)
	if err != nil {
		return nil, err
	}
	if !ok {
		articles = seedArticles()
		if err := s.writeCollection(keyArticles, articles); err != nil {
			return nil, err
		}
	}
	return articles, nil
}

// SaveArticle upserts an article by id. Existing records are replaced in
// place; new articles are PREPENDED so the collection stays newest-first
// without a separate sort. Fires the change hook unless skipSync.
func (s *Store) SaveArticle(article model.Article, skipSync bool) error {
	article.ID = model.NormalizeID(article.ID)
	article.AuthorID = model.NormalizeID(article.AuthorID)
	if err := article.Validate(); err != nil {
		return fmt.Errorf("invalid article: %w", err)
	}
	if article.ContentImages == nil {
		article.ContentImages = []string{}
	}

	articles, err := s.Articles()
	if err != nil {
		return err
	}

	replaced := false
	for i := range articles {
		if model.SameID(articles[i].ID, article.ID) {
			articles[i] = article
			replaced = true
			break
		}
	}
	if !replaced {
		articles = append([]model.Article{article}, articles...)
	}

	if err := s.writeCollection(keyArticles, articles); err != nil {
		return err
	}
	s.notify(skipSync)
	return nil
}

// ArticleByID looks up an active article. The second return value reports
// whether it was found.
func (s *Store) ArticleByID(id string) (model.Article, bool, error) {
	articles, err := s.Articles()
	if err != nil {
		return model.Article{}, false, err
	}
	for _, a := range articles {
		if model.SameID(a.ID, id) {
			return a, true, nil
		}
	}
	return model.Article{}, false, nil
}

// ArchivedArticles returns the archive, newest-first. A store that has never
// archived anything yields an empty (persisted) collection.
func (s *Store) ArchivedArticles() ([]model.ArchivedArticle, error) {
	archive := []model.ArchivedArticle{}
	ok, err := s.readCollection(keyArchive, &archive)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.writeCollection(keyArchive, archive); err != nil {
			return nil, err
		}
	}
	return archive, nil
}

// ReplaceArticles overwrites the active collection wholesale.
// Used by the archive manager and by pull.
func (s *Store) ReplaceArticles(articles []model.Article, skipSync bool) error {
	if articles == nil {
		articles = []model.Article{}
	}
	if err := s.writeCollection(keyArticles, articles); err != nil {
		return err
	}
	s.notify(skipSync)
	return nil
}

// ReplaceAuthors overwrites the author collection wholesale.
func (s *Store) ReplaceAuthors(authors []model.Author, skipSync bool) error {
	if authors == nil {
		authors = []model.Author{}
	}
	if err := s.writeCollection(keyAuthors, authors); err != nil {
		return err
	}
	s.notify(skipSync)
	return nil
}

// ReplaceArticlesAndArchive overwrites the active collection and the archive
// together in one database transaction. Archive and restore move an id
// between the two collections; writing the pair atomically means a failure
// can never leave the id in both (or in neither). Fires the change hook once
// unless skipSync.
func (s *Store) ReplaceArticlesAndArchive(articles []model.Article, archive []model.ArchivedArticle, skipSync bool) error {
	if articles == nil {
		articles = []model.Article{}
	}
	if archive == nil {
		archive = []model.ArchivedArticle{}
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := writeCollectionTo(tx, keyArticles, articles); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := writeCollectionTo(tx, keyArchive, archive); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.notify(skipSync)
	return nil
}

// ReplaceArchive overwrites the archive collection wholesale.
func (s *Store) ReplaceArchive(archive []model.ArchivedArticle, skipSync bool) error {
	if archive == nil {
		archive = []model.ArchivedArticle{}
	}
	if err := s.writeCollection(keyArchive, archive); err != nil {
		return err
	}
	s.notify(skipSync)
	return nil
}
