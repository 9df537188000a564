// Package archive implements soft deletion for articles: moving an active
// article into the archive and restoring it back.
//
// Both operations rewrite the active collection and the archive together in
// a single store transaction, so an id can never end up in both collections
// and each operation sends exactly one change notification.
package archive

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/toril-digital/toril/internal/model"
	"github.com/toril-digital/toril/internal/store"
)

// Manager moves articles between the active collection and the archive.
type Manager struct {
	store  *store.Store
	logger *log.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Manager over the given store.
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[archive] ", log.LstdFlags)
	}
	return &Manager{store: st, logger: logger, now: time.Now}
}

// Archive removes the article from the active collection and inserts it at
// the head of the archive, stamped with the archival time and the acting
// user. Archiving an id that is not active is a silent no-op, so repeated
// deletes from a stale view are harmless.
//
// An empty actorID records the system sentinel.
func (m *Manager) Archive(id, actorID string) error {
	articles, err := m.store.Articles()
	if err != nil {
		return err
	}

	var target *model.Article
	for i := range articles {
		if model.SameID(articles[i].ID, id) {
			target = &articles[i]
			break
		}
	}
	if target == nil {
		m.logger.Printf("Archive: article %s not active, nothing to do", id)
		return nil
	}

	if actorID == "" {
		actorID = model.SystemActor
	}

	archived := model.ArchivedArticle{
		Article:    *target,
		ArchivedAt: model.Timestamp(m.now()),
		ArchivedBy: model.NormalizeID(actorID),
	}

	archive, err := m.store.ArchivedArticles()
	if err != nil {
		return err
	}
	archive = append([]model.ArchivedArticle{archived}, archive...)

	kept := make([]model.Article, 0, len(articles)-1)
	for _, a := range articles {
		if !model.SameID(a.ID, id) {
			kept = append(kept, a)
		}
	}
	// One transactional write moves the id between the collections, so a
	// failure cannot strand it in both. It also carries the sync trigger.
	if err := m.store.ReplaceArticlesAndArchive(kept, archive, false); err != nil {
		return fmt.Errorf("failed to archive article: %w", err)
	}

	m.logger.Printf("Archived article %s (by %s)", target.ID, archived.ArchivedBy)
	return nil
}

// Restore moves an archived article back into the active collection.
// Returns false if the id is not in the archive; the caller decides how to
// message that, it is an expected outcome rather than an error.
//
// The restored article is rebuilt field by field so archive-only metadata is
// stripped and optional chronicle fields come back as empty values instead
// of being omitted. It always re-enters the active set as a draft
// (IsPublished false), whatever its state at archive time.
func (m *Manager) Restore(id string) (bool, error) {
	archive, err := m.store.ArchivedArticles()
	if err != nil {
		return false, err
	}

	var target *model.ArchivedArticle
	for i := range archive {
		if model.SameID(archive[i].ID, id) {
			target = &archive[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}

	restored := model.Article{
		ID:            model.NormalizeID(target.ID),
		Title:         target.Title,
		Summary:       target.Summary,
		Content:       target.Content,
		ImageURL:      target.ImageURL,
		ContentImages: target.ContentImages,
		Category:      target.Category,
		AuthorID:      model.NormalizeID(target.AuthorID),
		Date:          target.Date,
		IsPublished:   false,

		BullfightLocation: target.BullfightLocation,
		BullfightCattle:   target.BullfightCattle,
		BullfightSummary:  target.BullfightSummary,
		BullfightResults:  target.BullfightResults,
	}
	if restored.ContentImages == nil {
		restored.ContentImages = []string{}
	}
	if restored.BullfightResults == nil {
		restored.BullfightResults = []model.ChronicleResult{}
	}

	articles, err := m.store.Articles()
	if err != nil {
		return false, err
	}
	articles = append([]model.Article{restored}, articles...)

	kept := make([]model.ArchivedArticle, 0, len(archive)-1)
	for _, a := range archive {
		if !model.SameID(a.ID, id) {
			kept = append(kept, a)
		}
	}
	if err := m.store.ReplaceArticlesAndArchive(articles, kept, false); err != nil {
		return false, fmt.Errorf("failed to restore article: %w", err)
	}

	m.logger.Printf("Restored article %s as draft", restored.ID)
	return true, nil
}
