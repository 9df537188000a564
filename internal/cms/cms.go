// Package cms composes the store, the archive manager, the sync scheduler
// and the publish protocol into the operation set the UI layers consume.
//
// Local mutations always succeed and are immediately visible; only the
// publish step can fail. A failed publish leaves the pending-changes flag
// set so the operator can retry later without losing anything.
package cms

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/toril-digital/toril/internal/archive"
	"github.com/toril-digital/toril/internal/config"
	"github.com/toril-digital/toril/internal/model"
	"github.com/toril-digital/toril/internal/publish"
	"github.com/toril-digital/toril/internal/schedule"
	"github.com/toril-digital/toril/internal/store"
)

// EventType classifies CMS events for observers (dashboard, daemon log).
type EventType string

const (
	// EventChange indicates a local mutation was recorded.
	EventChange EventType = "change"

	// EventPublishStarted indicates a publish attempt sequence began.
	EventPublishStarted EventType = "publish_started"

	// EventPublishFinished indicates a publish attempt sequence ended;
	// Result carries the outcome.
	EventPublishFinished EventType = "publish_finished"
)

// Event is a notification delivered to the observer callback.
type Event struct {
	Type   EventType       `json:"type"`
	Time   time.Time       `json:"time"`
	Result *publish.Result `json:"result,omitempty"`
}

// Stats summarizes the store for dashboards.
type Stats struct {
	TotalArticles  int             `json:"totalArticles"`
	TotalAuthors   int             `json:"totalAuthors"`
	TotalArchived  int             `json:"totalArchived"`
	RecentArticles []model.Article `json:"recentArticles"`
}

// Options configures New.
type Options struct {
	// DataPath is the store database location. Required (":memory:" works).
	DataPath string

	// SettingsPath is the connection settings file. Defaults to the user
	// config dir.
	SettingsPath string

	// QuietPeriod overrides the scheduler debounce interval.
	QuietPeriod time.Duration

	// Logger for facade activity. Default stderr.
	Logger *log.Logger

	// Events receives facade events. Optional; called synchronously, so
	// observers must not block.
	Events func(Event)

	// BaseURL and HTTPClient override the GitHub endpoint (tests).
	BaseURL    string
	HTTPClient *http.Client
}

// CMS is the collaborator-facing core.
type CMS struct {
	store     *store.Store
	archiver  *archive.Manager
	scheduler *schedule.Scheduler
	publisher *publish.Publisher
	logger    *log.Logger
	events    func(Event)

	mu      sync.Mutex
	pending bool
}

// New opens the store and wires the scheduler to it. The caller MUST call
// Close when done.
func New(opts Options) (*CMS, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[cms] ", log.LstdFlags)
	}

	st, err := store.Open(opts.DataPath)
	if err != nil {
		return nil, err
	}

	settingsPath := opts.SettingsPath
	if settingsPath == "" {
		settingsPath = config.DefaultPath()
	}

	c := &CMS{
		store:    st,
		archiver: archive.New(st, logger),
		logger:   logger,
		events:   opts.Events,
	}

	c.publisher = publish.New(publish.Config{
		Store:      st,
		Settings:   func() (*config.Settings, error) { return config.Load(settingsPath) },
		BaseURL:    opts.BaseURL,
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
	})
	c.scheduler = schedule.New(opts.QuietPeriod, c.autoPublish)
	st.SetChangeHook(c.markDirty)

	return c, nil
}

// Close cancels any pending publish and closes the store. A publish already
// in its network phase is not interrupted; only future scheduled ones are
// prevented, matching the protocol's no-mid-flight-cancel contract.
func (c *CMS) Close() error {
	c.scheduler.Cancel()
	return c.store.Close()
}

// Store exposes the underlying store for components that need read access
// (dashboard, daemon).
func (c *CMS) Store() *store.Store {
	return c.store
}

func (c *CMS) emit(e Event) {
	if c.events == nil {
		return
	}
	e.Time = time.Now()
	c.events(e)
}

// markDirty is the store's change hook: flag pending work and (re)arm the
// debounce timer.
func (c *CMS) markDirty() {
	c.mu.Lock()
	c.pending = true
	c.mu.Unlock()

	c.scheduler.Schedule()
	c.emit(Event{Type: EventChange})
}

// autoPublish runs when the quiet period elapses.
func (c *CMS) autoPublish() {
	c.logger.Println("Auto-publish: quiet period elapsed")
	c.emit(Event{Type: EventPublishStarted})

	res := c.publisher.Publish(context.Background())
	if res.Success {
		c.clearPending()
		c.logger.Println("Auto-publish completed")
	} else {
		// Local state stays authoritative; pending stays set for a later
		// retry.
		c.logger.Printf("Auto-publish failed: %s", res.Message)
	}
	c.emit(Event{Type: EventPublishFinished, Result: &res})
}

func (c *CMS) clearPending() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

// Pending reports whether local changes are awaiting a successful publish.
func (c *CMS) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// ListActive returns the active articles, newest first.
func (c *CMS) ListActive() ([]model.Article, error) {
	return c.store.Articles()
}

// ListArchived returns the archive, newest first.
func (c *CMS) ListArchived() ([]model.ArchivedArticle, error) {
	return c.store.ArchivedArticles()
}

// ListAuthors returns the author roster.
func (c *CMS) ListAuthors() ([]model.Author, error) {
	return c.store.Authors()
}

// GetArticle looks up an active article by id.
func (c *CMS) GetArticle(id string) (model.Article, bool, error) {
	return c.store.ArticleByID(id)
}

// AuthorByID resolves an author, falling back to the display placeholder
// when the reference dangles (author deleted after the article was written).
func (c *CMS) AuthorByID(id string) (model.Author, error) {
	authors, err := c.store.Authors()
	if err != nil {
		return model.Author{}, err
	}
	for _, a := range authors {
		if model.SameID(a.ID, id) {
			return a, nil
		}
	}
	return model.PlaceholderAuthor(id), nil
}

// UpsertArticle saves an article. skipSync suppresses the publish trigger
// for callers batching several writes before an explicit publish.
func (c *CMS) UpsertArticle(article model.Article, skipSync bool) error {
	return c.store.SaveArticle(article, skipSync)
}

// UpsertAuthor saves an author.
func (c *CMS) UpsertAuthor(author model.Author, skipSync bool) error {
	return c.store.SaveAuthor(author, skipSync)
}

// RemoveAuthor deletes an author. Articles referencing it keep their
// authorId; display falls back to a placeholder.
func (c *CMS) RemoveAuthor(id string) error {
	return c.store.DeleteAuthor(id)
}

// ArchiveArticle soft-deletes an active article. Missing ids are a no-op.
func (c *CMS) ArchiveArticle(id, actorID string) error {
	return c.archiver.Archive(id, actorID)
}

// RestoreArticle moves an archived article back to the active set as a
// draft. Returns false when the id is not archived.
func (c *CMS) RestoreArticle(id string) (bool, error) {
	return c.archiver.Restore(id)
}

// ForcePublish cancels any pending debounced publish and runs the protocol
// once, awaited. Cancelling first guarantees the explicit publish is the
// only protocol execution in flight.
func (c *CMS) ForcePublish(ctx context.Context) publish.Result {
	c.scheduler.Cancel()
	c.emit(Event{Type: EventPublishStarted})

	res := c.publisher.Publish(ctx)
	if res.Success {
		c.clearPending()
	}
	c.emit(Event{Type: EventPublishFinished, Result: &res})
	return res
}

// VerifyConnection probes the remote without mutating anything.
func (c *CMS) VerifyConnection(ctx context.Context) publish.Result {
	return c.publisher.Verify(ctx)
}

// Pull replaces local state with the remote document. On success there is
// nothing left to publish, so the pending flag clears and any scheduled
// publish is cancelled.
func (c *CMS) Pull(ctx context.Context) publish.Result {
	c.scheduler.Cancel()
	res := c.publisher.Pull(ctx)
	if res.Success {
		c.clearPending()
	}
	return res
}

// Stats summarizes the store for the dashboard and the status command.
func (c *CMS) Stats() (Stats, error) {
	articles, err := c.store.Articles()
	if err != nil {
		return Stats{}, err
	}
	authors, err := c.store.Authors()
	if err != nil {
		return Stats{}, err
	}
	archived, err := c.store.ArchivedArticles()
	if err != nil {
		return Stats{}, err
	}

	recent := articles
	if len(recent) > 5 {
		recent = recent[:5]
	}
	return Stats{
		TotalArticles:  len(articles),
		TotalAuthors:   len(authors),
		TotalArchived:  len(archived),
		RecentArticles: recent,
	}, nil
}
