// Package publish implements the remote publish protocol: serializing the
// full local dataset into one JSON document and writing it to a file in a
// GitHub repository under optimistic concurrency control.
//
// Each attempt is a read-modify-write cycle: read the document's current
// sha, serialize the entire local state, write conditioned on that sha. A
// stale sha means another writer got there first; the protocol re-reads and
// retries within a bounded attempt budget. Because every attempt publishes
// the full current state rather than a diff, retries after partial failures
// are self-correcting.
//
// Nothing escapes the protocol boundary as a panic or raw error: callers
// always receive a structured Result.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/toril-digital/toril/internal/config"
	"github.com/toril-digital/toril/internal/github"
	"github.com/toril-digital/toril/internal/model"
	"github.com/toril-digital/toril/internal/store"
)

// Result is the outcome of a publish, verify or pull. Message is
// user-facing and already localized for the editorial team.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Document is the published artifact consumed by the static site:
// the full active, author and archive collections plus a timestamp.
type Document struct {
	Articles         []model.Article         `json:"articles"`
	Authors          []model.Author          `json:"authors"`
	ArchivedArticles []model.ArchivedArticle `json:"archivedArticles"`
	LastUpdated      string                  `json:"lastUpdated"`
}

// Config holds publisher configuration.
type Config struct {
	// Store supplies the local state to publish. Required.
	Store *store.Store

	// Settings supplies connection settings per attempt sequence. Required.
	Settings func() (*config.Settings, error)

	// BaseURL overrides the GitHub API endpoint (tests).
	BaseURL string

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client

	// Attempts bounds the retry loop. Default 3.
	Attempts int

	// Backoff is the base delay between failed attempts; it grows linearly
	// with the attempt number. Default 1s.
	Backoff time.Duration

	// ConflictBackoff is the fixed wait after a revision conflict before
	// re-reading. Default 1.5s.
	ConflictBackoff time.Duration

	// Logger for protocol activity. Default stderr.
	Logger *log.Logger
}

// Publisher runs the publish protocol against a GitHub-hosted document.
type Publisher struct {
	store           *store.Store
	settings        func() (*config.Settings, error)
	baseURL         string
	httpClient      *http.Client
	attempts        int
	backoff         time.Duration
	conflictBackoff time.Duration
	logger          *log.Logger

	now func() time.Time
}

// New creates a Publisher.
func New(cfg Config) *Publisher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.ConflictBackoff <= 0 {
		cfg.ConflictBackoff = 1500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[publish] ", log.LstdFlags)
	}
	return &Publisher{
		store:           cfg.Store,
		settings:        cfg.Settings,
		baseURL:         cfg.BaseURL,
		httpClient:      cfg.HTTPClient,
		attempts:        cfg.Attempts,
		backoff:         cfg.Backoff,
		conflictBackoff: cfg.ConflictBackoff,
		logger:          cfg.Logger,
		now:             time.Now,
	}
}

func (p *Publisher) client(token string) *github.Client {
	return github.New(github.Config{
		Token:      token,
		BaseURL:    p.baseURL,
		HTTPClient: p.httpClient,
	})
}

// snapshot serializes the entire current local state, pretty-printed UTF-8.
func (p *Publisher) snapshot() ([]byte, error) {
	articles, err := p.store.Articles()
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	authors, err := p.store.Authors()
	if err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}
	archive, err := p.store.ArchivedArticles()
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}

	doc := Document{
		Articles:         articles,
		Authors:          authors,
		ArchivedArticles: archive,
		LastUpdated:      model.Timestamp(p.now()),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	return data, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Publish runs the protocol to completion: up to the configured number of
// read-serialize-write attempts, retrying conflicts and transient failures,
// and reports the outcome as a Result.
func (p *Publisher) Publish(ctx context.Context) Result {
	settings, err := p.settings()
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("No se pudo leer la configuración: %v", err)}
	}
	if err := settings.Validate(); err != nil {
		return Result{Success: false, Message: "Faltan datos de conexión: revisa la configuración."}
	}

	client := p.client(settings.Token)
	var lastErr error

	for attempt := 1; attempt <= p.attempts; attempt++ {
		p.logger.Printf("Publish attempt %d/%d", attempt, p.attempts)

		revision, err := p.readRevision(ctx, client, settings)
		if err != nil {
			if terminal, msg := terminalFailure(err); terminal {
				return Result{Success: false, Message: msg}
			}
			if !github.IsRetryable(err) {
				return Result{Success: false, Message: fmt.Sprintf("No se pudo publicar: %v", err)}
			}
			lastErr = err
			p.logger.Printf("Attempt %d: revision read failed: %v", attempt, err)
			if attempt < p.attempts {
				sleep(ctx, p.backoff*time.Duration(attempt))
			}
			continue
		}

		// Serialize inside the loop: a retry must pick up any writes that
		// landed while we were backing off.
		content, err := p.snapshot()
		if err != nil {
			return Result{Success: false, Message: fmt.Sprintf("No se pudo preparar el contenido: %v", err)}
		}

		err = client.PutFile(ctx, settings.RepoOwner, settings.RepoName, settings.FilePath, github.PutFileOptions{
			Message: fmt.Sprintf("CMS update: %s", p.now().Format("2006-01-02 15:04:05")),
			Content: content,
			Branch:  settings.Branch,
			SHA:     revision,
		})
		if err == nil {
			p.logger.Printf("Publish succeeded on attempt %d", attempt)
			return Result{Success: true, Message: "Contenido publicado correctamente."}
		}

		if errors.Is(err, github.ErrConflict) {
			// Someone else wrote the document between our read and write.
			// Wait briefly, then restart from the revision read.
			p.logger.Printf("Attempt %d: revision conflict, re-reading", attempt)
			lastErr = err
			if attempt < p.attempts {
				sleep(ctx, p.conflictBackoff)
			}
			continue
		}
		if terminal, msg := terminalFailure(err); terminal {
			return Result{Success: false, Message: msg}
		}
		if !github.IsRetryable(err) {
			// A 4xx that is not a conflict (missing branch, rejected
			// payload) will not clear on its own; spending the budget on
			// it just delays the report.
			return Result{Success: false, Message: fmt.Sprintf("No se pudo publicar: %v", err)}
		}

		lastErr = err
		p.logger.Printf("Attempt %d: write failed: %v", attempt, err)
		if attempt < p.attempts {
			sleep(ctx, p.backoff*time.Duration(attempt))
		}
	}

	return Result{Success: false, Message: fmt.Sprintf("No se pudo publicar: %v", lastErr)}
}

// readRevision fetches the current document sha. A missing document is the
// valid first-publish state and yields an empty revision.
func (p *Publisher) readRevision(ctx context.Context, client *github.Client, settings *config.Settings) (string, error) {
	file, err := client.GetFile(ctx, settings.RepoOwner, settings.RepoName, settings.FilePath, settings.Branch)
	if errors.Is(err, github.ErrNotFound) {
		p.logger.Println("Document does not exist yet, first publish")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return file.SHA, nil
}

// terminalFailure maps credential problems to an immediate user-facing
// failure. Retrying cannot fix a bad token, so the attempt budget is not
// spent on it.
func terminalFailure(err error) (bool, string) {
	switch {
	case errors.Is(err, github.ErrUnauthorized):
		return true, "Token inválido o caducado: revisa la configuración."
	case errors.Is(err, github.ErrForbidden):
		return true, "El token no tiene permisos suficientes sobre el repositorio."
	}
	return false, ""
}

// Pull downloads the remote document and replaces all three local
// collections with its contents. The replacement writes are suppressed from
// the scheduler: freshly pulled state has nothing to publish.
func (p *Publisher) Pull(ctx context.Context) Result {
	settings, err := p.settings()
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("No se pudo leer la configuración: %v", err)}
	}
	if err := settings.Validate(); err != nil {
		return Result{Success: false, Message: "Faltan datos de conexión: revisa la configuración."}
	}

	client := p.client(settings.Token)
	file, err := client.GetFile(ctx, settings.RepoOwner, settings.RepoName, settings.FilePath, settings.Branch)
	if errors.Is(err, github.ErrNotFound) {
		return Result{Success: false, Message: "El archivo no existe aún en el repositorio."}
	}
	if err != nil {
		if terminal, msg := terminalFailure(err); terminal {
			return Result{Success: false, Message: msg}
		}
		return Result{Success: false, Message: fmt.Sprintf("Error descargando: %v", err)}
	}

	var doc Document
	if err := json.Unmarshal(file.Content, &doc); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("El documento remoto no es válido: %v", err)}
	}

	if err := p.store.ReplaceArticles(doc.Articles, true); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("No se pudieron guardar los artículos: %v", err)}
	}
	if err := p.store.ReplaceAuthors(doc.Authors, true); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("No se pudieron guardar los autores: %v", err)}
	}
	if err := p.store.ReplaceArchive(doc.ArchivedArticles, true); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("No se pudo guardar el historial: %v", err)}
	}

	p.logger.Printf("Pulled %d articles, %d authors, %d archived",
		len(doc.Articles), len(doc.Authors), len(doc.ArchivedArticles))
	return Result{Success: true, Message: "Datos descargados correctamente."}
}
