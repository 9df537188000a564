// Package daemon provides the headless auto-sync process.
//
// The daemon:
//  1. Watches the store database for writes made by other processes
//     (CLI invocations editing articles)
//  2. Debounces bursts of writes into a single publish
//  3. Optionally republishes on a fixed interval as a safety net
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/toril-digital/toril/internal/cms"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long the store must stay quiet before a
	// publish runs. Batches rapid external edits together.
	DebounceInterval time.Duration

	// PublishInterval republishes the full state periodically even without
	// observed changes. Zero disables it.
	PublishInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 2 * time.Second,
		PublishInterval:  0,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// NewFileLogger returns a daemon logger writing to a rotating log file.
func NewFileLogger(path string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "[daemon] ", log.LstdFlags)
}

// Daemon watches the store database and publishes after quiet periods.
type Daemon struct {
	core   *cms.CMS
	config *Config

	watcher *fsnotify.Watcher

	changeMu  sync.Mutex
	changedAt time.Time
	dirty     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon over an opened core.
func New(core *cms.CMS, config *Config) (*Daemon, error) {
	if core == nil {
		return nil, fmt.Errorf("core cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		core:    core,
		config:  config,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins watching and publishing. Blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	dbPath := d.core.Store().Path()
	if dbPath == ":memory:" {
		return fmt.Errorf("cannot watch an in-memory store")
	}

	watchDir := filepath.Dir(dbPath)
	if err := d.watcher.Add(watchDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", watchDir, err)
	}
	d.config.Logger.Printf("Watching %s for changes to %s", watchDir, filepath.Base(dbPath))

	d.wg.Add(2)
	go d.watchFileEvents(filepath.Base(dbPath))
	go d.processChanges()

	if d.config.PublishInterval > 0 {
		d.wg.Add(1)
		go d.periodicPublish()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and records store changes.
func (d *Daemon) watchFileEvents(dbName string) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// The database writes through sidecar files (-wal, -journal);
			// any of them means the store changed.
			if !strings.HasPrefix(filepath.Base(event.Name), dbName) {
				continue
			}
			d.recordChange()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// recordChange marks the store dirty and restarts the quiet period.
func (d *Daemon) recordChange() {
	d.changeMu.Lock()
	defer d.changeMu.Unlock()

	d.dirty = true
	d.changedAt = time.Now()
}

// processChanges publishes once the store has been quiet long enough.
func (d *Daemon) processChanges() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.changeMu.Lock()
			ready := d.dirty && time.Since(d.changedAt) >= d.config.DebounceInterval
			if ready {
				d.dirty = false
			}
			d.changeMu.Unlock()

			if ready {
				d.publish("change detected")
			}
		}
	}
}

// periodicPublish republishes on a fixed interval regardless of observed
// changes. Full-state publishes are idempotent, so this is safe.
func (d *Daemon) periodicPublish() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.publish("periodic")
		}
	}
}

func (d *Daemon) publish(reason string) {
	d.config.Logger.Printf("Publishing (%s)", reason)

	res := d.core.ForcePublish(d.ctx)
	if res.Success {
		d.config.Logger.Println("Publish completed")
	} else {
		d.config.Logger.Printf("Publish failed: %s", res.Message)
	}
}
