package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Updater re-ingests configured documentation trees on an interval and,
// when the filesystem supports it, on change notification with debouncing.
// It is an explicitly owned handle: the process entry point constructs it,
// starts it, and stops it. There is no package-level instance.
type Updater struct {
	ingestor *Ingestor
	dirs     []string
	interval time.Duration
	debounce time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	done       chan struct{}
	lastUpdate time.Time
}

// NewUpdater creates an updater over the given documentation directories.
func NewUpdater(ingestor *Ingestor, dirs []string, interval time.Duration, logger *zap.Logger) *Updater {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{
		ingestor: ingestor,
		dirs:     dirs,
		interval: interval,
		debounce: 2 * time.Second,
		logger:   logger,
	}
}

// Start launches the background loop. Starting a running updater is an error.
func (u *Updater) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running {
		return fmt.Errorf("updater already running")
	}
	if len(u.dirs) == 0 {
		return fmt.Errorf("no documentation directories configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		u.logger.Warn("filesystem watching unavailable, interval only", zap.Error(err))
		watcher = nil
	} else {
		for _, dir := range u.dirs {
			if err := watcher.Add(dir); err != nil {
				u.logger.Warn("cannot watch directory",
					zap.String("dir", dir), zap.Error(err))
			}
		}
	}

	u.running = true
	u.stop = make(chan struct{})
	u.done = make(chan struct{})
	go u.loop(watcher)

	u.logger.Info("documentation updater started",
		zap.Strings("dirs", u.dirs),
		zap.Duration("interval", u.interval))
	return nil
}

// Stop terminates the background loop and waits for it to exit.
func (u *Updater) Stop() {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	u.running = false
	close(u.stop)
	done := u.done
	u.mu.Unlock()

	<-done
	u.logger.Info("documentation updater stopped")
}

// ForceUpdate re-ingests all directories immediately.
func (u *Updater) ForceUpdate(ctx context.Context) error {
	u.logger.Info("manual documentation update triggered")
	return u.updateAll(ctx)
}

// LastUpdate returns when the last successful update pass finished.
func (u *Updater) LastUpdate() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastUpdate
}

func (u *Updater) loop(watcher *fsnotify.Watcher) {
	defer close(u.done)
	if watcher != nil {
		defer watcher.Close()
	}

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	// Debounce timer for change bursts; inert until an event arrives.
	pending := time.NewTimer(0)
	if !pending.Stop() {
		<-pending.C
	}
	defer pending.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-u.stop:
			return
		case <-ticker.C:
			u.runUpdate("interval")
		case <-pending.C:
			u.runUpdate("change")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				// Drain a just-fired timer so the reset cannot queue a
				// stale tick alongside the new one.
				if !pending.Stop() {
					select {
					case <-pending.C:
					default:
					}
				}
				pending.Reset(u.debounce)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			u.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (u *Updater) runUpdate(trigger string) {
	u.logger.Info("starting documentation update", zap.String("trigger", trigger))
	if err := u.updateAll(context.Background()); err != nil {
		u.logger.Error("documentation update failed", zap.Error(err))
	}
}

func (u *Updater) updateAll(ctx context.Context) error {
	var firstErr error
	succeeded := 0
	for _, dir := range u.dirs {
		n, err := u.ingestor.IngestDir(ctx, dir)
		if err != nil {
			u.logger.Error("failed to update directory",
				zap.String("dir", dir), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded++
		u.logger.Info("updated directory",
			zap.String("dir", dir), zap.Int("chunks", n))
	}

	u.mu.Lock()
	u.lastUpdate = time.Now()
	u.mu.Unlock()

	u.logger.Info("documentation update completed",
		zap.Int("succeeded", succeeded), zap.Int("total", len(u.dirs)))
	return firstErr
}
