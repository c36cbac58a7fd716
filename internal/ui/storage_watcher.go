package ui

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/agentofempires/agent-of-empires/internal/logging"
	"github.com/agentofempires/agent-of-empires/internal/statedb"
)

var watcherLog = logging.ForComponent(logging.CompUI)

// StorageWatcher signals when another process (usually the CLI) changed the
// state database. File events on the database directory trigger a check;
// a slow poll covers filesystems where fsnotify is unreliable (9p, NFS, WSL).
// Either way the metadata last_modified stamp decides whether anything changed.
type StorageWatcher struct {
	db        *statedb.StateDB
	dbFile    string
	fsw       *fsnotify.Watcher
	limiter   *rate.Limiter
	reloadCh  chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	lastModified int64
	modMu        sync.Mutex

	// Tracks when the TUI saved, to ignore self-triggered changes
	lastSaveTime time.Time
	saveMu       sync.RWMutex
}

// ignoreWindow is how long after NotifySave a change counts as our own.
// Must be > pollInterval so the first poll after a self-save falls inside it.
const ignoreWindow = 3 * time.Second

// pollInterval is the fallback check period.
const pollInterval = 2 * time.Second

// NewStorageWatcher creates a watcher for the database at dbPath.
// If fsnotify cannot be set up the watcher still works by polling alone.
func NewStorageWatcher(db *statedb.StateDB, dbPath string) *StorageWatcher {
	if db == nil {
		return nil
	}

	lastMod, _ := db.LastModified()
	sw := &StorageWatcher{
		db:           db,
		dbFile:       filepath.Base(dbPath),
		limiter:      rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		lastModified: lastMod,
		reloadCh:     make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		watcherLog.Warn("watcher_fsnotify_unavailable", slog.String("error", err.Error()))
		return sw
	}
	if err := fsw.Add(filepath.Dir(dbPath)); err != nil {
		watcherLog.Warn("watcher_add_failed", slog.String("path", dbPath), slog.String("error", err.Error()))
		fsw.Close()
		return sw
	}
	sw.fsw = fsw
	return sw
}

// Start begins watching (non-blocking).
func (sw *StorageWatcher) Start() {
	sw.wg.Add(1)
	go sw.loop()
}

func (sw *StorageWatcher) loop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if sw.fsw != nil {
		events = sw.fsw.Events
		errs = sw.fsw.Errors
	}

	for {
		select {
		case <-sw.closeCh:
			return
		case <-ticker.C:
			sw.checkAndNotify()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !sw.isDBEvent(ev) {
				continue
			}
			// A single save touches the db and its WAL several times.
			if sw.limiter.Allow() {
				sw.checkAndNotify()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			watcherLog.Debug("watcher_fsnotify_error", slog.String("error", err.Error()))
		}
	}
}

// isDBEvent reports whether ev concerns state.db or its -wal/-shm files.
func (sw *StorageWatcher) isDBEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	return strings.HasPrefix(filepath.Base(ev.Name), sw.dbFile)
}

// checkAndNotify sends a reload signal when last_modified moved forward
// outside the self-save window.
func (sw *StorageWatcher) checkAndNotify() {
	ts, err := sw.db.LastModified()
	if err != nil {
		watcherLog.Debug("watcher_poll_failed", slog.String("error", err.Error()))
		return
	}

	sw.modMu.Lock()
	changed := ts > sw.lastModified
	if changed {
		sw.lastModified = ts
	}
	sw.modMu.Unlock()

	if !changed {
		return
	}

	sw.saveMu.RLock()
	lastSave := sw.lastSaveTime
	sw.saveMu.RUnlock()

	if time.Since(lastSave) < ignoreWindow {
		watcherLog.Debug("watcher_ignoring_own_save")
		return
	}

	watcherLog.Debug("watcher_db_changed", slog.Int64("timestamp", ts))
	select {
	case sw.reloadCh <- struct{}{}:
	default:
	}
}

// ReloadChannel returns the channel that signals when reload is needed.
func (sw *StorageWatcher) ReloadChannel() <-chan struct{} {
	return sw.reloadCh
}

// NotifySave should be called by the TUI right before it saves.
func (sw *StorageWatcher) NotifySave() {
	sw.saveMu.Lock()
	sw.lastSaveTime = time.Now()
	sw.saveMu.Unlock()
}

// Close stops the watcher. Safe to call multiple times.
func (sw *StorageWatcher) Close() error {
	var err error
	sw.closeOnce.Do(func() {
		close(sw.closeCh)
		sw.wg.Wait()
		if sw.fsw != nil {
			err = sw.fsw.Close()
		}
	})
	return err
}
