package pattern

import (
	"context"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Library holds the active rule set behind an atomic pointer. Readers never
// observe a partially-updated set: Swap replaces the whole compiled set.
type Library struct {
	cur atomic.Pointer[Set]
}

// NewLibrary creates a library serving the given set.
func NewLibrary(s *Set) *Library {
	l := &Library{}
	l.cur.Store(s)
	return l
}

// Current returns the active rule set.
func (l *Library) Current() *Set {
	return l.cur.Load()
}

// Swap atomically replaces the active rule set.
func (l *Library) Swap(s *Set) {
	l.cur.Store(s)
}

// Watch hot-reloads the rule file (and packs directory, if set) on change.
// A failed reload keeps the previous valid set active and is logged, never
// fatal. Blocks until ctx is done.
func (l *Library) Watch(ctx context.Context, rulesPath, packsDir string, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(rulesPath); err != nil {
		return err
	}
	if packsDir != "" {
		// Packs directory may not exist yet; that only disables pack reload.
		if err := watcher.Add(packsDir); err != nil {
			log.Warn("packs directory not watchable", zap.String("dir", packsDir), zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			l.reload(rulesPath, packsDir, log)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("rule watcher error", zap.Error(err))
		}
	}
}

func (l *Library) reload(rulesPath, packsDir string, log *zap.Logger) {
	set, err := Load(rulesPath)
	if err != nil {
		log.Error("rule reload rejected, previous version stays active",
			zap.String("path", rulesPath),
			zap.String("active_version", l.Current().Version),
			zap.Error(err))
		return
	}
	if packsDir != "" {
		merged, _, err := LoadPacks(packsDir, set)
		if err != nil {
			log.Error("pack reload rejected, previous version stays active",
				zap.String("dir", packsDir),
				zap.String("active_version", l.Current().Version),
				zap.Error(err))
			return
		}
		set = merged
	}
	l.Swap(set)
	log.Info("rule set swapped",
		zap.String("version", set.Version),
		zap.Int("rules", len(set.Rules)))
}
