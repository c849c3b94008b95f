package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
)

// Watcher reloads a catalog when files in its workbook directories change.
// Bursts of events are collapsed into one reload after a quiet period.
type Watcher struct {
	services.Service

	catalog  *Catalog
	dirs     []string
	debounce time.Duration
	logger   log.Logger

	watcher *fsnotify.Watcher
	// reloaded receives the result of every reload; used in tests.
	reloaded chan error
}

// NewWatcher watches the workbook directory of every version under rootDir.
func NewWatcher(c *Catalog, rootDir string, logger log.Logger) *Watcher {
	w := &Watcher{
		catalog:  c,
		debounce: c.cfg.WatchDebounce,
		logger:   logger,
	}
	for _, v := range c.cfg.Versions {
		w.dirs = append(w.dirs, filepath.Join(rootDir, v.WorkbookPrefix()))
	}
	if w.debounce <= 0 {
		w.debounce = 500 * time.Millisecond
	}
	w.Service = services.NewBasicService(w.starting, w.running, w.stopping)
	return w
}

func (w *Watcher) starting(context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return errors.Wrapf(err, "watching %s", dir)
		}
	}
	w.watcher = fw
	return nil
}

func (w *Watcher) running(ctx context.Context) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			_ = level.Debug(w.logger).Log("msg", "workbook changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			_ = level.Warn(w.logger).Log("msg", "watching workbooks", "err", err)

		case <-timer.C:
			err := w.catalog.Reload(ctx)
			if err != nil {
				_ = level.Error(w.logger).Log("msg", "reloading catalog, keeping previous versions", "err", err)
			}
			if w.reloaded != nil {
				select {
				case w.reloaded <- err:
				default:
				}
			}
		}
	}
}

func (w *Watcher) stopping(_ error) error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
