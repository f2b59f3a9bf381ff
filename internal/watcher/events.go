package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/to-wer/media-renamer/internal/identify"
)

const debounceInterval = 2 * time.Second

// eventSource turns filesystem changes under the watch root into scan
// triggers. fsnotify is not recursive, so every directory is added and new
// ones are picked up as they appear.
type eventSource struct {
	watcher  *fsnotify.Watcher
	exts     []string
	onChange func() bool
	log      *slog.Logger
}

func newEventSource(root string, extensions []string, onChange func() bool) (*eventSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	e := &eventSource{
		watcher:  w,
		exts:     extensions,
		onChange: onChange,
		log:      slog.With("component", "watcher-events"),
	}
	if err := e.addTree(root); err != nil {
		w.Close()
		return nil, err
	}
	return e, nil
}

func (e *eventSource) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if err := e.watcher.Add(path); err != nil {
				e.log.Warn("Failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// run forwards relevant events, debounced, until stop is closed.
func (e *eventSource) run(stop <-chan struct{}) {
	defer e.watcher.Close()

	var debounce <-chan time.Time
	for {
		select {
		case <-stop:
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if e.relevant(event) {
				debounce = time.After(debounceInterval)
			}
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.log.Warn("Filesystem watcher error", "error", err)
		case <-debounce:
			debounce = nil
			e.onChange()
		}
	}
}

func (e *eventSource) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := e.addTree(event.Name); err != nil {
				e.log.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// A removed directory has no extension but may hold media files.
		return true
	}
	return identify.IsMediaFile(event.Name, e.exts)
}
