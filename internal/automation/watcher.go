package automation

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// artifactWatcher reports files created under the output directory while
// the agent runs. Only names are observed.
type artifactWatcher struct {
	watcher  *fsnotify.Watcher
	onCreate func(path string)
	done     chan struct{}
}

func watchArtifacts(dir string, onCreate func(path string)) (*artifactWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch dir: %w", err)
	}

	aw := &artifactWatcher{watcher: w, onCreate: onCreate, done: make(chan struct{})}
	go aw.loop()
	slog.Debug("watching for artifacts", "dir", dir)
	return aw, nil
}

func (aw *artifactWatcher) loop() {
	defer close(aw.done)
	for {
		select {
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
				// agents like to group outputs in a subdirectory
				if err := aw.watcher.Add(event.Name); err != nil {
					slog.Debug("watch subdir", "dir", event.Name, "error", err)
				}
				continue
			}
			slog.Debug("artifact created", "path", event.Name)
			aw.onCreate(event.Name)

		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("artifact watcher error", "error", err)
		}
	}
}

// Close stops the watcher. No callback runs after Close returns.
func (aw *artifactWatcher) Close() error {
	err := aw.watcher.Close()
	<-aw.done
	return err
}
