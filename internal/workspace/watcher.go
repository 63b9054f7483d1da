package workspace

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events into one refresh.
const debounceWindow = 500 * time.Millisecond

// Watcher keeps a Files tracker fresh by watching the workspace tree.
type Watcher struct {
	files    *Files
	watcher  *fsnotify.Watcher
	onChange func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
}

// NewWatcher creates a watcher over the tracker's root. onChange runs
// after each refresh triggered by filesystem activity.
func NewWatcher(files *Files, onChange func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch every non-ignored directory; fsnotify is not recursive.
	err = filepath.WalkDir(files.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(files.root, path)
		if relErr != nil {
			return nil
		}
		if files.ignored(rel) {
			return filepath.SkipDir
		}
		_ = w.Add(path)
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		files:    files,
		watcher:  w,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching for changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// New directories need their own watch.
			if ev.Op.Has(fsnotify.Create) {
				rel, err := filepath.Rel(w.files.root, ev.Name)
				if err == nil && !w.files.ignored(rel) {
					_ = w.watcher.Add(ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := w.files.Refresh(); err != nil {
				w.files.log.Warn().Err(err).Msg("refresh after fs event failed")
				continue
			}
			if w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.files.log.Warn().Err(err).Msg("fs watcher error")
		}
	}
}

// Stop shuts the watcher down and waits for the run loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}
