// Package watcher observes a directory tree for source changes.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/opencode-ai/tails/internal/event"
	"github.com/rs/zerolog/log"
)

// DefaultPattern matches Go sources anywhere below the root.
const DefaultPattern = "**/*.go"

// DefaultIgnore lists trees that are never watched.
var DefaultIgnore = []string{"**/.git/**", "**/node_modules/**"}

// Event is a qualifying create or write below the watched root.
type Event struct {
	// Path is absolute; Rel is slash-separated and relative to the root.
	Path string
	Rel  string
	Op   fsnotify.Op
}

// Handler receives events on the watcher goroutine.
type Handler func(Event)

// WatchError reports that the watcher could not attach to the filesystem.
type WatchError struct {
	Root string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Root, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// Option configures a Subscription.
type Option func(*Subscription)

// WithIgnore replaces the default ignore globs. Globs are matched against
// root-relative slash paths.
func WithIgnore(globs ...string) Option {
	return func(s *Subscription) {
		s.ignore = globs
	}
}

// WithBus publishes a file.changed event for every dispatched change.
func WithBus(bus *event.Bus) Option {
	return func(s *Subscription) {
		s.bus = bus
	}
}

// Subscription binds a root directory and a glob pattern to a handler.
type Subscription struct {
	root    string
	pattern string
	ignore  []string
	onEvent Handler
	bus     *event.Bus

	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Watch starts observing root recursively. For every create or write whose
// root-relative path or base name matches pattern, onEvent is called once,
// synchronously, on the watcher goroutine. Rapid saves may produce several
// events; nothing is debounced.
func Watch(root, pattern string, onEvent Handler, opts ...Option) (*Subscription, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &WatchError{Root: root, Err: fmt.Errorf("invalid pattern %q", pattern)}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &WatchError{Root: root, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &WatchError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &WatchError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &WatchError{Root: root, Err: err}
	}

	s := &Subscription{
		root:    abs,
		pattern: pattern,
		ignore:  DefaultIgnore,
		onEvent: onEvent,
		fsw:     fsw,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.addTree(abs, false); err != nil {
		fsw.Close()
		return nil, &WatchError{Root: root, Err: err}
	}

	log.Debug().Str("root", abs).Str("pattern", pattern).Msg("watching for changes")
	go s.run()
	return s, nil
}

// Root returns the absolute watched directory.
func (s *Subscription) Root() string { return s.root }

// Pattern returns the filename glob.
func (s *Subscription) Pattern() string { return s.pattern }

func (s *Subscription) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("root", s.root).Msg("watcher error")
		}
	}
}

func (s *Subscription) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	rel, ok := s.rel(ev.Name)
	if !ok || s.ignored(rel) {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Files may land in the new directory before it is watched.
			if err := s.addTree(ev.Name, true); err != nil {
				log.Warn().Err(err).Str("dir", ev.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if s.matches(rel) {
		s.dispatch(Event{Path: ev.Name, Rel: rel, Op: ev.Op})
	}
}

// addTree watches dir and every directory below it. With replay, matching
// files already present are dispatched as creates.
func (s *Subscription) addTree(dir string, replay bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		rel, _ := s.rel(path)
		if d.IsDir() {
			if rel != "." && s.ignored(rel) {
				return filepath.SkipDir
			}
			return s.fsw.Add(path)
		}
		if replay && !s.ignored(rel) && s.matches(rel) {
			s.dispatch(Event{Path: path, Rel: rel, Op: fsnotify.Create})
		}
		return nil
	})
}

func (s *Subscription) dispatch(ev Event) {
	select {
	case <-s.stopCh:
		return
	default:
	}

	log.Debug().Str("path", ev.Rel).Str("op", ev.Op.String()).Msg("file changed")
	s.bus.Publish(event.Event{
		Type: event.FileChanged,
		Data: event.FileChangedData{Path: ev.Rel, Op: ev.Op.String()},
	})
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func (s *Subscription) rel(path string) (string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (s *Subscription) matches(rel string) bool {
	if ok, _ := doublestar.Match(s.pattern, rel); ok {
		return true
	}
	ok, _ := doublestar.Match(s.pattern, filepath.Base(rel))
	return ok
}

func (s *Subscription) ignored(rel string) bool {
	for _, glob := range s.ignore {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
	}
	return false
}

// Stop ends observation. An in-flight callback completes first and none is
// dispatched after Stop returns. Stop must not be called from the handler.
func (s *Subscription) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.stopErr = s.fsw.Close()
	})
	return s.stopErr
}
