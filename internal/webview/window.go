package webview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const errScriptTimeout = "script timeout exceeded"

// reloadDelay coalesces the burst of events editors emit on save.
const reloadDelay = 100 * time.Millisecond

type task func()

// Window is a single script-capable surface. All script execution happens
// on the window's event-loop goroutine; other goroutines hand work to it
// through the task queue.
type Window struct {
	label  string
	cfg    Config
	logger *zap.Logger
	m      *Manager

	tasks  chan task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop goroutine
	page *page

	mu      sync.RWMutex
	doc     *Document
	url     string
	console []LogEntry

	runMu   sync.Mutex
	seq     uint64
	running uint64
}

func newWindow(label string, m *Manager) *Window {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Window{
		label:  label,
		cfg:    m.cfg,
		logger: m.logger.With(zap.String("window", label)),
		m:      m,
		tasks:  make(chan task, m.cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Label returns the window label.
func (w *Window) Label() string {
	return w.label
}

// URL returns the address of the loaded page.
func (w *Window) URL() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.url
}

// Document returns the loaded page's document.
func (w *Window) Document() *Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.doc
}

// Console returns the retained console output, oldest first.
func (w *Window) Console() []LogEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]LogEntry{}, w.console...)
}

// Changes returns the DOM modifications scripts made to the loaded page.
func (w *Window) Changes() []DOMChange {
	if doc := w.Document(); doc != nil {
		return doc.Changes()
	}
	return nil
}

// Eval queues script for execution and returns once it is accepted. A
// script that does not compile is rejected here; runtime failures are only
// logged.
func (w *Window) Eval(script string) error {
	prg, err := goja.Compile(w.label, script, false)
	if err != nil {
		return fmt.Errorf("compile script: %w", err)
	}

	return w.enqueue(func() {
		p := w.page
		if _, err := w.run(p, func() (goja.Value, error) { return p.vm.RunProgram(prg) }); err != nil {
			w.logger.Warn("Script failed", zap.Error(err))
		}
	})
}

// Execute runs script and waits for its completion value. A returned
// promise is reported by its settled state at the end of the task.
func (w *Window) Execute(ctx context.Context, script string) (*Result, error) {
	prg, err := goja.Compile(w.label, script, false)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}

	type outcome struct {
		result *Result
		err    error
	}
	ch := make(chan outcome, 1)

	err = w.enqueue(func() {
		start := time.Now()
		p := w.page
		val, err := w.run(p, func() (goja.Value, error) { return p.vm.RunProgram(prg) })
		if err != nil {
			ch <- outcome{err: err}
			return
		}
		v, err := exportValue(val)
		ch <- outcome{result: &Result{Value: v, Duration: time.Since(start)}, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case o := <-ch:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ErrClosed
	}
}

// LoadHTML replaces the current page with content and waits until the
// init scripts and the page's inline scripts have run.
func (w *Window) LoadHTML(ctx context.Context, url, content string) error {
	doc, err := ParseDocument(strings.NewReader(content))
	if err != nil {
		return err
	}
	return w.navigate(ctx, url, doc)
}

// LoadFile loads the HTML page at path.
func (w *Window) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	if mt := mimetype.Detect(data); !mt.Is("text/html") {
		return fmt.Errorf("%s is %s: %w", path, mt.String(), ErrNotHTML)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve page path: %w", err)
	}
	return w.LoadHTML(ctx, "file://"+filepath.ToSlash(abs), string(data))
}

// Watch reloads the page from path whenever the file changes, until ctx is
// cancelled or the window closes.
func (w *Window) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve page path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	// Watch the directory: editors replace files by rename.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		var pending *time.Timer
		defer func() {
			if pending != nil {
				pending.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDelay, func() {
					if err := w.LoadFile(ctx, abs); err != nil {
						w.logger.Warn("Page reload failed", zap.String("path", abs), zap.Error(err))
						return
					}
					w.logger.Info("Page reloaded", zap.String("path", abs))
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("Page watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the event loop. Queued tasks are dropped.
func (w *Window) Close() {
	w.cancel()
	<-w.done
}

func (w *Window) navigate(ctx context.Context, url string, doc *Document) error {
	loaded := make(chan struct{})
	if err := w.enqueue(func() {
		w.load(url, doc)
		close(loaded)
	}); err != nil {
		return err
	}

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrClosed
	}
}

func (w *Window) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			if w.page != nil {
				w.page.dispose()
			}
			return
		case t := <-w.tasks:
			w.safely(t)
		}
	}
}

func (w *Window) safely(t task) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Task panicked", zap.Any("panic", r))
		}
	}()
	t()
}

func (w *Window) enqueue(t task) error {
	select {
	case <-w.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case w.tasks <- t:
		return nil
	case <-w.ctx.Done():
		return ErrClosed
	}
}

// settle queues fn to run on the loop if p is still the loaded page.
func (w *Window) settle(p *page, fn func() error) {
	_ = w.enqueue(func() {
		if w.page != p {
			return
		}
		if _, err := w.run(p, func() (goja.Value, error) { return nil, fn() }); err != nil {
			w.logger.Warn("Callback failed", zap.Error(err))
		}
	})
}

// run executes fn against p's runtime, interrupting it after
// ScriptTimeout.
func (w *Window) run(p *page, fn func() (goja.Value, error)) (goja.Value, error) {
	w.runMu.Lock()
	w.seq++
	seq := w.seq
	w.running = seq
	w.runMu.Unlock()

	var timer *time.Timer
	if w.cfg.ScriptTimeout > 0 {
		timer = time.AfterFunc(w.cfg.ScriptTimeout, func() {
			w.runMu.Lock()
			defer w.runMu.Unlock()
			if w.running == seq {
				p.vm.Interrupt(errScriptTimeout)
			}
		})
	}

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		w.runMu.Lock()
		w.running = 0
		w.runMu.Unlock()
		p.vm.ClearInterrupt()
	}()

	return fn()
}

// load builds a fresh runtime for doc. Init scripts run before the page's
// own scripts.
func (w *Window) load(url string, doc *Document) {
	if w.page != nil {
		w.page.dispose()
	}

	p := newPage(w, url, doc)
	w.page = p
	w.setupGlobals(p)

	w.mu.Lock()
	w.doc = doc
	w.url = url
	w.mu.Unlock()

	for i, script := range w.m.initScriptList() {
		w.runSource(p, fmt.Sprintf("init#%d", i), script)
	}
	for i, script := range doc.Scripts() {
		w.runSource(p, fmt.Sprintf("%s#script%d", url, i), script)
	}

	if _, err := w.run(p, func() (goja.Value, error) {
		p.dispatch(doc.root(), p.newEvent("DOMContentLoaded", true))
		return nil, nil
	}); err != nil {
		w.logger.Warn("DOMContentLoaded handler failed", zap.Error(err))
	}

	w.logger.Info("Page loaded", zap.String("url", url))
}

func (w *Window) runSource(p *page, name, source string) {
	prg, err := goja.Compile(name, source, false)
	if err != nil {
		w.logger.Warn("Script does not compile", zap.String("script", name), zap.Error(err))
		return
	}
	if _, err := w.run(p, func() (goja.Value, error) { return p.vm.RunProgram(prg) }); err != nil {
		w.logger.Warn("Script failed", zap.String("script", name), zap.Error(err))
	}
}

func (w *Window) appendConsole(entry LogEntry) {
	w.mu.Lock()
	w.console = append(w.console, entry)
	if limit := w.cfg.ConsoleBuffer; limit > 0 && len(w.console) > limit {
		w.console = append([]LogEntry{}, w.console[len(w.console)-limit:]...)
	}
	w.mu.Unlock()

	w.logger.Debug("Console", zap.String("level", entry.Level), zap.String("message", entry.Message))
}

// exportValue converts a completion value to Go, unwrapping settled
// promises.
func exportValue(val goja.Value) (interface{}, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}

	if p, ok := val.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			return exportValue(p.Result())
		case goja.PromiseStateRejected:
			return nil, fmt.Errorf("promise rejected: %s", p.Result().String())
		default:
			return nil, nil
		}
	}
	return val.Export(), nil
}
