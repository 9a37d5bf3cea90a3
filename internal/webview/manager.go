package webview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/surface"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Manager owns the application's windows. It is the surface.Host the
// bridge resolves against and the surface.InitScripter it preloads into.
type Manager struct {
	cfg    Config
	logger *zap.Logger
	http   *resty.Client

	mu          sync.RWMutex
	windows     []*Window
	initScripts []string
	invoker     Invoker
	onClose     []func(label string)
}

var (
	_ surface.Host         = (*Manager)(nil)
	_ surface.InitScripter = (*Manager)(nil)
	_ surface.Surface      = (*Window)(nil)
)

// NewManager creates a window manager
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		http:   newHTTPClient(cfg),
	}
}

// newHTTPClient builds the client page fetches go through. Transient
// failures are retried; a final 5xx is handed to the page as a response.
func newHTTPClient(cfg Config) *resty.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = 500 * time.Millisecond
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.FetchTimeout).
		SetHeader("User-Agent", "webview-mcp/1.0")
}

// Open creates a window with label showing a blank page. Init scripts
// registered so far have run by the time it returns.
func (m *Manager) Open(ctx context.Context, label string) (*Window, error) {
	if _, exists := m.Window(label); exists {
		return nil, fmt.Errorf("window %q already open", label)
	}

	w := newWindow(label, m)
	if err := w.navigate(ctx, blankURL, blankDocument()); err != nil {
		w.Close()
		return nil, fmt.Errorf("open window %q: %w", label, err)
	}

	m.mu.Lock()
	for _, other := range m.windows {
		if other.label == label {
			m.mu.Unlock()
			w.Close()
			return nil, fmt.Errorf("window %q already open", label)
		}
	}
	m.windows = append(m.windows, w)
	m.mu.Unlock()

	m.logger.Info("Window opened", zap.String("label", label))
	return w, nil
}

// Window returns the open window with label.
func (m *Manager) Window(label string) (*Window, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.windows {
		if w.label == label {
			return w, true
		}
	}
	return nil, false
}

// Surface implements surface.Host.
func (m *Manager) Surface(label string) (surface.Surface, bool) {
	w, ok := m.Window(label)
	if !ok {
		return nil, false
	}
	return w, true
}

// Surfaces implements surface.Host.
func (m *Manager) Surfaces() []surface.Surface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]surface.Surface, len(m.windows))
	for i, w := range m.windows {
		out[i] = w
	}
	return out
}

// AddInitScript registers a script that runs before page scripts on every
// later navigation of every window.
func (m *Manager) AddInitScript(script string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initScripts = append(m.initScripts, script)
}

// SetInvoker sets the handler for __HOST__.invoke calls.
func (m *Manager) SetInvoker(inv Invoker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoker = inv
}

// OnClose registers fn to run after a window closes.
func (m *Manager) OnClose(fn func(label string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = append(m.onClose, fn)
}

// Close closes the window with label. Closing an unknown label is a no-op.
func (m *Manager) Close(label string) {
	m.mu.Lock()
	var closing *Window
	for i, w := range m.windows {
		if w.label == label {
			closing = w
			m.windows = append(m.windows[:i:i], m.windows[i+1:]...)
			break
		}
	}
	hooks := append([]func(string){}, m.onClose...)
	m.mu.Unlock()

	if closing == nil {
		return
	}
	closing.Close()
	for _, fn := range hooks {
		fn(label)
	}
	m.logger.Info("Window closed", zap.String("label", label))
}

// CloseAll closes every window in creation order.
func (m *Manager) CloseAll() {
	for _, s := range m.Surfaces() {
		m.Close(s.Label())
	}
}

func (m *Manager) initScriptList() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.initScripts...)
}

func (m *Manager) currentInvoker() Invoker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoker
}
