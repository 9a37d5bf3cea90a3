package surface

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// MainLabel is the surface the resolver prefers.
const MainLabel = "main"

// ErrNotFound is returned when the host has no surface to offer yet.
var ErrNotFound = errors.New("no webview surface available")

// Surface is a script-capable rendering surface owned by the host.
// Eval only reports whether the script was accepted for execution; the
// script's own result is never returned.
type Surface interface {
	Label() string
	Eval(script string) error
}

// Host enumerates the surfaces the host application has created.
type Host interface {
	Surface(label string) (Surface, bool)
	// Surfaces returns every open surface in creation order.
	Surfaces() []Surface
}

// InitScripter registers scripts that run before page scripts on every
// navigation of every surface.
type InitScripter interface {
	AddInitScript(script string)
}

// Resolver lazily finds and caches the surface tools run in.
type Resolver struct {
	host   Host
	logger *zap.Logger

	mu     sync.Mutex
	cached Surface
}

// NewResolver creates a resolver over host.
func NewResolver(host Host, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{host: host, logger: logger}
}

// Resolve returns the cached surface, discovering it on first use: the
// surface labelled "main" if there is one, else the first one the host
// created. It returns ErrNotFound instead of waiting when none exist.
func (r *Resolver) Resolve() (Surface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached, nil
	}

	if s, ok := r.host.Surface(MainLabel); ok {
		r.cached = s
	} else if all := r.host.Surfaces(); len(all) > 0 {
		r.cached = all[0]
	} else {
		return nil, ErrNotFound
	}

	r.logger.Info("Resolved webview surface", zap.String("label", r.cached.Label()))
	return r.cached, nil
}

// Ready reports whether a surface currently resolves.
func (r *Resolver) Ready() bool {
	_, err := r.Resolve()
	return err == nil
}

// Invalidate forgets the cached surface if it carries label, so the next
// Resolve discovers again. Hosts call it when they close a surface.
func (r *Resolver) Invalidate(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.cached.Label() == label {
		r.logger.Info("Dropped cached webview surface", zap.String("label", label))
		r.cached = nil
	}
}
