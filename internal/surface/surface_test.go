package surface

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	label string
}

func (f *fakeSurface) Label() string            { return f.label }
func (f *fakeSurface) Eval(script string) error { return nil }

type fakeHost struct {
	mu       sync.Mutex
	surfaces []*fakeSurface
	lookups  atomic.Int32
}

func (h *fakeHost) add(label string) *fakeSurface {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &fakeSurface{label: label}
	h.surfaces = append(h.surfaces, s)
	return s
}

func (h *fakeHost) Surface(label string) (Surface, bool) {
	h.lookups.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.surfaces {
		if s.label == label {
			return s, true
		}
	}
	return nil, false
}

func (h *fakeHost) Surfaces() []Surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Surface, 0, len(h.surfaces))
	for _, s := range h.surfaces {
		out = append(out, s)
	}
	return out
}

func TestResolveNoSurfaces(t *testing.T) {
	r := NewResolver(&fakeHost{}, nil)

	_, err := r.Resolve()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, r.Ready())
}

func TestResolvePrefersMain(t *testing.T) {
	host := &fakeHost{}
	host.add("settings")
	main := host.add("main")

	r := NewResolver(host, nil)
	s, err := r.Resolve()
	require.NoError(t, err)
	assert.Same(t, main, s)
}

func TestResolveFallsBackToFirst(t *testing.T) {
	host := &fakeHost{}
	first := host.add("editor")
	host.add("preview")

	r := NewResolver(host, nil)
	s, err := r.Resolve()
	require.NoError(t, err)
	assert.Same(t, first, s)
}

func TestResolveCachesHandle(t *testing.T) {
	host := &fakeHost{}
	first := host.add("editor")

	r := NewResolver(host, nil)
	_, err := r.Resolve()
	require.NoError(t, err)
	lookups := host.lookups.Load()

	// A main window appearing later does not displace the cached handle.
	host.add("main")
	s, err := r.Resolve()
	require.NoError(t, err)
	assert.Same(t, first, s)
	assert.Equal(t, lookups, host.lookups.Load(), "cached resolve must not query the host")
}

func TestResolveAfterLateCreation(t *testing.T) {
	host := &fakeHost{}
	r := NewResolver(host, nil)

	_, err := r.Resolve()
	require.ErrorIs(t, err, ErrNotFound)

	main := host.add("main")
	s, err := r.Resolve()
	require.NoError(t, err)
	assert.Same(t, main, s)
	assert.True(t, r.Ready())
}

func TestConcurrentResolveConverges(t *testing.T) {
	host := &fakeHost{}
	host.add("main")
	r := NewResolver(host, nil)

	const n = 32
	var wg sync.WaitGroup
	got := make([]Surface, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Resolve()
			if err == nil {
				got[i] = s
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, int32(1), host.lookups.Load())
}

func TestInvalidate(t *testing.T) {
	host := &fakeHost{}
	host.add("editor")
	r := NewResolver(host, nil)
	_, err := r.Resolve()
	require.NoError(t, err)

	// Unrelated label keeps the cache.
	r.Invalidate("other")
	assert.Equal(t, int32(1), host.lookups.Load())

	main := host.add("main")
	r.Invalidate("editor")
	s, err := r.Resolve()
	require.NoError(t, err)
	assert.Same(t, main, s)
}
