package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/bridge"
	"github.com/GriffinCanCode/webview-mcp/internal/correlator"
	"github.com/GriffinCanCode/webview-mcp/internal/events"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webview-mcp/internal/results"
	"github.com/GriffinCanCode/webview-mcp/internal/surface"
	"github.com/GriffinCanCode/webview-mcp/internal/webview"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeInvoker struct {
	invoke  func(req correlator.Request) (json.RawMessage, error)
	command func(name string, args json.RawMessage) (json.RawMessage, error)
}

func (f *fakeInvoker) Invoke(_ context.Context, req correlator.Request) (json.RawMessage, error) {
	return f.invoke(req)
}

func (f *fakeInvoker) InvokeCommand(_ context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return f.command(name, args)
}

type readiness bool

func (r readiness) Ready() bool { return bool(r) }

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func newTestRouter(inv Invoker, ready bool, store ResultStore) (*gin.Engine, *monitoring.Metrics) {
	metrics := monitoring.NewMetrics()
	sink := NewResultSink(store, metrics, nil)
	h := NewHandlers(inv, readiness(ready), sink, func() map[string]interface{} {
		return map[string]interface{}{"pending_results": 0}
	}, nil)
	return NewRouter(RouterConfig{Handlers: h, Metrics: metrics}), metrics
}

func TestHealth(t *testing.T) {
	for _, ready := range []bool{true, false} {
		router, _ := newTestRouter(&fakeInvoker{}, ready, results.New(results.Options{}))
		w := get(router, "/api/health")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"status":"healthy","webview_ready":%t}`, ready), w.Body.String())
	}
}

func TestExecuteEnvelope(t *testing.T) {
	inv := &fakeInvoker{invoke: func(req correlator.Request) (json.RawMessage, error) {
		switch req.Tool {
		case "ping":
			return json.RawMessage(`{"pong":true}`), nil
		case "echo":
			return req.Params, nil
		case "boom":
			return nil, &correlator.Error{Code: correlator.CodeToolError, Message: "nope"}
		case "slow":
			return nil, &correlator.Error{Code: correlator.CodeTimeout, Message: "Timeout waiting for tool execution result"}
		case "nil":
			return nil, nil
		default:
			return nil, fmt.Errorf("surface gone")
		}
	}}
	router, _ := newTestRouter(inv, true, results.New(results.Options{}))

	tests := []struct {
		name     string
		body     string
		wantCode int
		want     string
	}{
		{
			name:     "ping",
			body:     `{"tool":"ping","params":{}}`,
			wantCode: http.StatusOK,
			want:     `{"success":true,"data":{"pong":true},"error":null}`,
		},
		{
			name:     "tool error",
			body:     `{"tool":"boom","params":{}}`,
			wantCode: http.StatusOK,
			want:     `{"success":false,"data":null,"error":{"code":"TOOL_ERROR","message":"nope"}}`,
		},
		{
			name:     "timeout",
			body:     `{"tool":"slow","params":{}}`,
			wantCode: http.StatusOK,
			want:     `{"success":false,"data":null,"error":{"code":"TIMEOUT","message":"Timeout waiting for tool execution result"}}`,
		},
		{
			name:     "missing params default to empty object",
			body:     `{"tool":"echo"}`,
			wantCode: http.StatusOK,
			want:     `{"success":true,"data":{},"error":null}`,
		},
		{
			name:     "null data",
			body:     `{"tool":"nil"}`,
			wantCode: http.StatusOK,
			want:     `{"success":true,"data":null,"error":null}`,
		},
		{
			name:     "unclassified error",
			body:     `{"tool":"other"}`,
			wantCode: http.StatusOK,
			want:     `{"success":false,"data":null,"error":{"code":"EXECUTION_ERROR","message":"surface gone"}}`,
		},
		{
			name:     "missing tool",
			body:     `{"params":{}}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed body",
			body:     `{"tool":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/api/execute", tt.body)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusBadRequest {
				var env Envelope
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
				assert.False(t, env.Success)
				require.NotNil(t, env.Error)
				assert.Equal(t, CodeInvalidRequest, env.Error.Code)
				return
			}
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestInvokeEnvelope(t *testing.T) {
	var gotArgs string
	inv := &fakeInvoker{command: func(name string, args json.RawMessage) (json.RawMessage, error) {
		gotArgs = string(args)
		if name == "greet" {
			return json.RawMessage(`"Hello, Ada! Greetings from the webview host!"`), nil
		}
		return nil, &correlator.Error{Code: correlator.CodeToolError, Message: "unknown command: " + name}
	}}
	router, _ := newTestRouter(inv, true, results.New(results.Options{}))

	w := post(router, "/api/invoke", `{"command":"greet","args":{"name":"Ada"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":"Hello, Ada! Greetings from the webview host!","error":null}`, w.Body.String())
	assert.JSONEq(t, `{"name":"Ada"}`, gotArgs)

	w = post(router, "/api/invoke", `{"command":"nope"}`)
	assert.JSONEq(t, `{"success":false,"data":null,"error":{"code":"TOOL_ERROR","message":"unknown command: nope"}}`, w.Body.String())

	w = post(router, "/api/invoke", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreResult(t *testing.T) {
	store := results.New(results.Options{})
	router, metrics := newTestRouter(&fakeInvoker{}, true, store)

	w := post(router, "/api/results", `{"id":"abc","result":{"success":true,"data":1}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ResultsStored))

	raw, ok := store.TakeIfPresent("abc")
	require.True(t, ok)
	assert.JSONEq(t, `{"success":true,"data":1}`, string(raw))

	w = post(router, "/api/results", `{"id":"no-result"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	raw, ok = store.TakeIfPresent("no-result")
	require.True(t, ok)
	assert.Equal(t, "null", string(raw))

	for _, body := range []string{`{"result":1}`, `not json`, ``} {
		w = post(router, "/api/results", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestStats(t *testing.T) {
	router, _ := newTestRouter(&fakeInvoker{}, false, results.New(results.Options{}))
	w := get(router, "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"pending_results":0},"error":null}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(&fakeInvoker{}, true, results.New(results.Options{}))
	get(router, "/api/health")

	w := get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `webview_mcp_http_requests_total{method="GET",path="/api/health",status="200"} 1`)
}

func TestResultSinkPublishes(t *testing.T) {
	hub := events.NewHub(nil)
	sub := hub.Subscribe(1)
	sink := NewResultSink(results.New(results.Options{}), nil, hub)

	sink.Put("abc", nil)
	ev := <-sub.C()
	assert.Equal(t, events.ResultStored, ev.Type)
	assert.Equal(t, "abc", ev.ID)
}

// loopbackInjector answers every dispatched wrapper by posting the
// canned result for its tool to the gateway's callback route.
type loopbackInjector struct {
	router  http.Handler
	replies map[string]string
	err     error
}

var wrapperID = regexp.MustCompile(`var id = "([^"]+)";`)
var wrapperTool = regexp.MustCompile(`__WEBVIEW_MCP\.\w+\("([^"]*)"`)

func (l *loopbackInjector) EnsureCapability() error { return l.err }

func (l *loopbackInjector) RunFireAndForget(code string) error {
	id := wrapperID.FindStringSubmatch(code)[1]
	tool := wrapperTool.FindStringSubmatch(code)[1]
	reply, ok := l.replies[tool]
	if !ok {
		return nil
	}
	go func() {
		body, _ := json.Marshal(map[string]json.RawMessage{
			"id":     json.RawMessage(fmt.Sprintf("%q", id)),
			"result": json.RawMessage(reply),
		})
		post(l.router, "/api/results", string(body))
	}()
	return nil
}

func newLoopbackRouter(t *testing.T, replies map[string]string, injectErr error) http.Handler {
	t.Helper()
	store := results.New(results.Options{})
	inj := &loopbackInjector{replies: replies, err: injectErr}
	c := correlator.New(inj, store, correlator.Options{MaxAttempts: 10, PollInterval: 10 * time.Millisecond}, nil)
	sink := NewResultSink(store, nil, nil)
	router := NewRouter(RouterConfig{Handlers: NewHandlers(c, readiness(injectErr == nil), sink, nil, nil)})
	inj.router = router
	return router
}

func TestCorrelatedExecution(t *testing.T) {
	router := newLoopbackRouter(t, map[string]string{
		"ping":    `{"success":true,"data":{"pong":true}}`,
		"boom":    `{"success":false,"error":{"message":"nope"}}`,
		"lenient": `{"success":true}`,
	}, nil)

	tests := []struct {
		tool string
		want string
	}{
		{tool: "ping", want: `{"success":true,"data":{"pong":true},"error":null}`},
		{tool: "boom", want: `{"success":false,"data":null,"error":{"code":"TOOL_ERROR","message":"nope"}}`},
		{tool: "lenient", want: `{"success":true,"data":{"success":true},"error":null}`},
		{tool: "silent", want: `{"success":false,"data":null,"error":{"code":"TIMEOUT","message":"Timeout waiting for tool execution result"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			w := post(router, "/api/execute", fmt.Sprintf(`{"tool":%q,"params":{}}`, tt.tool))
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestConcurrentExecution(t *testing.T) {
	replies := make(map[string]string)
	for i := 0; i < 10; i++ {
		replies[fmt.Sprintf("tool-%d", i)] = fmt.Sprintf(`{"success":true,"data":%d}`, i)
	}
	router := newLoopbackRouter(t, replies, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := post(router, "/api/execute", fmt.Sprintf(`{"tool":"tool-%d","params":{}}`, i))
			assert.JSONEq(t, fmt.Sprintf(`{"success":true,"data":%d,"error":null}`, i), w.Body.String())
		}(i)
	}
	wg.Wait()
}

func TestNoSurface(t *testing.T) {
	m := webview.NewManager(webview.DefaultConfig(), zap.NewNop())
	defer m.CloseAll()
	inj := bridge.NewInjector(surface.NewResolver(m, nil), nil)

	store := results.New(results.Options{})
	c := correlator.New(inj, store, correlator.Options{MaxAttempts: 2, PollInterval: 5 * time.Millisecond}, nil)
	router := NewRouter(RouterConfig{Handlers: NewHandlers(c, inj, NewResultSink(store, nil, nil), nil, nil)})

	w := get(router, "/api/health")
	assert.JSONEq(t, `{"status":"healthy","webview_ready":false}`, w.Body.String())

	w = post(router, "/api/execute", `{"tool":"ping","params":{}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSPECTOR_INJECTION_FAILED", env.Error.Code)
	assert.True(t, strings.HasPrefix(env.Error.Message, "Failed to inject inspector: "), env.Error.Message)
}

// TestEndToEnd runs the whole bridge over a real listener: the wrapper
// executes inside a webview window and posts back to the gateway.
func TestEndToEnd(t *testing.T) {
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	m := webview.NewManager(webview.DefaultConfig(), zap.NewNop())
	defer m.CloseAll()
	resolver := surface.NewResolver(m, nil)
	inj := bridge.NewInjector(resolver, nil)
	inj.Preload(m)

	store := results.New(results.Options{TTL: time.Minute})
	c := correlator.New(inj, store, correlator.Options{
		MaxAttempts:  50,
		PollInterval: 20 * time.Millisecond,
		CallbackURL:  srv.URL + "/api/results",
	}, nil)
	handler = NewRouter(RouterConfig{Handlers: NewHandlers(c, inj, NewResultSink(store, nil, nil), nil, nil)})

	w, err := m.Open(context.Background(), "main")
	require.NoError(t, err)
	require.NoError(t, w.LoadHTML(context.Background(), "http://app.local/",
		`<html><head><title>Gateway</title></head><body><h1 id="title">Hi</h1></body></html>`))

	call := func(body string) Envelope {
		resp, err := http.Post(srv.URL+"/api/execute", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var env Envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return env
	}

	env := call(`{"tool":"ping","params":{}}`)
	require.True(t, env.Success, "%+v", env.Error)
	assert.JSONEq(t, `{"pong":true}`, string(env.Data))

	env = call(`{"tool":"get_attribute","params":{"selector":"#title","attribute":"id"}}`)
	require.True(t, env.Success, "%+v", env.Error)
	assert.Contains(t, string(env.Data), `"value":"title"`)

	env = call(`{"tool":"nope","params":{}}`)
	assert.False(t, env.Success)
	assert.Equal(t, "TOOL_ERROR", env.Error.Code)
	assert.Equal(t, "Unknown tool: nope", env.Error.Message)

	assert.Equal(t, 0, store.Len())
}
