package webview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var errNoInvoker = errors.New("host command surface not configured")

// setupGlobals configures the browser-like globals of a fresh page.
func (w *Window) setupGlobals(p *page) {
	vm := p.vm

	// Remove host globals scripts must not reach
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	global := vm.GlobalObject()
	vm.Set("window", global)
	vm.Set("self", global)

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, w.makeConsoleFunc(level))
	}
	vm.Set("console", console)

	vm.Set("setTimeout", w.makeTimerFunc(p, false))
	vm.Set("setInterval", w.makeTimerFunc(p, true))
	vm.Set("clearTimeout", p.clearTimer)
	vm.Set("clearInterval", p.clearTimer)

	vm.Set("fetch", w.makeFetchFunc(p))
	vm.Set("location", newLocation(vm, p.url))

	host := vm.NewObject()
	host.Set("invoke", w.makeInvokeFunc(p))
	vm.Set("__HOST__", host)

	if _, err := vm.RunProgram(prelude); err != nil {
		w.logger.Error("Prelude failed", zap.Error(err))
	}
	p.document = p.newDocument()
	vm.Set("document", p.document)

	vm.SetPromiseRejectionTracker(func(promise *goja.Promise, op goja.PromiseRejectionOperation) {
		if op == goja.PromiseRejectionReject {
			w.logger.Debug("Unhandled promise rejection", zap.String("reason", promise.Result().String()))
		}
	})
}

// makeConsoleFunc creates a console function
func (w *Window) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		w.appendConsole(LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		return goja.Undefined()
	}
}

func (w *Window) makeTimerFunc(p *page, repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(p.vm.NewTypeError("timer callback is not a function"))
		}

		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		if repeat && delay < time.Millisecond {
			delay = time.Millisecond
		}

		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		p.nextTimer++
		id := p.nextTimer

		var fire func()
		fire = func() {
			w.settle(p, func() error {
				if _, live := p.timers[id]; !live {
					return nil
				}
				if repeat {
					p.timers[id] = time.AfterFunc(delay, fire)
				} else {
					delete(p.timers, id)
				}
				_, err := fn(goja.Undefined(), args...)
				return err
			})
		}
		p.timers[id] = time.AfterFunc(delay, fire)

		return p.vm.ToValue(id)
	}
}

type fetchRequest struct {
	method  string
	url     string
	headers map[string]string
	body    string
}

func (w *Window) makeFetchFunc(p *page) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		vm := p.vm
		req, err := parseFetch(vm, p.url, call)
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}

		promise, resolve, reject := vm.NewPromise()
		go func() {
			ctx, cancel := context.WithTimeout(w.ctx, w.cfg.FetchTimeout)
			defer cancel()

			r := w.m.http.R().SetContext(ctx).SetHeaders(req.headers)
			if req.body != "" {
				r.SetBody(req.body)
			}
			resp, err := r.Execute(req.method, req.url)

			w.settle(p, func() error {
				if err != nil {
					reject(vm.NewGoError(fmt.Errorf("fetch %s: %w", req.url, err)))
					return nil
				}
				resolve(newResponse(vm, req.url, resp))
				return nil
			})
		}()

		return vm.ToValue(promise)
	}
}

func parseFetch(vm *goja.Runtime, base string, call goja.FunctionCall) (*fetchRequest, error) {
	target := call.Argument(0).String()
	if target == "" {
		return nil, errors.New("fetch requires a URL")
	}
	if u, err := neturl.Parse(target); err == nil && !u.IsAbs() {
		if b, err := neturl.Parse(base); err == nil && (b.Scheme == "http" || b.Scheme == "https") {
			target = b.ResolveReference(u).String()
		}
	}

	req := &fetchRequest{method: http.MethodGet, url: target, headers: map[string]string{}}

	init := call.Argument(1)
	if goja.IsUndefined(init) || goja.IsNull(init) {
		return req, nil
	}
	opts := init.ToObject(vm)
	if m := opts.Get("method"); present(m) {
		req.method = strings.ToUpper(m.String())
	}
	if h := opts.Get("headers"); present(h) {
		ho := h.ToObject(vm)
		for _, k := range ho.Keys() {
			req.headers[k] = ho.Get(k).String()
		}
	}
	if b := opts.Get("body"); present(b) {
		req.body = b.String()
	}
	return req, nil
}

func newResponse(vm *goja.Runtime, url string, resp *resty.Response) *goja.Object {
	status := resp.StatusCode()
	body := string(resp.Body())
	header := resp.Header()

	obj := vm.NewObject()
	obj.Set("ok", status >= 200 && status < 300)
	obj.Set("status", status)
	obj.Set("statusText", http.StatusText(status))
	obj.Set("url", url)

	headers := vm.NewObject()
	headers.Set("get", func(call goja.FunctionCall) goja.Value {
		v := header.Get(call.Argument(0).String())
		if v == "" {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	obj.Set("headers", headers)

	obj.Set("text", func(goja.FunctionCall) goja.Value {
		return settledPromise(vm, "resolve", vm.ToValue(body))
	})
	obj.Set("json", func(goja.FunctionCall) goja.Value {
		v, err := jsonParse(vm, body)
		if err != nil {
			return settledPromise(vm, "reject", vm.NewGoError(err))
		}
		return settledPromise(vm, "resolve", v)
	})
	return obj
}

// makeInvokeFunc exposes the host command surface as
// __HOST__.invoke(command, args) returning a promise.
func (w *Window) makeInvokeFunc(p *page) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		vm := p.vm
		inv := w.m.currentInvoker()
		if inv == nil {
			panic(vm.NewGoError(errNoInvoker))
		}

		command := call.Argument(0).String()
		args, err := jsonStringify(vm, call.Argument(1))
		if err != nil {
			panic(vm.NewTypeError(fmt.Sprintf("invoke %s: %v", command, err)))
		}

		promise, resolve, reject := vm.NewPromise()
		go func() {
			result, err := inv.Invoke(w.ctx, command, args)
			var raw []byte
			if err == nil {
				raw, err = sonic.Marshal(result)
			}

			w.settle(p, func() error {
				if err != nil {
					reject(vm.NewGoError(err))
					return nil
				}
				v, err := jsonParse(vm, string(raw))
				if err != nil {
					reject(vm.NewGoError(err))
					return nil
				}
				resolve(v)
				return nil
			})
		}()

		return vm.ToValue(promise)
	}
}

func newLocation(vm *goja.Runtime, href string) *goja.Object {
	loc := vm.NewObject()
	loc.Set("href", href)
	if u, err := neturl.Parse(href); err == nil {
		loc.Set("protocol", u.Scheme+":")
		loc.Set("host", u.Host)
		loc.Set("pathname", u.Path)
		loc.Set("search", formatSearch(u.RawQuery))
	}
	loc.Set("toString", func(goja.FunctionCall) goja.Value { return vm.ToValue(href) })
	return loc
}

func formatSearch(q string) string {
	if q == "" {
		return ""
	}
	return "?" + q
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// settledPromise returns Promise.resolve(v) or Promise.reject(v).
func settledPromise(vm *goja.Runtime, method string, v goja.Value) goja.Value {
	ctor := vm.Get("Promise").ToObject(vm)
	fn, ok := goja.AssertFunction(ctor.Get(method))
	if !ok {
		panic(vm.NewTypeError("Promise." + method + " is not a function"))
	}
	out, err := fn(ctor, v)
	if err != nil {
		throw(vm, err)
	}
	return out
}

func jsonParse(vm *goja.Runtime, text string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse is not a function")
	}
	return parse(goja.Undefined(), vm.ToValue(text))
}

// jsonStringify encodes v with the runtime's own JSON.stringify so wrapped
// Go values and plain objects serialize alike. Undefined encodes as null.
func jsonStringify(vm *goja.Runtime, v goja.Value) ([]byte, error) {
	if !present(v) {
		return []byte("null"), nil
	}
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil, errors.New("JSON.stringify is not a function")
	}
	out, err := stringify(goja.Undefined(), v)
	if err != nil {
		return nil, err
	}
	if !present(out) {
		return []byte("null"), nil
	}
	return []byte(out.String()), nil
}

// throw raises err in the running script, keeping JS exceptions intact.
func throw(vm *goja.Runtime, err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex)
	}
	panic(vm.NewGoError(err))
}
