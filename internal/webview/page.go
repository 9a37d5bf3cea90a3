package webview

import (
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// prelude defines the event constructors page scripts expect.
var prelude = goja.MustCompile("prelude.js", `
function Event(type, init) {
	this.type = String(type);
	this.bubbles = !!(init && init.bubbles);
	this.cancelable = !!(init && init.cancelable);
	this.defaultPrevented = false;
	this.target = null;
	this.currentTarget = null;
	this.__stopped = false;
}
Event.prototype.preventDefault = function () { if (this.cancelable) this.defaultPrevented = true; };
Event.prototype.stopPropagation = function () { this.__stopped = true; };

function KeyboardEvent(type, init) {
	Event.call(this, type, init);
	this.key = (init && init.key) || '';
	this.code = (init && init.code) || '';
}
KeyboardEvent.prototype = Object.create(Event.prototype);

function MouseEvent(type, init) { Event.call(this, type, init); }
MouseEvent.prototype = Object.create(Event.prototype);

var InputEvent = Event;
`, false)

// page is one navigation of a window: a runtime, its document, and the
// state scripts attached to it. Only the loop goroutine touches it.
type page struct {
	w         *Window
	vm        *goja.Runtime
	doc       *Document
	url       string
	document  *goja.Object
	timers    map[int64]*time.Timer
	nextTimer int64
	elements  map[*html.Node]*goja.Object
	listeners map[*html.Node]map[string][]goja.Value
}

func newPage(w *Window, url string, doc *Document) *page {
	return &page{
		w:         w,
		vm:        goja.New(),
		doc:       doc,
		url:       url,
		timers:    make(map[int64]*time.Timer),
		elements:  make(map[*html.Node]*goja.Object),
		listeners: make(map[*html.Node]map[string][]goja.Value),
	}
}

func (p *page) clearTimer(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
	return goja.Undefined()
}

// dispose stops the page's pending timers.
func (p *page) dispose() {
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
}
