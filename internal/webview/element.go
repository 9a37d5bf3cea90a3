package webview

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// newDocument builds the script-facing document object.
func (p *page) newDocument() *goja.Object {
	vm := p.vm
	doc := vm.NewObject()
	root := p.doc.root()
	p.elements[root] = doc

	doc.Set("URL", p.url)
	doc.Set("readyState", "complete")
	p.accessor(doc, "title", func() interface{} { return p.doc.Title() }, nil)
	p.accessor(doc, "body", func() interface{} { return p.element(p.doc.body()) }, nil)
	p.accessor(doc, "documentElement", func() interface{} {
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return p.element(c)
			}
		}
		return goja.Null()
	}, nil)

	doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return p.first(p.query(root, call.Argument(0).String()))
	})
	doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return p.list(p.query(root, call.Argument(0).String()))
	})
	doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return p.first(p.query(root, `[id="`+cssString(call.Argument(0).String())+`"]`))
	})
	doc.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		var sel strings.Builder
		for _, c := range strings.Fields(call.Argument(0).String()) {
			sel.WriteString(`[class~="` + cssString(c) + `"]`)
		}
		if sel.Len() == 0 {
			return p.vm.NewArray()
		}
		return p.list(p.query(root, sel.String()))
	})
	doc.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return p.list(p.query(root, call.Argument(0).String()))
	})
	doc.Set("evaluateXPath", func(call goja.FunctionCall) goja.Value {
		nodes, err := p.doc.XPath(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return p.list(nodes)
	})

	p.bindEvents(doc, root)
	return doc
}

// element returns the script object for n, creating it on first use so
// the same node always maps to the same object.
func (p *page) element(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := p.elements[n]; ok {
		return obj
	}
	obj := p.newElement(n)
	p.elements[n] = obj
	return obj
}

func (p *page) newElement(n *html.Node) *goja.Object {
	vm := p.vm
	el := vm.NewObject()

	tag := strings.ToUpper(n.Data)
	el.Set("tagName", tag)
	el.Set("nodeName", tag)
	el.Set("style", vm.NewObject())

	p.attrAccessor(el, n, "id")
	p.attrAccessor(el, n, "name")
	p.attrAccessor(el, n, "type")
	p.attrAccessor(el, n, "href")
	p.attrAccessor(el, n, "placeholder")
	p.accessor(el, "className", func() interface{} {
		v, _ := p.doc.attr(n, "class")
		return v
	}, func(v goja.Value) { p.doc.setAttr(n, "class", v.String()) })

	p.accessor(el, "textContent", func() interface{} { return p.doc.text(n) },
		func(v goja.Value) { p.doc.setText(n, v.String()) })
	p.accessor(el, "innerText", func() interface{} { return strings.TrimSpace(p.doc.text(n)) },
		func(v goja.Value) { p.doc.setText(n, v.String()) })
	p.accessor(el, "innerHTML", func() interface{} { return p.doc.innerHTML(n) }, nil)
	p.accessor(el, "outerHTML", func() interface{} { return outerHTML(p.doc, n) }, nil)

	p.accessor(el, "value", func() interface{} { return p.valueOf(n) },
		func(v goja.Value) { p.setValue(n, v.String()) })
	p.accessor(el, "checked", func() interface{} { return p.hasAttr(n, "checked") },
		func(v goja.Value) { p.setFlag(n, "checked", v.ToBoolean()) })
	p.accessor(el, "selected", func() interface{} { return p.hasAttr(n, "selected") },
		func(v goja.Value) { p.setFlag(n, "selected", v.ToBoolean()) })
	p.accessor(el, "disabled", func() interface{} { return p.hasAttr(n, "disabled") },
		func(v goja.Value) { p.setFlag(n, "disabled", v.ToBoolean()) })

	p.accessor(el, "parentElement", func() interface{} {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return p.element(n.Parent)
	}, nil)
	p.accessor(el, "children", func() interface{} {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		return p.list(kids)
	}, nil)
	p.accessor(el, "attributes", func() interface{} {
		attrs := vm.NewObject()
		for k, v := range p.doc.attrs(n) {
			attrs.Set(k, v)
		}
		return attrs
	}, nil)

	el.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := p.doc.attr(n, call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	el.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		p.doc.setAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	el.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(p.hasAttr(n, call.Argument(0).String()))
	})
	el.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		p.doc.removeAttr(n, call.Argument(0).String())
		return goja.Undefined()
	})
	el.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return p.first(p.query(n, call.Argument(0).String()))
	})
	el.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return p.list(p.query(n, call.Argument(0).String()))
	})
	el.Set("closest", func(call goja.FunctionCall) goja.Value {
		matches := p.query(p.doc.root(), call.Argument(0).String())
		for cur := n; cur != nil; cur = cur.Parent {
			for _, m := range matches {
				if m == cur {
					return p.element(cur)
				}
			}
		}
		return goja.Null()
	})
	el.Set("click", func(goja.FunctionCall) goja.Value {
		p.click(n)
		return goja.Undefined()
	})
	el.Set("focus", func(goja.FunctionCall) goja.Value {
		p.dispatch(n, p.newEvent("focus", false))
		return goja.Undefined()
	})
	el.Set("blur", func(goja.FunctionCall) goja.Value {
		p.dispatch(n, p.newEvent("blur", false))
		return goja.Undefined()
	})
	el.Set("scrollIntoView", func(goja.FunctionCall) goja.Value {
		p.doc.RecordChange(n, "scroll")
		return goja.Undefined()
	})
	el.Set("getBoundingClientRect", func(goja.FunctionCall) goja.Value {
		// Nothing is laid out; every element reports an empty box.
		rect := vm.NewObject()
		for _, k := range []string{"x", "y", "top", "left", "right", "bottom", "width", "height"} {
			rect.Set(k, 0)
		}
		return rect
	})

	p.bindEvents(el, n)
	return el
}

func (p *page) bindEvents(obj *goja.Object, n *html.Node) {
	vm := p.vm
	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		fn := call.Argument(1)
		if _, ok := goja.AssertFunction(fn); !ok {
			return goja.Undefined()
		}
		typ := call.Argument(0).String()
		if p.listeners[n] == nil {
			p.listeners[n] = make(map[string][]goja.Value)
		}
		p.listeners[n][typ] = append(p.listeners[n][typ], fn)
		return goja.Undefined()
	})
	obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		fn := call.Argument(1)
		kept := p.listeners[n][typ][:0]
		for _, l := range p.listeners[n][typ] {
			if !l.SameAs(fn) {
				kept = append(kept, l)
			}
		}
		if p.listeners[n] != nil {
			p.listeners[n][typ] = kept
		}
		return goja.Undefined()
	})
	obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		ev, ok := call.Argument(0).(*goja.Object)
		if !ok {
			panic(vm.NewTypeError("dispatchEvent requires an event object"))
		}
		return vm.ToValue(p.dispatch(n, ev))
	})
}

// click performs the default action of a user click: checkboxes toggle,
// radios select, then click (and input/change when state changed) fire.
func (p *page) click(n *html.Node) {
	if p.hasAttr(n, "disabled") {
		return
	}
	p.doc.RecordChange(n, "click")

	toggled := false
	if n.Data == "input" {
		kind, _ := p.doc.attr(n, "type")
		switch strings.ToLower(kind) {
		case "checkbox":
			p.setFlag(n, "checked", !p.hasAttr(n, "checked"))
			toggled = true
		case "radio":
			if !p.hasAttr(n, "checked") {
				p.uncheckGroup(n)
				p.setFlag(n, "checked", true)
				toggled = true
			}
		}
	}

	p.dispatch(n, p.newEvent("click", true))
	if toggled {
		p.dispatch(n, p.newEvent("input", true))
		p.dispatch(n, p.newEvent("change", true))
	}
}

func (p *page) uncheckGroup(n *html.Node) {
	name, ok := p.doc.attr(n, "name")
	if !ok || name == "" {
		return
	}
	group, err := p.doc.Query(`input[type="radio"][name="` + cssString(name) + `"]`)
	if err != nil {
		return
	}
	for _, r := range group {
		if r != n && p.hasAttr(r, "checked") {
			p.setFlag(r, "checked", false)
		}
	}
}

// dispatch delivers ev to target and, when it bubbles, to each ancestor.
// Inline on<type> attributes run before added listeners. It reports
// whether the default action was not prevented.
func (p *page) dispatch(target *html.Node, ev *goja.Object) bool {
	typ := ev.Get("type").String()
	bubbles := ev.Get("bubbles").ToBoolean()
	ev.Set("target", p.element(target))

	for n := target; n != nil; n = n.Parent {
		if n.Type != html.ElementNode && n.Type != html.DocumentNode {
			continue
		}
		cur := p.element(n)
		ev.Set("currentTarget", cur)

		if n.Type == html.ElementNode {
			if body, ok := p.doc.attr(n, "on"+typ); ok && body != "" {
				p.callHandler(p.inlineHandler(body), cur, ev)
			}
		}
		listeners := append([]goja.Value{}, p.listeners[n][typ]...)
		for _, l := range listeners {
			fn, _ := goja.AssertFunction(l)
			p.callHandler(fn, cur, ev)
		}

		if !bubbles || ev.Get("__stopped").ToBoolean() {
			break
		}
	}
	return !ev.Get("defaultPrevented").ToBoolean()
}

func (p *page) inlineHandler(body string) goja.Callable {
	v, err := p.vm.RunString("(function (event) {\n" + body + "\n})")
	if err != nil {
		p.w.logger.Warn("Inline handler does not compile", zap.Error(err))
		return nil
	}
	fn, _ := goja.AssertFunction(v)
	return fn
}

// callHandler runs an event handler, logging its exception the way a
// browser reports it and carrying on. Interrupts still unwind.
func (p *page) callHandler(fn goja.Callable, this goja.Value, ev *goja.Object) {
	if fn == nil {
		return
	}
	if _, err := fn(this, ev); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			panic(interrupted)
		}
		p.w.logger.Warn("Event handler failed", zap.Error(err))
	}
}

func (p *page) newEvent(typ string, bubbles bool) *goja.Object {
	ctor, ok := goja.AssertConstructor(p.vm.Get("Event"))
	if !ok {
		panic(p.vm.NewTypeError("Event is not a constructor"))
	}
	ev, err := ctor(nil, p.vm.ToValue(typ), p.vm.ToValue(map[string]interface{}{"bubbles": bubbles}))
	if err != nil {
		throw(p.vm, err)
	}
	return ev
}

func (p *page) query(scope *html.Node, selector string) []*html.Node {
	nodes, err := p.doc.queryWithin(scope, selector)
	if err != nil {
		panic(p.vm.NewGoError(err))
	}
	return nodes
}

func (p *page) first(nodes []*html.Node) goja.Value {
	if len(nodes) == 0 {
		return goja.Null()
	}
	return p.element(nodes[0])
}

func (p *page) list(nodes []*html.Node) goja.Value {
	items := make([]interface{}, len(nodes))
	for i, n := range nodes {
		items[i] = p.element(n)
	}
	return p.vm.NewArray(items...)
}

// accessor defines a getter (and optional setter) property on obj.
func (p *page) accessor(obj *goja.Object, name string, get func() interface{}, set func(goja.Value)) {
	getter := p.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return p.vm.ToValue(get())
	})
	var setter goja.Value
	if set != nil {
		setter = p.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		p.w.logger.Error("Define property failed", zap.String("property", name), zap.Error(err))
	}
}

func (p *page) attrAccessor(el *goja.Object, n *html.Node, name string) {
	p.accessor(el, name, func() interface{} {
		v, _ := p.doc.attr(n, name)
		return v
	}, func(v goja.Value) { p.doc.setAttr(n, name, v.String()) })
}

func (p *page) hasAttr(n *html.Node, name string) bool {
	_, ok := p.doc.attr(n, name)
	return ok
}

func (p *page) setFlag(n *html.Node, name string, on bool) {
	if on {
		p.doc.setAttr(n, name, "")
	} else {
		p.doc.removeAttr(n, name)
	}
}

// valueOf returns the form value of n: textarea text, the selected
// option's value for select, the value attribute otherwise.
func (p *page) valueOf(n *html.Node) string {
	switch n.Data {
	case "textarea":
		return p.doc.text(n)
	case "select":
		if opt := p.selectedOption(n); opt != nil {
			return p.optionValue(opt)
		}
		return ""
	case "option":
		return p.optionValue(n)
	default:
		v, _ := p.doc.attr(n, "value")
		return v
	}
}

func (p *page) setValue(n *html.Node, value string) {
	switch n.Data {
	case "textarea":
		p.doc.setText(n, value)
	case "select":
		options, err := p.doc.queryWithin(n, "option")
		if err != nil {
			return
		}
		for _, opt := range options {
			p.setFlag(opt, "selected", p.optionValue(opt) == value)
		}
	default:
		p.doc.setAttr(n, "value", value)
	}
}

func (p *page) selectedOption(n *html.Node) *html.Node {
	options, err := p.doc.queryWithin(n, "option")
	if err != nil || len(options) == 0 {
		return nil
	}
	for _, opt := range options {
		if p.hasAttr(opt, "selected") {
			return opt
		}
	}
	return options[0]
}

func (p *page) optionValue(n *html.Node) string {
	if v, ok := p.doc.attr(n, "value"); ok {
		return v
	}
	return strings.TrimSpace(p.doc.text(n))
}

func outerHTML(d *Document, n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return fmt.Sprintf("<%s>", n.Data)
	}
	return b.String()
}

// cssString escapes s for use inside a double-quoted CSS string.
func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
