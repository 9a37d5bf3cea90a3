package webview

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is the parsed page a window's scripts operate on.
type Document struct {
	mu      sync.RWMutex
	doc     *goquery.Document
	changes []DOMChange
}

// ParseDocument parses an HTML page.
func ParseDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{doc: doc}, nil
}

func blankDocument() *Document {
	d, _ := ParseDocument(strings.NewReader("<html><head></head><body></body></html>"))
	return d
}

// Query returns every element matching a CSS selector, in document order.
func (d *Document) Query(selector string) ([]*html.Node, error) {
	return d.queryWithin(d.root(), selector)
}

func (d *Document) queryWithin(scope *html.Node, selector string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return goquery.NewDocumentFromNode(scope).FindMatcher(sel).Nodes, nil
}

// XPath returns every element matching an XPath expression.
func (d *Document) XPath(expr string) ([]*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nodes, err := htmlquery.QueryAll(d.root(), expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return nodes, nil
}

// Title returns the text of the <title> element.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// HTML renders the current document.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return ""
	}
	return out
}

// Scripts returns the inline script bodies in document order. External
// scripts (src=) are not fetched.
func (d *Document) Scripts() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var scripts []string
	d.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if t, ok := s.Attr("type"); ok && t != "" && t != "text/javascript" && t != "application/javascript" {
			return
		}
		if body := strings.TrimSpace(s.Text()); body != "" {
			scripts = append(scripts, body)
		}
	})
	return scripts
}

// Changes returns the DOM modifications made since the page loaded.
func (d *Document) Changes() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

func (d *Document) root() *html.Node {
	return d.doc.Get(0)
}

func (d *Document) body() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.Find("body").Get(0)
}

func (d *Document) attr(n *html.Node, name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (d *Document) attrs(n *html.Node) map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		out[a.Key] = a.Val
	}
	return out
}

func (d *Document) setAttr(n *html.Node, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			d.record(n, "set_attribute", name, value)
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	d.record(n, "set_attribute", name, value)
}

func (d *Document) removeAttr(n *html.Node, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.record(n, "remove_attribute", name, nil)
			return
		}
	}
}

func (d *Document) text(n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return goquery.NewDocumentFromNode(n).Text()
}

func (d *Document) setText(n *html.Node, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	d.record(n, "set_text", "textContent", value)
}

func (d *Document) innerHTML(n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out, err := goquery.NewDocumentFromNode(n).Html()
	if err != nil {
		return ""
	}
	return out
}

// RecordChange appends a change that did not go through an attribute or
// text mutation, such as a click.
func (d *Document) RecordChange(n *html.Node, kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(n, kind, "", nil)
}

// record appends a change. Caller holds mu.
func (d *Document) record(n *html.Node, kind, property string, value interface{}) {
	d.changes = append(d.changes, DOMChange{
		Type:     kind,
		Selector: describe(n),
		Property: property,
		Value:    value,
	})
}

// describe renders a short selector for n such as "input#email".
func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		if a.Key == "id" && a.Val != "" {
			b.WriteString("#" + a.Val)
			return b.String()
		}
	}
	for _, a := range n.Attr {
		if a.Key == "class" && a.Val != "" {
			b.WriteString("." + strings.Join(strings.Fields(a.Val), "."))
			break
		}
	}
	return b.String()
}
