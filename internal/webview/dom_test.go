package webview

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formPage = `<!DOCTYPE html>
<html>
<head><title>Form</title></head>
<body>
  <div id="app" class="container main">
    <h1 class="title">Hello</h1>
    <input id="email" name="email" type="text" value="a@b.c">
    <textarea id="notes">first</textarea>
    <input id="agree" type="checkbox">
    <input id="r1" type="radio" name="size" value="s" checked>
    <input id="r2" type="radio" name="size" value="m">
    <select id="color">
      <option value="red">Red</option>
      <option value="blue" selected>Blue</option>
      <option>Green</option>
    </select>
    <button id="go" onclick="window.clicked = (window.clicked || 0) + 1">Go</button>
    <button id="off" disabled onclick="window.offClicked = true">Off</button>
  </div>
</body>
</html>`

func loadForm(t *testing.T) *Window {
	t.Helper()
	_, w := newTestWindow(t, DefaultConfig())
	require.NoError(t, w.LoadHTML(context.Background(), "http://app.local/form", formPage))
	return w
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(formPage))
	require.NoError(t, err)

	assert.Equal(t, "Form", doc.Title())

	nodes, err := doc.Query("input[type=radio]")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	_, err = doc.Query("div[")
	assert.Error(t, err)

	nodes, err = doc.XPath("//option")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	_, err = doc.XPath("//[")
	assert.Error(t, err)
}

func TestDocumentQueries(t *testing.T) {
	w := loadForm(t)

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{name: "title", script: "document.title", want: "Form"},
		{name: "query selector", script: "document.querySelector('h1.title').textContent", want: "Hello"},
		{name: "no match", script: "document.querySelector('#missing')", want: nil},
		{name: "query all", script: "document.querySelectorAll('input').length", want: int64(4)},
		{name: "by id", script: "document.getElementById('email').value", want: "a@b.c"},
		{name: "by class", script: "document.getElementsByClassName('container main').length", want: int64(1)},
		{name: "by tag", script: "document.getElementsByTagName('option').length", want: int64(3)},
		{name: "xpath", script: "document.evaluateXPath('//button')[1].id", want: "off"},
		{name: "scoped query", script: "document.getElementById('color').querySelectorAll('option').length", want: int64(3)},
		{name: "closest", script: "document.getElementById('go').closest('div').id", want: "app"},
		{name: "identity", script: "document.getElementById('go') === document.querySelector('button')", want: true},
		{name: "tag name", script: "document.getElementById('notes').tagName", want: "TEXTAREA"},
		{name: "parent", script: "document.getElementById('email').parentElement.className", want: "container main"},
		{name: "body", script: "document.body.children.length", want: int64(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, execute(t, w, tt.script))
		})
	}
}

func TestInvalidSelectorThrows(t *testing.T) {
	w := loadForm(t)

	msg := execute(t, w, "var m = null; try { document.querySelector('div['); } catch (e) { m = e.message; } m")
	assert.Contains(t, msg, "invalid selector")
}

func TestFormValues(t *testing.T) {
	w := loadForm(t)

	t.Run("input", func(t *testing.T) {
		execute(t, w, "document.getElementById('email').value = 'x@y.z'")
		assert.Equal(t, "x@y.z", execute(t, w, "document.getElementById('email').value"))
		assert.Equal(t, "x@y.z", execute(t, w, "document.getElementById('email').getAttribute('value')"))
	})

	t.Run("textarea", func(t *testing.T) {
		assert.Equal(t, "first", execute(t, w, "document.getElementById('notes').value"))
		execute(t, w, "document.getElementById('notes').value = 'second'")
		assert.Equal(t, "second", execute(t, w, "document.getElementById('notes').textContent"))
	})

	t.Run("select", func(t *testing.T) {
		assert.Equal(t, "blue", execute(t, w, "document.getElementById('color').value"))
		execute(t, w, "document.getElementById('color').value = 'Green'")
		assert.Equal(t, "Green", execute(t, w, "document.getElementById('color').value"))
	})

	t.Run("attributes", func(t *testing.T) {
		execute(t, w, "var h = document.querySelector('h1'); h.setAttribute('data-x', '1')")
		assert.Equal(t, true, execute(t, w, "document.querySelector('h1').hasAttribute('data-x')"))
		execute(t, w, "document.querySelector('h1').removeAttribute('data-x')")
		assert.Equal(t, nil, execute(t, w, "document.querySelector('h1').getAttribute('data-x')"))
	})
}

func TestClick(t *testing.T) {
	w := loadForm(t)

	t.Run("inline handler", func(t *testing.T) {
		execute(t, w, "document.getElementById('go').click(); document.getElementById('go').click()")
		assert.Equal(t, int64(2), execute(t, w, "window.clicked"))
	})

	t.Run("disabled", func(t *testing.T) {
		execute(t, w, "document.getElementById('off').click()")
		assert.Equal(t, "undefined", execute(t, w, "typeof window.offClicked"))
	})

	t.Run("checkbox toggles and fires change", func(t *testing.T) {
		execute(t, w, `
			var changes = 0;
			document.getElementById('agree').addEventListener('change', function () { changes++; });
			document.getElementById('agree').click();
		`)
		assert.Equal(t, true, execute(t, w, "document.getElementById('agree').checked"))
		assert.Equal(t, int64(1), execute(t, w, "changes"))

		execute(t, w, "document.getElementById('agree').click()")
		assert.Equal(t, false, execute(t, w, "document.getElementById('agree').checked"))
	})

	t.Run("radio group", func(t *testing.T) {
		execute(t, w, "document.getElementById('r2').click()")
		assert.Equal(t, true, execute(t, w, "document.getElementById('r2').checked"))
		assert.Equal(t, false, execute(t, w, "document.getElementById('r1').checked"))
	})

	t.Run("bubbles to ancestors", func(t *testing.T) {
		execute(t, w, `
			var seen = [];
			document.getElementById('app').addEventListener('click', function (e) { seen.push(e.target.id + '@' + this.id); });
			document.getElementById('go').click();
		`)
		assert.Equal(t, "go@app", execute(t, w, "seen.join(',')"))
	})

	changes := w.Changes()
	require.NotEmpty(t, changes)
	var clicks int
	for _, c := range changes {
		if c.Type == "click" {
			clicks++
		}
	}
	assert.GreaterOrEqual(t, clicks, 5)
}

func TestDispatchEvent(t *testing.T) {
	w := loadForm(t)

	got := execute(t, w, `
		var el = document.getElementById('email');
		var log = [];
		function onInput(e) { log.push(e.type); }
		el.addEventListener('input', onInput);
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.removeEventListener('input', onInput);
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.addEventListener('keydown', function (e) { log.push(e.key); e.preventDefault(); });
		var notPrevented = el.dispatchEvent(new KeyboardEvent('keydown', {key: 'Enter', cancelable: true}));
		log.push(String(notPrevented));
		log.join(',');
	`)
	assert.Equal(t, "input,Enter,false", got)
}
