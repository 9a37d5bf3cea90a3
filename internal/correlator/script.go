package correlator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// wrapperTemplate calls one capability method and reports the outcome to
// the callback URL. It never rejects: callback failures are swallowed and
// the only observable effect is the POST.
const wrapperTemplate = `(function () {
  var id = %[1]s;
  var callback = %[2]s;
  function post(result) {
    var body;
    try {
      body = JSON.stringify({ id: id, result: result });
    } catch (e) {
      body = JSON.stringify({ id: id, result: { success: false, error: { message: 'Result is not serializable: ' + e.message } } });
    }
    return fetch(callback, {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: body
    }).catch(function () {});
  }
  Promise.resolve()
    .then(function () { return window.__WEBVIEW_MCP.%[3]s(%[4]s, %[5]s); })
    .then(function (data) {
      return post({ success: true, data: data === undefined ? null : data });
    }, function (err) {
      return post({ success: false, error: { message: (err && err.message) || 'Unknown error' } });
    });
})();`

// jsSafe escapes the two line terminators JSON permits inside strings but
// older script engines reject.
var jsSafe = strings.NewReplacer("\u2028", `\u2028`, "\u2029", `\u2029`)

// literal encodes s as a script string literal.
func literal(s string) (string, error) {
	out, err := sonic.MarshalString(s)
	if err != nil {
		return "", err
	}
	return jsSafe.Replace(out), nil
}

// buildWrapper renders the wrapper for one invocation. method is the
// capability function ("execute" or "invoke"); payload is embedded as a
// script expression and must be valid JSON.
func buildWrapper(id, callback, method, name string, payload json.RawMessage) (string, error) {
	idLit, err := literal(id)
	if err != nil {
		return "", err
	}
	urlLit, err := literal(callback)
	if err != nil {
		return "", err
	}
	nameLit, err := literal(name)
	if err != nil {
		return "", err
	}

	args := "null"
	if len(payload) > 0 {
		if !sonic.Valid(payload) {
			return "", fmt.Errorf("params are not valid JSON")
		}
		args = jsSafe.Replace(string(payload))
	}

	return fmt.Sprintf(wrapperTemplate, idLit, urlLit, method, nameLit, args), nil
}
