// Package backendgen turns a BackendSpec into SQL, form components, edge
// functions and auth components.
package backendgen

import (
	"bytes"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

var funcMap = template.FuncMap{
	"title":  upperFirst,
	"lower":  strings.ToLower,
	"pascal": pascal,
	"ident":  jsIdent,
}

// upperFirst upper-cases the first rune, not the first byte.
func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// pascal joins words split on '-', '_' and spaces: "contact_form" -> "ContactForm".
func pascal(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	var b strings.Builder
	for _, w := range words {
		b.WriteString(upperFirst(strings.ToLower(w)))
	}
	return b.String()
}

// sqlIdent keeps a name usable as an unquoted Postgres identifier.
func sqlIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == ' ':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "t_" + out
	}
	return out
}

// jsIdent keeps a name usable as a JavaScript property identifier.
func jsIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '$':
			b.WriteRune(r)
		case r == '-' || r == ' ':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "field_" + out
	}
	return out
}

// slug keeps a name usable as a function directory.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		out = "function"
	}
	return out
}

// mustParse compiles a package template once at init.
func mustParse(name, tmpl string) *template.Template {
	return template.Must(template.New(name).Funcs(funcMap).Parse(tmpl))
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
