package command

import (
	"bytes"
	"net/url"
	"strings"
)

// MaxRequestLine bounds how much of a request is ever scanned.
const MaxRequestLine = 2048

// Tokens are the pieces of a request line that markers are matched against.
type Tokens struct {
	Method string
	Path   []string // unescaped, non-empty path segments
	Query  []string // "key=value" pairs, unescaped
}

// Tokenize reads the first line of req ("METHOD TARGET VERSION") and splits the
// target into path segments and query pairs. It never looks past len(req) or
// MaxRequestLine and stops at the first CR, LF or NUL.
func Tokenize(req []byte) Tokens {
	if len(req) > MaxRequestLine {
		req = req[:MaxRequestLine]
	}
	if i := bytes.IndexAny(req, "\r\n\x00"); i >= 0 {
		req = req[:i]
	}

	var tk Tokens
	fields := bytes.Fields(req)
	var target string
	switch {
	case len(fields) >= 2:
		tk.Method = string(fields[0])
		target = string(fields[1])
	case len(fields) == 1 && bytes.HasPrefix(fields[0], []byte("/")):
		target = string(fields[0])
	default:
		return tk
	}

	// absolute-form targets carry scheme and host
	if i := strings.Index(target, "://"); i >= 0 {
		rest := target[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			target = rest[j:]
		} else {
			target = "/"
		}
	}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}

	path, query, _ := strings.Cut(target, "?")
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." {
			continue
		}
		if u, err := url.PathUnescape(seg); err == nil {
			seg = u
		}
		tk.Path = append(tk.Path, seg)
	}
	for _, pair := range strings.FieldsFunc(query, func(r rune) bool { return r == '&' || r == ';' }) {
		k, v, _ := strings.Cut(pair, "=")
		if u, err := url.QueryUnescape(k); err == nil {
			k = u
		}
		if u, err := url.QueryUnescape(v); err == nil {
			v = u
		}
		if k == "" {
			continue
		}
		tk.Query = append(tk.Query, k+"="+v)
	}
	return tk
}

// Has reports whether marker occurs in the tokens. Markers containing '=' are
// matched against query pairs, anything else against path segments.
func (tk Tokens) Has(marker string) bool {
	set := tk.Path
	if strings.Contains(marker, "=") {
		set = tk.Query
	}
	for _, s := range set {
		if s == marker {
			return true
		}
	}
	return false
}
