// Package render builds the HTTP response document for a request outcome.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"path"
	"sort"
	"strings"

	"gitlab.com/lologarithm/panel/panel"
)

// MaxDocument bounds the whole response, headers included.
const MaxDocument = 8 << 10

var (
	ErrTooLarge    = errors.New("document exceeds size limit")
	ErrUnknownPage = errors.New("unknown page")
)

//go:embed pages/*.html
var pageFiles embed.FS

var pages = template.Must(template.ParseFS(pageFiles, "pages/*.html"))

const header = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Connection: close\r\n" +
	"\r\n"

// Status is what a page shows.
type Status struct {
	Name      string
	Level     panel.Level
	Temp      float64
	Humidity  int
	Condition panel.Condition
	Watering  bool
}

// LevelName is the level as the selector form spells it. Unknown reads as none.
func (s Status) LevelName() string {
	if s.Level == panel.LevelUnknown {
		return panel.LevelOff.String()
	}
	return s.Level.String()
}

// Selected reports whether level is the current one.
func (s Status) Selected(level string) bool {
	return s.LevelName() == level
}

// Pages lists the available page names.
func Pages() []string {
	var names []string
	for _, t := range pages.Templates() {
		names = append(names, strings.TrimSuffix(t.Name(), path.Ext(t.Name())))
	}
	sort.Strings(names)
	return names
}

// Document renders page for s, status line and headers included.
func Document(page string, s Status) ([]byte, error) {
	t := pages.Lookup(page + ".html")
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPage, page)
	}
	buf := bytes.NewBuffer(make([]byte, 0, 4<<10))
	w := &limitWriter{w: buf, n: MaxDocument}
	io.WriteString(w, header)
	if err := t.Execute(w, s); err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("failed to render %s: %w", page, err)
	}
	return buf.Bytes(), nil
}

type limitWriter struct {
	w io.Writer
	n int
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if len(p) > l.n {
		l.n = 0
		return 0, ErrTooLarge
	}
	l.n -= len(p)
	return l.w.Write(p)
}
