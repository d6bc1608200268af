package command

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.com/lologarithm/panel/panel"
)

func mustBuiltin(t *testing.T, name string) *Vocabulary {
	t.Helper()
	v, err := Builtin(name)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSelectorLevels(t *testing.T) {
	v := mustBuiltin(t, "selector")
	tests := []struct {
		req     string
		ordinal int
	}{
		{"GET /lamp?level=high HTTP/1.1\r\nHost: panel\r\n\r\n", 10},
		{"GET /lamp?level=so-so HTTP/1.1\r\n", 5},
		{"GET /lamp?level=low HTTP/1.1\r\n", 2},
		{"GET /lamp?level=none HTTP/1.1\r\n", 0},
	}
	for _, tt := range tests {
		res := v.Interpret([]byte(tt.req))
		if res.Level == nil {
			t.Fatalf("%q: expected a level", tt.req)
		}
		if got := res.Level.Ordinal(); got != tt.ordinal {
			t.Errorf("%q: expected ordinal %d, got %d", tt.req, tt.ordinal, got)
		}
		if len(res.Commands) != 1 || res.Commands[0].Action != panel.ActionLight {
			t.Errorf("%q: expected one light command, got %v", tt.req, res.Commands)
		}
		if res.Commands[0].Level != *res.Level {
			t.Errorf("%q: light command should carry the request level", tt.req)
		}
	}
}

func TestNoLevelMeansNoChange(t *testing.T) {
	v := mustBuiltin(t, "selector")
	for _, req := range []string{
		"",
		"GET / HTTP/1.1\r\n",
		"GET /lamp HTTP/1.1\r\n",
		"GET /lamp?level=max HTTP/1.1\r\n",
		"GET /favicon.ico HTTP/1.1\r\nReferer: http://panel/lamp?level=high\r\n\r\n",
		"\x00\x00\x00",
		"garbage",
	} {
		if res := v.Interpret([]byte(req)); res.Level != nil {
			t.Errorf("%q: expected no level, got %s", req, *res.Level)
		}
	}
}

func TestEmptyRequest(t *testing.T) {
	for _, name := range Builtins() {
		v := mustBuiltin(t, name)
		res := v.Interpret(nil)
		if len(res.Commands) != 0 || res.Level != nil {
			t.Errorf("%s: expected empty result, got %+v", name, res)
		}
	}
}

func TestIndependentActions(t *testing.T) {
	v := mustBuiltin(t, "paths")
	res := v.Interpret([]byte("GET /led_m/buzzer/water_h HTTP/1.1\r\n"))
	if len(res.Commands) != 3 {
		t.Fatalf("expected 3 commands, got %v", res.Commands)
	}
	light, buzz, water := res.Commands[0], res.Commands[1], res.Commands[2]
	if light.Action != panel.ActionLight || light.Level != panel.LevelMedium {
		t.Errorf("unexpected light command %v", light)
	}
	if buzz.Action != panel.ActionBuzz || buzz.Duty != 0.5 || buzz.Dwell != 500*time.Millisecond {
		t.Errorf("unexpected buzz command %+v", buzz)
	}
	if water.Action != panel.ActionWater || !water.On || water.Signal != 1 {
		t.Errorf("unexpected water command %+v", water)
	}
	if res.Level == nil || *res.Level != panel.LevelMedium {
		t.Errorf("expected led_m to count as a level token")
	}
}

func TestActionsFollowTableOrder(t *testing.T) {
	v := mustBuiltin(t, "paths")
	res := v.Interpret([]byte("GET /water_h/led_h HTTP/1.1\r\n"))
	if len(res.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %v", res.Commands)
	}
	if res.Commands[0].Action != panel.ActionLight || res.Commands[1].Action != panel.ActionWater {
		t.Errorf("expected light before water regardless of request order, got %v", res.Commands)
	}
}

func TestFirstEntryWinsWithinAction(t *testing.T) {
	v := mustBuiltin(t, "paths")
	res := v.Interpret([]byte("GET /water_o/water_h HTTP/1.1"))
	if len(res.Commands) != 1 {
		t.Fatalf("expected a single water command, got %v", res.Commands)
	}
	if !res.Commands[0].On {
		t.Errorf("expected water_h to take precedence")
	}
}

func TestWaterSignals(t *testing.T) {
	v := mustBuiltin(t, "paths")
	on := v.Interpret([]byte("GET /water_h HTTP/1.1"))
	off := v.Interpret([]byte("GET /water_o HTTP/1.1"))
	if on.Commands[0].Signal != 1 || off.Commands[0].Signal != -1 {
		t.Errorf("expected opposite sentinels, got %d and %d", on.Commands[0].Signal, off.Commands[0].Signal)
	}
	if on.Level != nil || off.Level != nil {
		t.Errorf("water commands must not change the level")
	}
}

func TestTokenizeBounds(t *testing.T) {
	long := "GET /" + strings.Repeat("a", MaxRequestLine) + "/lamp?level=high HTTP/1.1"
	tk := Tokenize([]byte(long))
	if tk.Has("lamp") || tk.Has("level=high") {
		t.Errorf("markers past MaxRequestLine must not be seen")
	}

	tk = Tokenize([]byte("GET /lamp\x00?level=high HTTP/1.1"))
	if !tk.Has("lamp") || tk.Has("level=high") {
		t.Errorf("expected scanning to stop at NUL, got %+v", tk)
	}

	tk = Tokenize([]byte("GET http://192.168.1.9/water%5Fh?level=so%2Dso#x HTTP/1.1"))
	if !tk.Has("water_h") || !tk.Has("level=so-so") {
		t.Errorf("expected unescaped tokens, got %+v", tk)
	}
	if tk.Method != "GET" {
		t.Errorf("expected method GET, got %q", tk.Method)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		body string
		err  error
	}{
		{"[[action]]\nmarker = \"x\"\naction = \"fly\"\n", ErrUnknownAction},
		{"[[level]]\nmarker = \"l=x\"\nlevel = \"max\"\n", ErrUnknownLevel},
		{"[[action]]\naction = \"buzz\"\n", ErrNoMarker},
	}
	for i, tt := range tests {
		file := filepath.Join(dir, "v.toml")
		if err := os.WriteFile(file, []byte(tt.body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(file); !errors.Is(err, tt.err) {
			t.Errorf("case %d: expected %v, got %v", i, tt.err, err)
		}
	}
}

func TestResolveFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "garden.toml")
	body := `name = "garden"
[[action]]
marker = "mist"
action = "water"
on = true
signal = 1
`
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := Resolve(file)
	if err != nil {
		t.Fatal(err)
	}
	if v.Page != "garden" {
		t.Errorf("expected page to default to name, got %q", v.Page)
	}
	res := v.Interpret([]byte("GET /mist HTTP/1.0"))
	if len(res.Commands) != 1 || res.Commands[0].Action != panel.ActionWater {
		t.Errorf("expected custom marker to fire, got %v", res.Commands)
	}
}
