// Package command decodes request lines into device commands using a
// vocabulary table of markers.
package command

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"gitlab.com/lologarithm/panel/panel"
)

//go:embed vocab/*.toml
var builtin embed.FS

// Load errors
var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownLevel  = errors.New("unknown level")
	ErrNoMarker      = errors.New("entry has no marker")
)

// duration lets toml files write dwell times as "500ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// LevelMarker maps a marker to a level.
type LevelMarker struct {
	Marker string `toml:"marker"`
	Level  string `toml:"level"`

	level panel.Level
}

// ActionMarker maps a marker to an action.
type ActionMarker struct {
	Marker string   `toml:"marker"`
	Action string   `toml:"action"`
	Level  string   `toml:"level"`  // fixed level, empty to use the request/session level
	Scaled bool     `toml:"scaled"` // intensity follows the level ordinal
	On     bool     `toml:"on"`
	Signal int8     `toml:"signal"`
	Duty   float64  `toml:"duty"`
	Dwell  duration `toml:"dwell"`

	action panel.Action
	level  panel.Level
}

func (m ActionMarker) command() panel.Command {
	return panel.Command{
		Action: m.action,
		Level:  m.level,
		Scaled: m.Scaled || m.action == panel.ActionLight,
		On:     m.On,
		Signal: m.Signal,
		Duty:   m.Duty,
		Dwell:  m.Dwell.Duration,
	}
}

// Vocabulary is a table of recognized markers. The order of entries is the
// match precedence.
type Vocabulary struct {
	Name    string         `toml:"name"`
	Page    string         `toml:"page"`
	Levels  []LevelMarker  `toml:"level"`
	Actions []ActionMarker `toml:"action"`
}

// Result is what a request asks for.
type Result struct {
	Commands []panel.Command
	Level    *panel.Level // nil when the request carries no level
}

// Interpret decodes req. It has no side effects; unrecognized text gives an
// empty Result.
func (v *Vocabulary) Interpret(req []byte) Result {
	tk := Tokenize(req)
	var res Result
	for _, m := range v.Levels {
		if tk.Has(m.Marker) {
			l := m.level
			res.Level = &l
			break
		}
	}

	var fired [4]bool
	for _, m := range v.Actions {
		if fired[m.action] || !tk.Has(m.Marker) {
			continue
		}
		fired[m.action] = true
		cmd := m.command()
		if cmd.Level == panel.LevelUnknown && res.Level != nil {
			cmd.Level = *res.Level
		}
		res.Commands = append(res.Commands, cmd)
	}
	// actions with a fixed level count as a level token when none was given
	if res.Level == nil {
		for _, cmd := range res.Commands {
			if cmd.Action == panel.ActionLight && cmd.Level != panel.LevelUnknown {
				l := cmd.Level
				res.Level = &l
				break
			}
		}
	}
	return res
}

func (v *Vocabulary) compile() error {
	for i := range v.Levels {
		m := &v.Levels[i]
		if m.Marker == "" {
			return fmt.Errorf("level %d: %w", i, ErrNoMarker)
		}
		l, ok := panel.ParseLevel(m.Level)
		if !ok {
			return fmt.Errorf("level marker %q: %w %q", m.Marker, ErrUnknownLevel, m.Level)
		}
		m.level = l
	}
	for i := range v.Actions {
		m := &v.Actions[i]
		if m.Marker == "" {
			return fmt.Errorf("action %d: %w", i, ErrNoMarker)
		}
		a, ok := panel.ParseAction(m.Action)
		if !ok {
			return fmt.Errorf("action marker %q: %w %q", m.Marker, ErrUnknownAction, m.Action)
		}
		m.action = a
		if m.Level != "" {
			l, ok := panel.ParseLevel(m.Level)
			if !ok {
				return fmt.Errorf("action marker %q: %w %q", m.Marker, ErrUnknownLevel, m.Level)
			}
			m.level = l
		}
	}
	if v.Page == "" {
		v.Page = v.Name
	}
	return nil
}

// Decode reads a vocabulary in toml form.
func Decode(r io.Reader) (*Vocabulary, error) {
	v := &Vocabulary{}
	if _, err := toml.NewDecoder(r).Decode(v); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary: %w", err)
	}
	if err := v.compile(); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads a vocabulary from a toml file.
func Load(file string) (*Vocabulary, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Builtin returns one of the embedded vocabularies.
func Builtin(name string) (*Vocabulary, error) {
	f, err := builtin.Open(path.Join("vocab", name+".toml"))
	if err != nil {
		return nil, fmt.Errorf("no builtin vocabulary %q", name)
	}
	defer f.Close()
	return Decode(f)
}

// Resolve returns the builtin vocabulary called name, or loads name as a file.
func Resolve(name string) (*Vocabulary, error) {
	if strings.HasSuffix(name, ".toml") {
		return Load(name)
	}
	return Builtin(name)
}

// Builtins lists the embedded vocabulary names.
func Builtins() []string {
	entries, _ := builtin.ReadDir("vocab")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	sort.Strings(names)
	return names
}
