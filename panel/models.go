package panel

import (
	"fmt"
	"time"
)

// Level is the lamp intensity selected by the last request that carried one.
type Level uint8

// Enum of levels. LevelUnknown is the boot state, before any level was requested.
const (
	LevelUnknown Level = iota
	LevelOff
	LevelLow
	LevelMedium
	LevelHigh
)

// Levels lists the selectable levels from brightest to off.
var Levels = []Level{LevelHigh, LevelMedium, LevelLow, LevelOff}

// Ordinal is the fixed intensity table: high 10, so-so 5, low 2, none 0.
func (l Level) Ordinal() int {
	switch l {
	case LevelHigh:
		return 10
	case LevelMedium:
		return 5
	case LevelLow:
		return 2
	}
	return 0
}

func (l Level) String() string {
	switch l {
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "so-so"
	case LevelLow:
		return "low"
	case LevelOff:
		return "none"
	}
	return "unknown"
}

// ParseLevel maps a level name (as used in requests) to a Level.
func ParseLevel(s string) (Level, bool) {
	for _, l := range Levels {
		if l.String() == s {
			return l, true
		}
	}
	return LevelUnknown, false
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	if string(text) == LevelUnknown.String() {
		*l = LevelUnknown
		return nil
	}
	v, ok := ParseLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown level %q", text)
	}
	*l = v
	return nil
}

// Action is the closed set of things a request can make the device do.
type Action uint8

// Enum of actions
const (
	ActionNone Action = iota
	ActionLight
	ActionBuzz
	ActionWater
)

func (a Action) String() string {
	switch a {
	case ActionLight:
		return "light"
	case ActionBuzz:
		return "buzz"
	case ActionWater:
		return "water"
	}
	return "none"
}

// ParseAction maps an action name to an Action.
func ParseAction(s string) (Action, bool) {
	for _, a := range []Action{ActionLight, ActionBuzz, ActionWater} {
		if a.String() == s {
			return a, true
		}
	}
	return ActionNone, false
}

// Command is one decoded actuation.
type Command struct {
	Action Action
	Level  Level         // intensity; LevelUnknown means "use the session level"
	Scaled bool          // intensity follows Level.Ordinal instead of a fixed value
	On     bool          // water direction
	Signal int8          // hysteresis sentinel recorded after the command, 0 for none
	Duty   float64       // buzzer duty, 0 for the driver default
	Dwell  time.Duration // buzzer hold time, 0 for the driver default
}

func (c Command) String() string {
	s := c.Action.String()
	switch c.Action {
	case ActionLight:
		s += "(" + c.Level.String() + ")"
	case ActionWater:
		if c.On {
			s += "(on)"
		} else {
			s += "(off)"
		}
	}
	return s
}

// Condition is the growing-condition verdict derived from a reading.
type Condition uint8

// Enum of conditions
const (
	Unfavorable Condition = iota
	Favorable
)

func (c Condition) String() string {
	if c == Favorable {
		return "favorable"
	}
	return "unfavorable"
}

func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Condition) UnmarshalText(text []byte) error {
	switch string(text) {
	case "favorable":
		*c = Favorable
	case "unfavorable":
		*c = Unfavorable
	default:
		return fmt.Errorf("unknown condition %q", text)
	}
	return nil
}

// Snapshot is the outcome of one request, handed to observers.
type Snapshot struct {
	Name       string
	Time       time.Time
	Level      Level
	LastSignal int8
	Temp       float64 // adjusted °C
	Humidity   int     // adjusted %
	Condition  Condition
	Commands   []string
}
