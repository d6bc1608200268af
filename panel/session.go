// Package panel holds the device model shared by the control packages: the
// session state that survives between requests, levels, commands and verdicts.
package panel

// Session is the state carried from one request to the next.
// It is owned by a single pipeline and never shared.
type Session struct {
	Level      Level // last requested level
	LastSignal int8  // last non-zero hysteresis sentinel (+1 water on, -1 water off)
}

// NewSession returns the boot state.
func NewSession() *Session {
	return &Session{Level: LevelUnknown}
}

// SetLevel records a requested level and reports whether it changed.
func (s *Session) SetLevel(l Level) bool {
	if s.Level == l {
		return false
	}
	s.Level = l
	return true
}

// Signal records a non-zero sentinel. Zero is ignored.
func (s *Session) Signal(v int8) bool {
	if v == 0 || s.LastSignal == v {
		return false
	}
	s.LastSignal = v
	return true
}

// Watering reports whether the last water command opened the valve.
func (s *Session) Watering() bool {
	return s.LastSignal > 0
}
