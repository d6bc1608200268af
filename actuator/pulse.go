package actuator

import "time"

// Pulse is an output held active for a fixed Duration.
type Pulse struct {
	Start    func() error
	Stop     func() error
	Duration time.Duration
}

// Run starts the pulse, sleeps for its duration and stops it.
// Stop always runs, even when Start failed.
func (p Pulse) Run() error {
	if err := p.Start(); err != nil {
		p.Stop()
		return err
	}
	time.Sleep(p.Duration)
	return p.Stop()
}

// Schedule starts the pulse now and stops it from a timer. done receives the
// result of Stop.
func (p Pulse) Schedule(done func(error)) (*time.Timer, error) {
	if err := p.Start(); err != nil {
		p.Stop()
		return nil, err
	}
	return time.AfterFunc(p.Duration, func() {
		done(p.Stop())
	}), nil
}
