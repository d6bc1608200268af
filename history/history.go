// Package history records request outcomes to disk and, optionally, to
// ClickHouse.
package history

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"gitlab.com/lologarithm/panel/panel"
)

// Event is one recorded request outcome.
type Event struct {
	Name      string    // Name of device
	Time      time.Time // Time of sample
	Level     string    // Session level after the request
	Signal    int8      // Last water signal
	Temp      float64   // Adjusted temp
	Humidity  int       // Adjusted humidity
	Condition string    // favorable or unfavorable
	Commands  []string  // Commands run by the request
}

// EventOf converts a snapshot.
func EventOf(s panel.Snapshot) Event {
	return Event{
		Name:      s.Name,
		Time:      s.Time,
		Level:     s.Level.String(),
		Signal:    s.LastSignal,
		Temp:      s.Temp,
		Humidity:  s.Humidity,
		Condition: s.Condition.String(),
		Commands:  s.Commands,
	}
}

// Sink stores events.
type Sink interface {
	Save(ctx context.Context, e Event) error
	Close() error
}

// Recorder queues snapshots and writes them to every sink from Run.
type Recorder struct {
	sinks   []Sink
	log     logr.Logger
	updates chan panel.Snapshot
}

func NewRecorder(log logr.Logger, sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, log: log, updates: make(chan panel.Snapshot, 32)}
}

// Observe queues s, dropping it when the recorder is behind.
func (r *Recorder) Observe(s panel.Snapshot) {
	select {
	case r.updates <- s:
	default:
		r.log.Info("History behind, dropping event")
	}
}

// Run saves queued events until ctx is done, then flushes what is left and
// closes the sinks.
func (r *Recorder) Run(ctx context.Context) {
	defer func() {
		for _, s := range r.sinks {
			if err := s.Close(); err != nil {
				r.log.Error(err, "Failed to close history sink")
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case s := <-r.updates:
					r.save(context.Background(), s)
				default:
					return
				}
			}
		case s := <-r.updates:
			r.save(ctx, s)
		}
	}
}

func (r *Recorder) save(ctx context.Context, s panel.Snapshot) {
	e := EventOf(s)
	for _, sink := range r.sinks {
		if err := sink.Save(ctx, e); err != nil {
			r.log.Error(err, "Failed to save history event")
		}
	}
}
