// Package device ties the request pipeline together: interpret, actuate,
// sample, classify and render.
package device

import (
	"bytes"
	"context"
	"time"

	"github.com/go-logr/logr"

	"gitlab.com/lologarithm/panel/climate"
	"gitlab.com/lologarithm/panel/command"
	"gitlab.com/lologarithm/panel/grid"
	"gitlab.com/lologarithm/panel/panel"
	"gitlab.com/lologarithm/panel/render"
	"gitlab.com/lologarithm/panel/sensor"
)

// Actuator performs commands.
type Actuator interface {
	Apply(ctx context.Context, cmd panel.Command) (grid.Frame, error)
}

// Sampler produces a fresh reading.
type Sampler interface {
	Sample(ctx context.Context) (sensor.Reading, error)
}

// Observer is told about every handled request. Observe must not block.
type Observer interface {
	Observe(panel.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(panel.Snapshot)

func (f ObserverFunc) Observe(s panel.Snapshot) { f(s) }

const failure = "HTTP/1.1 500 Internal Server Error\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	"render failed\n"

// Device owns the session and runs one request at a time. It is not safe for
// concurrent use; the server loop is its only caller.
type Device struct {
	Name    string
	Vocab   *command.Vocabulary
	Out     Actuator
	Sensors Sampler
	Climate climate.Settings
	Session *panel.Session

	observers []Observer
	last      panel.Snapshot
	now       func() time.Time
}

// New returns a device with a fresh session.
func New(name string, vocab *command.Vocabulary, out Actuator, sensors Sampler, settings climate.Settings) *Device {
	return &Device{
		Name:    name,
		Vocab:   vocab,
		Out:     out,
		Sensors: sensors,
		Climate: settings,
		Session: panel.NewSession(),
		now:     time.Now,
	}
}

// Observe registers o for every subsequent request.
func (d *Device) Observe(o Observer) {
	d.observers = append(d.observers, o)
}

// Last is the snapshot of the most recent request.
func (d *Device) Last() panel.Snapshot {
	return d.last
}

// Handle runs the pipeline for one raw request and returns the response
// document. Failures along the way are logged and never abort the response.
func (d *Device) Handle(ctx context.Context, req []byte) []byte {
	log := logr.FromContextOrDiscard(ctx)
	if log.V(1).Enabled() {
		line := req
		if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
			line = line[:i]
		}
		log.V(1).Info("Request", "line", string(line))
	}

	res := d.Vocab.Interpret(req)
	if res.Level != nil && d.Session.SetLevel(*res.Level) {
		log.Info("Level changed", "level", d.Session.Level.String())
	}

	var done []string
	for _, cmd := range res.Commands {
		if cmd.Level == panel.LevelUnknown {
			cmd.Level = d.Session.Level
		}
		if _, err := d.Out.Apply(ctx, cmd); err != nil {
			log.Error(err, "Actuation failed, continuing", "command", cmd.String())
		}
		if d.Session.Signal(cmd.Signal) {
			log.Info("Water signal", "signal", cmd.Signal)
		}
		done = append(done, cmd.String())
	}

	r, err := d.Sensors.Sample(ctx)
	if err != nil {
		log.Error(err, "Sensor read failed, rendering zero reading")
		r = sensor.Reading{Time: d.now()}
	}
	r = d.Climate.Adjust(r, d.Session.Watering())
	cond := d.Climate.Classify(r)

	snap := panel.Snapshot{
		Name:       d.Name,
		Time:       r.Time,
		Level:      d.Session.Level,
		LastSignal: d.Session.LastSignal,
		Temp:       r.Temp,
		Humidity:   r.Humidity,
		Condition:  cond,
		Commands:   done,
	}
	d.last = snap
	for _, o := range d.observers {
		o.Observe(snap)
	}

	doc, err := render.Document(d.Vocab.Page, render.Status{
		Name:      d.Name,
		Level:     snap.Level,
		Temp:      snap.Temp,
		Humidity:  snap.Humidity,
		Condition: snap.Condition,
		Watering:  d.Session.Watering(),
	})
	if err != nil {
		log.Error(err, "Failed to render page", "page", d.Vocab.Page)
		return []byte(failure)
	}
	return doc
}
