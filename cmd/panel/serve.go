package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"gitlab.com/lologarithm/panel/actuator"
	"gitlab.com/lologarithm/panel/alert"
	"gitlab.com/lologarithm/panel/command"
	"gitlab.com/lologarithm/panel/config"
	"gitlab.com/lologarithm/panel/device"
	"gitlab.com/lologarithm/panel/history"
	"gitlab.com/lologarithm/panel/rnet"
	"gitlab.com/lologarithm/panel/sensor"
	"gitlab.com/lologarithm/panel/server"
	"gitlab.com/lologarithm/panel/stream"
	"gitlab.com/lologarithm/panel/telemetry"
)

// board is what the pipeline needs from the hardware, real or fake.
type board interface {
	actuator.Sequencer
	actuator.PWM
	actuator.Indicator
	sensor.ADC
	FullScale() uint16
	Close() error
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// openBoard falls back to a fake board off the Pi unless hardware is required.
func openBoard(c *config.Config, log logr.Logger) (board, error) {
	b, err := actuator.OpenBoard(c.Hardware.Pins, log.WithName("board"))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, actuator.ErrNoGPIO) || c.Hardware.Require {
		return nil, err
	}
	log.Info("Unable to open raspberry pi gpio pins, defaulting to fake hardware", "err", err.Error())
	// 25°C, 40%
	fake := actuator.NewFakeBoard(log.WithName("fake"), nil)
	fake.SetADC(c.Sensor.Temp.Index, 512)
	fake.SetADC(c.Sensor.Humidity.Index, 409)
	fake.SetStatus(actuator.StatusStarting)
	return fake, nil
}

func newDriver(b board, c config.Driver) *actuator.Driver {
	drv := actuator.NewDriver(b, b)
	drv.LightGain = c.LightGain
	drv.BuzzGain = c.BuzzGain
	drv.BuzzDuty = c.BuzzDuty
	drv.BuzzDwell = c.BuzzDwell
	drv.Async = c.Async
	return drv
}

func serve(ctx context.Context, c *config.Config) error {
	log := logr.FromContextOrDiscard(ctx)

	vocab, err := command.Resolve(c.Vocabulary)
	if err != nil {
		return err
	}
	b, err := openBoard(c, log)
	if err != nil {
		return fmt.Errorf("hardware init failed: %w", err)
	}
	defer b.Close()

	drv := newDriver(b, c.Driver)
	defer drv.Close()
	sampler := sensor.NewSampler(b, c.Sensor.TempChannel(b.FullScale()), c.Sensor.HumidityChannel(b.FullScale()))
	dev := device.New(c.Name, vocab, drv, sampler, c.Climate)

	l, err := server.Listen(c.Listen)
	if err != nil {
		b.SetStatus(actuator.StatusFailed)
		return err
	}
	srv := server.New(dev)

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}

	if c.Stream.Enabled {
		hub := stream.NewHub(log.WithName("stream"))
		hub.ReadOnly = c.Stream.ReadOnly
		dev.Observe(hub)
		run(hub.Run)
		run(func(ctx context.Context) {
			if err := hub.ListenAndServe(ctx, c.Stream.Listen); err != nil {
				log.Error(err, "Stream listener failed")
			}
		})
		srv.OnPoll(func(ctx context.Context) { hub.Drain(ctx, dev.Handle) })
	}

	if c.MQTT.Enabled {
		client, err := telemetry.Connect(c.MQTT.Config, log.WithName("mqtt"))
		if err != nil {
			log.Error(err, "MQTT disabled")
		} else {
			defer client.Disconnect(250)
			pub := telemetry.NewPublisher(client, c.MQTT.Config, c.Name, log.WithName("mqtt"))
			dev.Observe(pub)
			run(func(ctx context.Context) {
				if err := pub.Start(ctx); err != nil {
					log.Error(err, "MQTT publisher stopped")
				}
			})
			srv.OnPoll(func(ctx context.Context) { pub.Drain(ctx, dev.Handle) })
		}
	}

	if c.Mail.Enabled {
		a := alert.NewAlerter(alert.NewMailgun(c.Mail.Config), c.Mail.Cooldown, log.WithName("alert"))
		dev.Observe(a)
		run(a.Run)
	}

	var sinks []history.Sink
	if c.History.Dir != "" {
		if fs, err := history.OpenFile(c.History.Dir, time.Now()); err != nil {
			log.Error(err, "Stats file disabled")
		} else {
			sinks = append(sinks, fs)
		}
	}
	if c.History.ClickHouse.Enabled {
		if ch, err := history.OpenClickHouse(ctx, c.History.ClickHouse.ClickHouseConfig); err != nil {
			log.Error(err, "ClickHouse disabled")
		} else {
			sinks = append(sinks, ch)
		}
	}
	if len(sinks) > 0 {
		rec := history.NewRecorder(log.WithName("history"), sinks...)
		dev.Observe(rec)
		run(rec.Run)
	}

	if c.Discovery.Enabled {
		if beacon, err := startDiscovery(c, l.Addr().(*net.TCPAddr), log); err != nil {
			log.Error(err, "Discovery disabled")
		} else {
			defer beacon.Close()
			dev.Observe(beacon)
			srv.OnPoll(beacon.Poll)
		}
	}
	if c.Discovery.Zeroconf {
		zc, err := rnet.Advertise(c.Name, l.Addr().(*net.TCPAddr).Port, []string{"vocabulary=" + vocab.Name})
		if err != nil {
			log.Error(err, "Zeroconf disabled")
		} else {
			defer zc.Shutdown()
		}
	}

	b.SetStatus(actuator.StatusReady)
	defer b.SetStatus(actuator.StatusOff)
	return srv.Serve(ctx, l)
}

func startDiscovery(c *config.Config, addr *net.TCPAddr, log logr.Logger) (*rnet.Beacon, error) {
	pings, out, err := rnet.ListenDiscovery(c.Discovery.Group)
	if err != nil {
		return nil, err
	}
	host := ""
	if ips, err := rnet.MyIPs(); err == nil && len(ips) > 0 {
		host = ips[0]
	}
	beacon := rnet.NewBeacon(c.Name, net.JoinHostPort(host, strconv.Itoa(addr.Port)), pings, out)
	if c.Discovery.Refresh > 0 {
		beacon.Refresh = c.Discovery.Refresh
	}
	log.Info("Discovery enabled", "group", c.Discovery.Group, "addr", beacon.Addr)
	return beacon, nil
}
