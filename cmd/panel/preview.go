package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"gitlab.com/lologarithm/panel/actuator"
	"gitlab.com/lologarithm/panel/command"
	"gitlab.com/lologarithm/panel/device"
	"gitlab.com/lologarithm/panel/grid"
	"gitlab.com/lologarithm/panel/panel"
	"gitlab.com/lologarithm/panel/sensor"
)

func newPreviewCmd() *cobra.Command {
	var (
		gain   float64
		vocab  string
		sketch string
	)
	cmd := &cobra.Command{
		Use:   "preview TARGET...",
		Short: "Run requests against fake hardware and draw the grid",
		Example: `  panel preview /led_h /water_h
  panel preview --vocabulary selector "/lamp?level=so-so"
  panel preview --sketch droplet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logr.FromContextOrDiscard(cmd.Context())
			if sketch != "" {
				return drawSketch(cmd, sketch, gain)
			}
			if len(args) == 0 {
				return fmt.Errorf("preview needs a TARGET or --sketch")
			}
			if vocab == "" {
				vocab = cfg.Vocabulary
			}
			v, err := command.Resolve(vocab)
			if err != nil {
				return err
			}
			b := actuator.NewFakeBoard(log, nil)
			b.SetADC(cfg.Sensor.Temp.Index, 512)
			b.SetADC(cfg.Sensor.Humidity.Index, 409)
			drv := newDriver(b, cfg.Driver)
			drv.BuzzDwell = 0
			s := sensor.NewSampler(b, cfg.Sensor.TempChannel(b.FullScale()), cfg.Sensor.HumidityChannel(b.FullScale()))
			dev := device.New(cfg.Name, v, drv, s, cfg.Climate)

			out := cmd.OutOrStdout()
			for _, target := range args {
				before := len(b.Frames())
				dev.Handle(cmd.Context(), []byte("GET "+target+" HTTP/1.1\r\n\r\n"))
				snap := dev.Last()
				fmt.Fprintf(out, "%s  %s  level=%s  %.2f°C %d%% %s\n",
					color.New(color.Bold).Sprint(target),
					strings.Join(snap.Commands, " "),
					snap.Level, snap.Temp, snap.Humidity, snap.Condition)
				frames := b.Frames()
				if len(frames) == before {
					fmt.Fprintln(out, color.HiBlackString("  (grid unchanged)"))
					continue
				}
				drawFrame(out, frames[len(frames)-1], gain)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&gain, "gain", 10, "brightness multiplier for display")
	cmd.Flags().StringVar(&vocab, "vocabulary", "", "vocabulary to use (default from config)")
	cmd.Flags().StringVar(&sketch, "sketch", "", "draw a built-in sketch (full, droplet, off) instead of running targets")
	return cmd
}

// drawSketch shows a built-in sketch at the high level's intensity.
func drawSketch(cmd *cobra.Command, name string, gain float64) error {
	c := grid.White.Scale(cfg.Driver.LightGain * float64(panel.LevelHigh.Ordinal()))
	if name == "droplet" {
		c = grid.WaterColor.Scale(float64(panel.LevelHigh.Ordinal()))
	}
	s, ok := grid.Named(name, c)
	if !ok {
		return fmt.Errorf("unknown sketch %q", name)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.New(color.Bold).Sprint(s.Name))
	drawFrame(out, grid.Render(s), gain)
	return nil
}

func drawFrame(w io.Writer, f grid.Frame, gain float64) {
	for y := 0; y < grid.Height; y++ {
		fmt.Fprint(w, "  ")
		for x := 0; x < grid.Width; x++ {
			r, g, b := grid.Unpack(f[y*grid.Width+x])
			fmt.Fprint(w, color.BgRGB(amplify(r, gain), amplify(g, gain), amplify(b, gain)).Sprint("  "))
		}
		fmt.Fprintln(w)
	}
}

func amplify(v uint8, gain float64) int {
	a := float64(v) * gain
	if a > 255 {
		return 255
	}
	return int(a)
}
