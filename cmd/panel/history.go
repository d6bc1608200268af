package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"gitlab.com/lologarithm/panel/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		dir    string
		last   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded request outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logr.FromContextOrDiscard(cmd.Context())
			if dir == "" {
				dir = cfg.History.Dir
			}
			events, err := history.Load(dir)
			if err != nil {
				// Partial files still decode up to the damage.
				log.Error(err, "Some stats could not be read", "dir", dir)
			}
			if last > 0 && len(events) > last {
				events = events[len(events)-last:]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, color.HiBlackString("no history in %s", dir))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tDEVICE\tLEVEL\tSIGNAL\tTEMP\tHUMIDITY\tCONDITION\tCOMMANDS")
			for _, e := range events {
				cond := e.Condition
				if cond == "favorable" {
					cond = color.GreenString(cond)
				} else {
					cond = color.RedString(cond)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%+d\t%.2f\t%d%%\t%s\t%s\n",
					e.Time.Format(time.DateTime), e.Name, e.Level, e.Signal,
					e.Temp, e.Humidity, cond, strings.Join(e.Commands, " "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "stats directory (default from config)")
	cmd.Flags().IntVarP(&last, "last", "n", 20, "show only the newest N events, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON")
	return cmd
}
