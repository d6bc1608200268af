package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gitlab.com/lologarithm/panel/command"
)

func newVocabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab [NAME|FILE.toml]",
		Short: "List vocabularies or show the markers of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range command.Builtins() {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			v, err := command.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s (page %s)\n", color.New(color.Bold).Sprint(v.Name), v.Page)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, l := range v.Levels {
				fmt.Fprintf(tw, "  %s\tlevel\t%s\n", l.Marker, l.Level)
			}
			for _, a := range v.Actions {
				detail := a.Level
				if a.Scaled {
					detail += " scaled"
				}
				if a.Signal != 0 {
					detail += fmt.Sprintf(" signal %+d", a.Signal)
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", a.Marker, a.Action, detail)
			}
			return tw.Flush()
		},
	}
}
