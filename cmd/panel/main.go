package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"gitlab.com/lologarithm/panel/config"
	"gitlab.com/lologarithm/panel/hlog"
)

var (
	configFile string
	verbose    bool
	debug      bool
	noColor    bool

	cfg       *config.Config
	logCloser io.Closer = io.NopCloser(nil)
)

var rootCmd = &cobra.Command{
	Use:   "panel",
	Short: "Actuator and sensor control panel",
	Long: `panel serves a one-page control panel for an LED grid, a buzzer and a
watering valve, and reports whether greenhouse conditions are favorable.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		var log logr.Logger
		log, logCloser = hlog.New(cfg.Log, verbose, debug)
		cmd.SetContext(logr.NewContext(cmd.Context(), log))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCloser.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./panel.toml or /etc/panel/panel.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level or above")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log per-request detail")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newServeCmd(),
		newPreviewCmd(),
		newInterpretCmd(),
		newVocabCmd(),
		newHistoryCmd(),
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
