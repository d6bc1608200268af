package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.com/lologarithm/panel/command"
)

func newInterpretCmd() *cobra.Command {
	var vocab string
	cmd := &cobra.Command{
		Use:   "interpret REQUEST",
		Short: "Show what a request would do, without doing it",
		Example: `  panel interpret "GET /lamp?level=high HTTP/1.1"
  panel interpret /water_h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if vocab == "" {
				vocab = cfg.Vocabulary
			}
			v, err := command.Resolve(vocab)
			if err != nil {
				return err
			}
			req := args[0]
			if strings.HasPrefix(req, "/") {
				req = "GET " + req + " HTTP/1.1"
			}
			res := v.Interpret([]byte(req))

			out := struct {
				Vocabulary string
				Level      string `json:",omitempty"`
				Commands   []string
			}{Vocabulary: v.Name, Commands: []string{}}
			if res.Level != nil {
				out.Level = res.Level.String()
			}
			for _, c := range res.Commands {
				out.Commands = append(out.Commands, c.String())
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&vocab, "vocabulary", "", "vocabulary to use (default from config)")
	return cmd
}
