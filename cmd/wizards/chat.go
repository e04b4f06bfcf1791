package main

import (
	"os"
	"strings"

	"github.com/aretw0/wizards"
	"github.com/aretw0/wizards/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <metric> [label=value ...]",
	Short: "Open a drawer in the terminal",
	Long: `Opens a drawer for the metric and label matchers and reads commands from
stdin. Type 'help' inside the chat for the list of commands.`,
	Example: `  wizards chat http_requests_total job=api
  wizards chat --resume 6f1c... --config wizards.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if resume, _ := cmd.Flags().GetString("resume"); resume != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{Version: strings.TrimSpace(wizards.Version)}
		opts.DrawerID, _ = cmd.Flags().GetString("resume")
		opts.Plain, _ = cmd.Flags().GetBool("plain")
		if len(args) > 0 {
			q, err := cli.ParseQuery(args[0], args[1:])
			if err != nil {
				return err
			}
			opts.Query = q
		}

		engine, _, logger, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()
		opts.Logger = logger

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		return cli.RunChat(sigCtx, engine.Sessions, opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("resume", "", "Resume a stored drawer by ID")
	chatCmd.Flags().Bool("plain", false, "Print raw markdown without colors or banner")
}
