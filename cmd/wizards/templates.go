package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/wizards/internal/cli"
	"github.com/aretw0/wizards/pkg/catalog"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect the historical query templates",
}

var templatesLsCmd = &cobra.Command{
	Use:   "ls [metric] [label=value ...]",
	Short: "List the configured templates, expanded for metric when given",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, _, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		templates, err := engine.Templates.Templates(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) > 0 {
			q, err := cli.ParseQuery(args[0], args[1:])
			if err != nil {
				return err
			}
			templates = catalog.Expand(templates, q)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tQUERY")
		for _, t := range templates {
			fmt.Fprintf(w, "%s\t%s\n", t.Title, t.Query)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesLsCmd)
}
