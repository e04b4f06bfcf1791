package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/wizards"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of wizards",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wizards version %s\n", strings.TrimSpace(wizards.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
