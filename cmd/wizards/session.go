package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored drawers",
	Long:  `List, inspect and remove drawer snapshots kept by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored drawers",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cfg, _, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		ids, err := engine.Sessions.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintf(out, "No drawers found (store: %s).\n", cfg.Store.Driver)
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <drawer-id>",
	Short: "Print the state of a stored drawer as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, _, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		state, err := engine.Sessions.Inspect(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load drawer '%s': %w", args[0], err)
		}
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <drawer-id>...",
	Short: "Remove stored drawers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, _, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		for _, id := range args {
			if err := engine.Sessions.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to remove drawer '%s': %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
}
