package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE:  runSnapshots,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the steps of a snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotShow,
}

var snapshotRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotRm,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent grow and fill operations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Save the live page as HTML for later use with --html",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var listLimit int

func init() {
	snapshotsCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of entries")
	historyCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of entries")
	snapshotsCmd.AddCommand(snapshotShowCmd, snapshotRmCmd)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	snaps, err := a.store.ListSnapshots(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tPAGE")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Title, s.PageURL)
	}
	return tw.Flush()
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.store.GetSnapshot(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), snap.Records)
}

func runSnapshotRm(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.store.DeleteSnapshot(cmd.Context(), args[0])
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ops, err := a.store.RecentOperations(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tSOURCE\tOK\tDETAIL")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", op.CreatedAt.Local().Format("2006-01-02 15:04:05"), op.Action, op.Source, op.Success, op.Detail)
	}
	return tw.Flush()
}

func runDump(cmd *cobra.Command, args []string) error {
	if htmlPath != "" {
		return errors.New("dump reads the live page; drop --html")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	html, err := a.session.HTML(cmd.Context())
	if err != nil {
		return err
	}
	return os.WriteFile(args[0], []byte(html), 0644)
}
