package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rahul/steptable/internal/bridge"
	"github.com/rahul/steptable/internal/table"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report rows with and without content",
	Args:  cobra.NoArgs,
	RunE:  runRead(bridge.ActionCheckTableRows),
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the row count",
	Args:  cobra.NoArgs,
	RunE:  runRead(bridge.ActionGetTableInfo),
}

func runRead(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		resp := a.responder.Handle(cmd.Context(), "cli", bridge.Request{Action: action})
		if !resp.Success {
			return errors.New(resp.Error)
		}
		return printJSON(cmd.OutOrStdout(), resp.Data)
	}
}

var growCmd = &cobra.Command{
	Use:   "grow <rows>",
	Short: "Click the add control until the table has the given number of rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrow,
}

var growOpts bridge.GrowOptions

func init() {
	growCmd.Flags().IntVar(&growOpts.InitialWait, "initial-wait", 0, "Milliseconds to wait before the first click (0 uses config)")
	growCmd.Flags().IntVar(&growOpts.ClickInterval, "click-interval", 0, "Milliseconds between clicks (0 uses config)")
	growCmd.Flags().IntVar(&growOpts.MaxWaitForResponse, "max-wait", 0, "Milliseconds to wait for a new row after a click (0 uses config)")
	growCmd.Flags().IntVar(&growOpts.RetryTimes, "retry", 0, "Clicks without progress before giving up (0 uses config)")
}

func runGrow(cmd *cobra.Command, args []string) error {
	target, err := strconv.Atoi(args[0])
	if err != nil || target < 1 {
		return fmt.Errorf("rows must be a positive number, got %q", args[0])
	}
	if htmlPath != "" {
		return errors.New("grow needs a live page; drop --html")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := growOpts
	resp := a.responder.Handle(cmd.Context(), "cli", bridge.Request{
		Action:      bridge.ActionAddTableRows,
		TargetCount: target,
		Options:     &opts,
	})
	if !resp.Success {
		return errors.New(resp.Error)
	}
	if err := printJSON(cmd.OutOrStdout(), resp.Data); err != nil {
		return err
	}
	if res := resp.Data.(table.GrowResult); !res.Success {
		return fmt.Errorf("table has %d of %d rows", res.CurrentCount, res.TargetCount)
	}
	return nil
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Export the steps as json, csv, markdown or xlsx",
	Args:  cobra.NoArgs,
	RunE:  runExtract,
}

var (
	extractFormat string
	extractOut    string
	extractSave   bool
	extractTitle  string
)

func init() {
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "", "Output format: json, csv, markdown or xlsx (default from --out, else json)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Write to this file instead of stdout")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "Also store the steps as a snapshot")
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "Title of the stored snapshot")
}

func outputFormat(name, out string) (table.Format, error) {
	if name != "" {
		return table.ParseFormat(name)
	}
	if ext := filepath.Ext(out); ext != "" {
		return table.ParseFormat(ext)
	}
	return table.FormatJSON, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(extractFormat, extractOut)
	if err != nil {
		return err
	}
	if format == table.FormatXLSX && extractOut == "" {
		return errors.New("xlsx output needs --out")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	resp := a.responder.Handle(ctx, "cli", bridge.Request{Action: bridge.ActionExtractTableData})
	if !resp.Success {
		return errors.New(resp.Error)
	}
	records := resp.Data.([]table.Record)

	var buf bytes.Buffer
	if err := table.Export(&buf, format, records); err != nil {
		return err
	}
	if extractOut == "" {
		if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
			return err
		}
		if format != table.FormatJSON {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	} else if err := os.WriteFile(extractOut, buf.Bytes(), 0644); err != nil {
		return err
	}

	if extractSave {
		snap, err := a.store.SaveSnapshot(ctx, a.pageLocation(ctx), extractTitle, records)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved snapshot %s (%d steps)\n", snap.ID, len(records))
	}
	return nil
}

var fillCmd = &cobra.Command{
	Use:   "fill [file]",
	Short: "Write steps from a json/xlsx file or a stored snapshot into the table",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFill,
}

var (
	fillSnapshot string
	fillOut      string
)

func init() {
	fillCmd.Flags().StringVar(&fillSnapshot, "snapshot", "", "Fill the stored snapshot with this id")
	fillCmd.Flags().StringVarP(&fillOut, "out", "o", "", "With --html, save the filled page here")
}

func readRecords(path string) ([]table.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return table.ReadXLSX(f)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return table.ParseJSON(buf.Bytes())
}

func runFill(cmd *cobra.Command, args []string) error {
	if (len(args) == 1) == (fillSnapshot != "") {
		return errors.New("give either a file or --snapshot")
	}
	if fillOut != "" && htmlPath == "" {
		return errors.New("--out only applies with --html")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var records []table.Record
	if fillSnapshot != "" {
		snap, err := a.store.GetSnapshot(ctx, fillSnapshot)
		if err != nil {
			return err
		}
		records = snap.Records
	} else if records, err = readRecords(args[0]); err != nil {
		return err
	}

	resp := a.responder.Call(ctx, "cli", bridge.ActionFillTableData, records)
	if !resp.Success {
		return errors.New(resp.Error)
	}
	if err := printJSON(cmd.OutOrStdout(), resp.Data); err != nil {
		return err
	}

	if fillOut != "" {
		html, err := a.snapshot.HTML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(fillOut, []byte(html), 0644); err != nil {
			return err
		}
	}

	res := resp.Data.(table.FillResult)
	if res.Error != "" {
		return errors.New(res.Error)
	}
	if !res.Success {
		return fmt.Errorf("filled %d of %d steps", res.Filled, res.Total)
	}
	return nil
}
