package gateway

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rahul/steptable/internal/bridge"
	"github.com/rahul/steptable/internal/store"
	"github.com/rahul/steptable/internal/table"
)

const (
	source       = "telegram"
	maxListed    = 10
	maxErrLines  = 5
	maxRowLines  = 20
	helpText     = "/check - row report\n/info - row count\n/grow N - grow the table to N rows\n/extract [json|csv|markdown|xlsx] - export the steps\n/save [title] - store the steps as a snapshot\n/fill ID - fill a stored snapshot into the table\n/snapshots - list stored snapshots\n/shot - screenshot of the page"
	unknownReply = "unknown command, try /help"
)

// SnapshotStore is the part of the store the chat commands use.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, pageURL, title string, records []table.Record) (store.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (store.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]store.Snapshot, error)
}

// PageInfo describes the live page. It is nil when running against a saved
// snapshot.
type PageInfo interface {
	Location(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Reply is what a command sends back: text, and optionally a photo or a file.
type Reply struct {
	Text     string
	Photo    []byte
	FileName string
	File     []byte
}

// Commands turns chat commands into bridge requests.
type Commands struct {
	Responder *bridge.Responder
	Snapshots SnapshotStore
	Page      PageInfo
}

func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:]
}

// Handle runs one chat message.
func (c *Commands) Handle(ctx context.Context, text string) Reply {
	name, args := parseCommand(text)
	switch name {
	case "start", "help":
		return Reply{Text: helpText}
	case "check":
		return c.check(ctx)
	case "info":
		return c.info(ctx)
	case "grow":
		return c.grow(ctx, args)
	case "extract":
		return c.extract(ctx, args)
	case "save":
		return c.save(ctx, strings.Join(args, " "))
	case "fill":
		return c.fill(ctx, args)
	case "snapshots":
		return c.list(ctx)
	case "shot":
		return c.shot(ctx)
	}
	return Reply{Text: unknownReply}
}

func failed(resp bridge.Response) Reply {
	return Reply{Text: "failed: " + resp.Error}
}

func (c *Commands) check(ctx context.Context) Reply {
	resp := c.Responder.Handle(ctx, source, bridge.Request{Action: bridge.ActionCheckTableRows})
	if !resp.Success {
		return failed(resp)
	}
	rep := resp.Data.(table.Report)
	if rep.TotalRows == 0 {
		return Reply{Text: "no table on the page"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "rows %d, with content %d, empty %d", rep.TotalRows, rep.ContentRows, rep.EmptyRows)
	for i, d := range rep.RowDetails {
		if i == maxRowLines {
			fmt.Fprintf(&b, "\n... %d more", len(rep.RowDetails)-i)
			break
		}
		fmt.Fprintf(&b, "\n%d. %s | %s", d.RowIndex, d.StepDesc, d.ExpectedResult)
	}
	return Reply{Text: b.String()}
}

func (c *Commands) info(ctx context.Context) Reply {
	resp := c.Responder.Handle(ctx, source, bridge.Request{Action: bridge.ActionGetTableInfo})
	if !resp.Success {
		return failed(resp)
	}
	info := resp.Data.(table.Info)
	if !info.HasTable {
		return Reply{Text: "no table on the page"}
	}
	return Reply{Text: fmt.Sprintf("%d rows", info.RowCount)}
}

func (c *Commands) grow(ctx context.Context, args []string) Reply {
	if len(args) != 1 {
		return Reply{Text: "usage: /grow N"}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return Reply{Text: "usage: /grow N, with N a positive number"}
	}

	resp := c.Responder.Handle(ctx, source, bridge.Request{Action: bridge.ActionAddTableRows, TargetCount: n})
	if !resp.Success {
		return failed(resp)
	}
	res := resp.Data.(table.GrowResult)
	if res.Error != "" {
		return Reply{Text: "grow failed: " + res.Error}
	}
	text := fmt.Sprintf("rows %d/%d, added %d in %d clicks", res.CurrentCount, res.TargetCount, res.Added, res.Clicks)
	return Reply{Text: text + errorLines(res.Errors)}
}

func (c *Commands) records(ctx context.Context) ([]table.Record, *Reply) {
	resp := c.Responder.Handle(ctx, source, bridge.Request{Action: bridge.ActionExtractTableData})
	if !resp.Success {
		r := failed(resp)
		return nil, &r
	}
	return resp.Data.([]table.Record), nil
}

func (c *Commands) extract(ctx context.Context, args []string) Reply {
	format := table.FormatJSON
	if len(args) > 0 {
		f, err := table.ParseFormat(args[0])
		if err != nil {
			return Reply{Text: err.Error()}
		}
		format = f
	}

	records, fail := c.records(ctx)
	if fail != nil {
		return *fail
	}
	if len(records) == 0 {
		return Reply{Text: "no steps on the page"}
	}

	var buf bytes.Buffer
	if err := table.Export(&buf, format, records); err != nil {
		return Reply{Text: "export failed: " + err.Error()}
	}
	return Reply{
		Text:     fmt.Sprintf("%d steps", len(records)),
		FileName: "steps." + format.Ext(),
		File:     buf.Bytes(),
	}
}

func (c *Commands) save(ctx context.Context, title string) Reply {
	if c.Snapshots == nil {
		return Reply{Text: "no snapshot store configured"}
	}
	records, fail := c.records(ctx)
	if fail != nil {
		return *fail
	}
	if len(records) == 0 {
		return Reply{Text: "no steps on the page"}
	}

	var url string
	if c.Page != nil {
		url, _ = c.Page.Location(ctx)
	}
	snap, err := c.Snapshots.SaveSnapshot(ctx, url, title, records)
	if err != nil {
		return Reply{Text: "save failed: " + err.Error()}
	}
	return Reply{Text: fmt.Sprintf("saved %s (%d steps)", snap.ID, len(records))}
}

func (c *Commands) fill(ctx context.Context, args []string) Reply {
	if c.Snapshots == nil {
		return Reply{Text: "no snapshot store configured"}
	}
	if len(args) != 1 {
		return Reply{Text: "usage: /fill ID"}
	}
	snap, err := c.Snapshots.GetSnapshot(ctx, args[0])
	if err != nil {
		return Reply{Text: err.Error()}
	}

	resp := c.Responder.Call(ctx, source, bridge.ActionFillTableData, snap.Records)
	if !resp.Success {
		return failed(resp)
	}
	res := resp.Data.(table.FillResult)
	if res.Error != "" {
		return Reply{Text: "fill failed: " + res.Error}
	}
	return Reply{Text: fmt.Sprintf("filled %d/%d", res.Filled, res.Total) + errorLines(res.Errors)}
}

func (c *Commands) list(ctx context.Context) Reply {
	if c.Snapshots == nil {
		return Reply{Text: "no snapshot store configured"}
	}
	snaps, err := c.Snapshots.ListSnapshots(ctx, maxListed)
	if err != nil {
		return Reply{Text: err.Error()}
	}
	if len(snaps) == 0 {
		return Reply{Text: "no snapshots"}
	}
	var b strings.Builder
	for i, s := range snaps {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s", s.ID, s.CreatedAt.Format("2006-01-02 15:04"))
		if s.Title != "" {
			b.WriteString(" " + s.Title)
		}
	}
	return Reply{Text: b.String()}
}

func (c *Commands) shot(ctx context.Context) Reply {
	if c.Page == nil {
		return Reply{Text: "no live page"}
	}
	png, err := c.Page.Screenshot(ctx)
	if err != nil {
		return Reply{Text: "screenshot failed: " + err.Error()}
	}
	return Reply{Photo: png}
}

func errorLines(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range errs {
		if i == maxErrLines {
			fmt.Fprintf(&b, "\n... %d more", len(errs)-i)
			break
		}
		b.WriteString("\n- " + e)
	}
	return b.String()
}
