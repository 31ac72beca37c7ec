package gateway

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/steptable/internal/bridge"
	"github.com/rahul/steptable/internal/dom"
	"github.com/rahul/steptable/internal/observability"
	"github.com/rahul/steptable/internal/store"
	"github.com/rahul/steptable/internal/table"
)

const editorPage = `<html><body><table>
<thead><tr><th>步骤描述</th><th>预期结果</th></tr></thead>
<tbody>
<tr><td><textarea class="ant-input edit-cell-input">打开首页</textarea></td><td><textarea class="ant-input edit-cell-input">首页加载</textarea></td></tr>
<tr><td><textarea class="ant-input edit-cell-input"></textarea></td><td><textarea class="ant-input edit-cell-input"></textarea></td></tr>
</tbody></table>
<button class="add">添加步骤</button></body></html>`

const newRow = `<tr><td><textarea class="ant-input edit-cell-input"></textarea></td><td><textarea class="ant-input edit-cell-input"></textarea></td></tr>`

type fakePage struct {
	url string
	png []byte
	err error
}

func (p *fakePage) Location(context.Context) (string, error)   { return p.url, p.err }
func (p *fakePage) Screenshot(context.Context) ([]byte, error) { return p.png, p.err }

func newCommands(t *testing.T, page string) (*Commands, *dom.Snapshot) {
	t.Helper()
	s, err := dom.ParseString(page)
	require.NoError(t, err)
	require.NoError(t, s.OnClick("button.add", func(s *dom.Snapshot) {
		_ = s.Append("table tbody", newRow)
	}))

	st, err := store.New(filepath.Join(t.TempDir(), "steps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	grow := table.DefaultGrowOptions()
	grow.InitialWait = 0
	grow.ClickInterval = 0
	grow.PollInterval = 0
	return &Commands{
		Responder: &bridge.Responder{
			Engine: table.NewEngine(nil, grow),
			Source: bridge.StaticDocument(s),
		},
		Snapshots: st,
		Page:      &fakePage{url: "https://cases.example/case/7", png: []byte("png")},
	}, s
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args []string
	}{
		{"/grow 5", "grow", []string{"5"}},
		{"/Check@StepBot", "check", []string{}},
		{"  /save login flow ", "save", []string{"login", "flow"}},
		{"hello", "", nil},
		{"", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args := parseCommand(tt.text)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCommands_Read(t *testing.T) {
	c, _ := newCommands(t, editorPage)
	ctx := context.Background()

	assert.Equal(t, "2 rows", c.Handle(ctx, "/info").Text)

	check := c.Handle(ctx, "/check").Text
	assert.Contains(t, check, "rows 2, with content 1, empty 1")
	assert.Contains(t, check, "1. 打开首页 | 首页加载")

	assert.Equal(t, unknownReply, c.Handle(ctx, "/dance").Text)
	assert.Equal(t, unknownReply, c.Handle(ctx, "plain text").Text)
	assert.Equal(t, helpText, c.Handle(ctx, "/help").Text)
}

func TestCommands_NoTable(t *testing.T) {
	c, _ := newCommands(t, `<html><body><p>nothing</p><button class="add">x</button></body></html>`)
	ctx := context.Background()

	assert.Equal(t, "no table on the page", c.Handle(ctx, "/info").Text)
	assert.Equal(t, "no table on the page", c.Handle(ctx, "/check").Text)
	assert.Equal(t, "no steps on the page", c.Handle(ctx, "/extract").Text)
}

func TestCommands_Grow(t *testing.T) {
	c, s := newCommands(t, editorPage)
	ctx := context.Background()

	assert.Equal(t, "usage: /grow N", c.Handle(ctx, "/grow").Text)
	assert.Contains(t, c.Handle(ctx, "/grow zero").Text, "positive")
	assert.Contains(t, c.Handle(ctx, "/grow 0").Text, "positive")

	reply := c.Handle(ctx, "/grow 4")
	assert.True(t, strings.HasPrefix(reply.Text, "rows 4/4, added 2"), reply.Text)

	rows, err := s.QueryAll(ctx, "table tbody tr")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestCommands_AuditNamesChat(t *testing.T) {
	c, _ := newCommands(t, editorPage)
	dir := t.TempDir()
	c.Responder.Logger = observability.NewLogger(dir)
	c.Responder.Logger.SetOutput(io.Discard)

	ctx := bridge.WithChat(context.Background(), "42")
	reply := c.Handle(ctx, "/grow 3")
	require.True(t, strings.HasPrefix(reply.Text, "rows 3/3"), reply.Text)

	audit, err := os.ReadFile(filepath.Join(dir, "operations.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), `"source":"telegram","chat_id":"42"`)
}

func TestCommands_GrowWithoutControl(t *testing.T) {
	c, _ := newCommands(t, strings.Replace(editorPage, "添加步骤", "保存", 1))
	reply := c.Handle(context.Background(), "/grow 3")
	assert.True(t, strings.HasPrefix(reply.Text, "grow failed: "), reply.Text)
}

func TestCommands_Extract(t *testing.T) {
	c, _ := newCommands(t, editorPage)
	ctx := context.Background()

	reply := c.Handle(ctx, "/extract csv")
	assert.Equal(t, "2 steps", reply.Text)
	assert.Equal(t, "steps.csv", reply.FileName)
	assert.Contains(t, string(reply.File), `1,"打开首页","首页加载"`)

	reply = c.Handle(ctx, "/extract md")
	assert.Equal(t, "steps.md", reply.FileName)

	reply = c.Handle(ctx, "/extract")
	assert.Equal(t, "steps.json", reply.FileName)
	records, err := table.ParseJSON(reply.File)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	assert.Contains(t, c.Handle(ctx, "/extract pdf").Text, "unknown export format")
}

func TestCommands_SaveListFill(t *testing.T) {
	c, s := newCommands(t, editorPage)
	ctx := context.Background()

	assert.Equal(t, "no snapshots", c.Handle(ctx, "/snapshots").Text)

	saved := c.Handle(ctx, "/save login flow").Text
	require.True(t, strings.HasPrefix(saved, "saved "), saved)
	assert.True(t, strings.HasSuffix(saved, "(2 steps)"), saved)
	id := strings.Fields(saved)[1]

	snap, err := c.Snapshots.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://cases.example/case/7", snap.PageURL)
	assert.Equal(t, "login flow", snap.Title)

	list := c.Handle(ctx, "/snapshots").Text
	assert.Contains(t, list, id)
	assert.Contains(t, list, "login flow")

	ta, err := dom.First(ctx, s, "tbody textarea")
	require.NoError(t, err)
	require.NoError(t, ta.SetValue(ctx, "changed"))

	assert.Equal(t, "filled 2/2", c.Handle(ctx, "/fill "+id).Text)
	v, err := ta.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "打开首页", v)

	assert.Contains(t, c.Handle(ctx, "/fill missing-id").Text, "snapshot not found")
	assert.Equal(t, "usage: /fill ID", c.Handle(ctx, "/fill").Text)
}

func TestCommands_Shot(t *testing.T) {
	c, _ := newCommands(t, editorPage)
	ctx := context.Background()

	assert.Equal(t, []byte("png"), c.Handle(ctx, "/shot").Photo)

	c.Page = &fakePage{err: errors.New("tab closed")}
	assert.Equal(t, "screenshot failed: tab closed", c.Handle(ctx, "/shot").Text)

	c.Page = nil
	assert.Equal(t, "no live page", c.Handle(ctx, "/shot").Text)
}
