package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/steptable/internal/dom"
	"github.com/rahul/steptable/internal/governance"
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

type memRecorder struct {
	mu  sync.Mutex
	ops []store.Operation
}

func (m *memRecorder) RecordOperation(_ context.Context, op store.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
	return nil
}

func newTestResponder(t *testing.T) (*Responder, *dom.Snapshot, *memRecorder) {
	t.Helper()
	s, err := dom.ParseString(editorPage)
	require.NoError(t, err)
	require.NoError(t, s.OnClick("button.add", func(s *dom.Snapshot) {
		_ = s.Append("table tbody", newRow)
	}))

	grow := table.DefaultGrowOptions()
	grow.InitialWait = 0
	grow.ClickInterval = 0
	grow.PollInterval = 0
	rec := &memRecorder{}
	return &Responder{
		Engine:   table.NewEngine(nil, grow),
		Source:   StaticDocument(s),
		Policy:   governance.NewDefaultPolicyEngine(),
		Recorder: rec,
	}, s, rec
}

func TestResponder_ReadActions(t *testing.T) {
	r, _, _ := newTestResponder(t)
	ctx := context.Background()

	resp := r.Handle(ctx, "panel", Request{Action: ActionGetTableInfo})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, table.Info{RowCount: 2, HasTable: true}, resp.Data)

	resp = r.Handle(ctx, "panel", Request{Action: ActionCheckTableRows})
	require.True(t, resp.Success, resp.Error)
	rep := resp.Data.(table.Report)
	assert.Equal(t, 1, rep.ContentRows)
	assert.Equal(t, 1, rep.EmptyRows)

	resp = r.Handle(ctx, "panel", Request{Action: ActionExtractTableData})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, []table.Record{
		{Sequence: 1, Step: "打开首页", Expected: table.ExpectedResult{"首页加载"}},
		{Sequence: 2, Step: ""},
	}, resp.Data)
}

func TestResponder_UnknownAction(t *testing.T) {
	r, _, _ := newTestResponder(t)
	resp := r.Handle(context.Background(), "panel", Request{Action: "deleteEverything"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown action")
}

func TestResponder_GrowAndFill(t *testing.T) {
	r, _, rec := newTestResponder(t)
	ctx := context.Background()

	resp := r.Handle(ctx, "panel", Request{Action: ActionAddTableRows, TargetCount: 4, Options: &GrowOptions{RetryTimes: 2}})
	require.True(t, resp.Success, resp.Error)
	grow := resp.Data.(table.GrowResult)
	assert.True(t, grow.Success)
	assert.Equal(t, 4, grow.CurrentCount)
	assert.Equal(t, 2, grow.Added)

	data := json.RawMessage(`[
		{"步骤序号": 1, "步骤描述": "输入用户名", "预期结果": "回显"},
		{"步骤序号": 2, "步骤描述": "输入密码", "预期结果": ["掩码显示", "可切换"]},
		{"步骤序号": 3, "步骤描述": "点击登录", "预期结果": ""}
	]`)
	resp = r.Handle(ctx, "panel", Request{Action: ActionFillTableData, Data: data})
	require.True(t, resp.Success, resp.Error)
	fill := resp.Data.(table.FillResult)
	assert.True(t, fill.Success, fill.Errors)
	assert.Equal(t, 3, fill.Filled)

	resp = r.Handle(ctx, "panel", Request{Action: ActionExtractTableData})
	require.True(t, resp.Success)
	records := resp.Data.([]table.Record)
	require.Len(t, records, 4)
	assert.Equal(t, "输入密码", records[1].Step)
	// Without a per-cell add control the lines share one field.
	assert.Equal(t, table.ExpectedResult{"掩码显示\n可切换"}, records[1].Expected)

	require.Len(t, rec.ops, 2)
	assert.Equal(t, ActionAddTableRows, rec.ops[0].Action)
	assert.True(t, rec.ops[1].Success)
}

func TestResponder_FillWithoutData(t *testing.T) {
	r, _, _ := newTestResponder(t)
	resp := r.Handle(context.Background(), "panel", Request{Action: ActionFillTableData})
	require.True(t, resp.Success, resp.Error)
	fill := resp.Data.(table.FillResult)
	assert.False(t, fill.Success)
	assert.NotEmpty(t, fill.Error)

	resp = r.Handle(context.Background(), "panel", Request{Action: ActionFillTableData, Data: json.RawMessage(`{"not":"a list"}`)})
	assert.False(t, resp.Success)
}

func TestResponder_PolicyDenies(t *testing.T) {
	r, s, _ := newTestResponder(t)
	r.Policy.(*governance.DefaultPolicyEngine).DenyActionFrom("telegram", ActionAddTableRows)

	resp := r.Handle(context.Background(), "telegram", Request{Action: ActionAddTableRows, TargetCount: 5})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "denied")
	assert.Empty(t, s.Events())
}

func TestResponder_EventsCarryChat(t *testing.T) {
	r, _, _ := newTestResponder(t)
	var out bytes.Buffer
	r.Logger = observability.NewLogger(t.TempDir())
	r.Logger.SetOutput(&out)

	resp := r.Handle(WithChat(context.Background(), "4242"), "telegram", Request{Action: ActionGetTableInfo})
	require.True(t, resp.Success, resp.Error)
	resp = r.Handle(context.Background(), "panel", Request{Action: ActionGetTableInfo})
	require.True(t, resp.Success, resp.Error)

	var events []observability.Event
	dec := json.NewDecoder(&out)
	for dec.More() {
		var evt observability.Event
		require.NoError(t, dec.Decode(&evt))
		if evt.Type == observability.EventTypeInfo {
			events = append(events, evt)
		}
	}
	require.Len(t, events, 2)
	assert.Equal(t, "telegram", events[0].Source)
	assert.Equal(t, "4242", events[0].ChatID)
	assert.Equal(t, "panel", events[1].Source)
	assert.Empty(t, events[1].ChatID)
}

func TestResponder_MissingAddControl(t *testing.T) {
	s, err := dom.ParseString(`<table><tbody><tr><td>a</td><td>b</td></tr></tbody></table>`)
	require.NoError(t, err)
	r := &Responder{Engine: table.NewEngine(nil, table.DefaultGrowOptions()), Source: StaticDocument(s)}

	resp := r.Handle(context.Background(), "panel", Request{Action: ActionAddTableRows, TargetCount: 3})
	require.True(t, resp.Success, resp.Error)
	grow := resp.Data.(table.GrowResult)
	assert.False(t, grow.Success)
	assert.Equal(t, table.ErrControlNotFound.Error(), grow.Error)
}
