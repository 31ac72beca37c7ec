package table

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rahul/steptable/internal/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLocator_Columns(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Columns
	}{
		{"no header", ``, DefaultColumns},
		{"chinese captions", `<th>#</th><th>步骤描述</th><th>预期结果</th>`, Columns{Step: 1, Result: 2}},
		{"result first", `<th>预期结果</th><th>编号</th><th>步骤描述</th>`, Columns{Step: 2, Result: 0}},
		{"english captions", `<th>No.</th><th>Expected Result</th><th>Step Description</th>`, Columns{Step: 2, Result: 1}},
		{"split words", `<th>操作 步骤 的 描述</th><th>预期 的 结果</th>`, Columns{Step: 0, Result: 1}},
		{"first match wins", `<th>步骤描述</th><th>步骤描述</th><th>预期结果</th><th>预期结果</th>`, Columns{Step: 0, Result: 2}},
		{"unrelated captions", `<th>a</th><th>b</th><th>c</th>`, DefaultColumns},
		{"only result named", `<th>x</th><th>y</th><th>预期结果</th>`, Columns{Step: 0, Result: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<table>`
			if tt.header != "" {
				page += `<thead><tr>` + tt.header + `</tr></thead>`
			}
			page += `<tbody><tr><td>1</td><td>2</td><td>3</td><td>4</td></tr></tbody></table>`
			s, err := dom.ParseString(page)
			require.NoError(t, err)

			got, err := (&Locator{}).Columns(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocator_RowStrategies(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		page string
		want int
	}{
		{"table body", `<table><thead><tr><th>h</th></tr></thead><tbody><tr><td>1</td></tr><tr><td>2</td></tr></tbody></table>`, 2},
		{"ant rows outside tbody", `<div class="ant-table-row"></div><div class="ant-table-row"></div><div class="ant-table-row"></div>`, 3},
		{"no table", `<div><p>nothing</p></div>`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := dom.ParseString(tt.page)
			require.NoError(t, err)
			n, err := (&Locator{}).RowCount(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestLocator_CustomStrategies(t *testing.T) {
	s, err := dom.ParseString(`<table><tbody><tr class="x"><td>1</td></tr><tr><td>2</td></tr></tbody></table>`)
	require.NoError(t, err)
	loc := &Locator{Strategies: []RowStrategy{BySelector("tr.missing"), BySelector("tr.x")}}
	n, err := loc.RowCount(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// Column resolution depends only on the captions, never on where the
// columns sit.
func TestLocator_ColumnsFollowCaptions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		width := rapid.IntRange(2, 6).Draw(rt, "width")
		step := rapid.IntRange(0, width-1).Draw(rt, "step")
		result := rapid.IntRange(0, width-1).Filter(func(i int) bool { return i != step }).Draw(rt, "result")

		caps := make([]string, width)
		for i := range caps {
			caps[i] = fmt.Sprintf("<th>列%d</th>", i)
		}
		caps[step] = "<th>步骤描述</th>"
		caps[result] = "<th>预期结果</th>"
		page := `<table><thead><tr>` + strings.Join(caps, "") + `</tr></thead><tbody></tbody></table>`

		s, err := dom.ParseString(page)
		require.NoError(rt, err)
		got, err := (&Locator{}).Columns(context.Background(), s)
		require.NoError(rt, err)
		assert.Equal(rt, Columns{Step: step, Result: result}, got)
	})
}
