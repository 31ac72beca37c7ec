package table

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rahul/steptable/internal/dom"
	"github.com/stretchr/testify/require"
)

// editorRow is one row of a rendered editor table.
type editorRow struct {
	step    string
	results []string
}

const resultControl = `<div class="ant-space-item"><textarea class="ant-input edit-cell-input" placeholder="输入预期结果">%s</textarea></div>`

// editorPage renders the editor markup: an index column, the step column and
// the result column, plus an add-step button. Result cells carry ids r1..rN
// and a per-cell add affordance.
func editorPage(rows ...editorRow) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="ant-table"><table>`)
	b.WriteString(`<thead class="ant-table-thead"><tr><th>#</th><th>步骤描述</th><th>预期结果</th></tr></thead>`)
	b.WriteString(`<tbody class="ant-table-tbody">`)
	for i, r := range rows {
		b.WriteString(rowHTML(i+1, r))
	}
	b.WriteString(`</tbody></table></div><button class="add-step"><span>添加步骤</span></button></body></html>`)
	return b.String()
}

func rowHTML(n int, r editorRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<tr class="ant-table-row"><td>%d</td>`, n)
	fmt.Fprintf(&b, `<td><textarea class="ant-input edit-cell-input" placeholder="输入步骤描述">%s</textarea></td>`, html.EscapeString(r.step))
	fmt.Fprintf(&b, `<td id="r%d"><div class="ant-space">`, n)
	results := r.results
	if len(results) == 0 {
		results = []string{""}
	}
	for _, res := range results {
		fmt.Fprintf(&b, resultControl, html.EscapeString(res))
	}
	b.WriteString(`</div><span class="add-sub-step-btn">+</span></td></tr>`)
	return b.String()
}

// emptyRows returns n rows without content.
func emptyRows(n int) []editorRow {
	return make([]editorRow, n)
}

// tb is satisfied by *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

// loadEditor parses page and wires the add-step button and every per-cell
// add affordance the way the editor behaves.
func loadEditor(t tb, page string) *dom.Snapshot {
	t.Helper()
	s, err := dom.ParseString(page)
	require.NoError(t, err)
	wireAddStep(t, s)
	wireAddLines(t, s)
	return s
}

func wireAddStep(t tb, s *dom.Snapshot) {
	t.Helper()
	added := 0
	require.NoError(t, s.OnClick("button.add-step", func(s *dom.Snapshot) {
		added++
		_ = s.Append("table tbody", rowHTML(1000+added, editorRow{}))
	}))
}

func wireAddLines(t tb, s *dom.Snapshot) {
	t.Helper()
	cells, err := s.QueryAll(context.Background(), "td[id]")
	require.NoError(t, err)
	for i := range cells {
		id := fmt.Sprintf("#r%d", i+1)
		_ = s.OnClick(id+" .add-sub-step-btn", func(s *dom.Snapshot) {
			_ = s.Append(id+" .ant-space", fmt.Sprintf(resultControl, ""))
		})
	}
}

// countEvents counts recorded events named name.
func countEvents(s *dom.Snapshot, name string) int {
	n := 0
	for _, e := range s.Events() {
		if e.Name == name {
			n++
		}
	}
	return n
}
