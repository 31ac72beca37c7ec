package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"pgregory.net/rapid"
)

var sampleRecords = []Record{
	{Sequence: 1, Step: `输入 "admin", 点击登录`, Expected: ExpectedResult{"登录成功"}},
	{Sequence: 2, Step: "打开 a|b\n菜单", Expected: ExpectedResult{"显示 <菜单>", "第二行"}},
	{Sequence: 3, Step: "空结果"},
}

func TestToJSON(t *testing.T) {
	b, err := ToJSON(sampleRecords)
	require.NoError(t, err)
	out := string(b)

	assert.Contains(t, out, "\n  {\n    \"步骤序号\": 1,")
	assert.Contains(t, out, `"预期结果": "登录成功"`)
	assert.Contains(t, out, `"预期结果": ""`)
	assert.Contains(t, out, `"显示 <菜单>"`)

	var generic []map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	assert.Equal(t, []any{"显示 <菜单>", "第二行"}, generic[1]["预期结果"])

	back, err := ParseJSON(b)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords, back)

	empty, err := ToJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestParseJSON_Shapes(t *testing.T) {
	records, err := ParseJSON([]byte(`[
		{"步骤序号": 1, "步骤描述": "a", "预期结果": "x"},
		{"步骤序号": 2, "步骤描述": "b", "预期结果": ["y", "z"]},
		{"步骤序号": 3, "步骤描述": "c", "预期结果": null},
		{"步骤序号": 4, "步骤描述": "d"}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, ExpectedResult{"x"}, records[0].Expected)
	assert.Equal(t, ExpectedResult{"y", "z"}, records[1].Expected)
	assert.Nil(t, records[2].Expected)
	assert.Nil(t, records[3].Expected)

	_, err = ParseJSON([]byte(`[{"预期结果": 5}]`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestToCSV(t *testing.T) {
	out := ToCSV(sampleRecords)
	assert.True(t, strings.HasPrefix(out, "步骤序号,步骤描述,预期结果\n1,\"输入 \"\"admin\"\", 点击登录\",\"登录成功\""))
	assert.Equal(t, "", ToCSV(nil))

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"2", "打开 a|b\n菜单", "显示 <菜单> | 第二行"}, rows[2])
	assert.Equal(t, []string{"3", "空结果", ""}, rows[3])
}

// Any text survives CSV quoting and parses back with a standard reader.
func TestToCSV_Parseable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		step := rapid.StringMatching(`[a-z"',\n 步骤]{0,20}`).Draw(rt, "step")
		result := rapid.StringMatching(`[a-z"',|]{1,10}`).Draw(rt, "result")
		out := ToCSV([]Record{{Sequence: 1, Step: step, Expected: ExpectedResult{result}}})

		rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		require.NoError(rt, err)
		require.Len(rt, rows, 2)
		assert.Equal(rt, []string{"1", step, result}, rows[1])
	})
}

func TestToMarkdown(t *testing.T) {
	out := ToMarkdown(sampleRecords)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "| 步骤序号 | 步骤描述 | 预期结果 |", lines[0])
	assert.Equal(t, "| --- | --- | --- |", lines[1])
	assert.Equal(t, `| 2 | 打开 a\|b<br>菜单 | 显示 <菜单> \| 第二行 |`, lines[3])
	assert.Equal(t, "", ToMarkdown(nil))

	var html bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	require.NoError(t, md.Convert([]byte(out), &html))
	rendered := html.String()
	assert.Equal(t, 1, strings.Count(rendered, "<table>"))
	assert.Equal(t, len(sampleRecords)*3, strings.Count(rendered, "<td>"))
	assert.Contains(t, rendered, "a|b")
}

func TestXLSX_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecords))

	back, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, sampleRecords, back)
}

func TestXLSX_LineBreaksStayInOneLine(t *testing.T) {
	records := []Record{
		{Sequence: 1, Step: "多行", Expected: ExpectedResult{"第一行\n续行", "第二项"}},
		{Sequence: 2, Step: "单项", Expected: ExpectedResult{"甲\n乙"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, records))

	back, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, records, back)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(xlsxSheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "第二项", v)
}

func TestExport_Dispatch(t *testing.T) {
	for _, name := range []string{"json", "csv", "md", "xlsx"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, f, sampleRecords), name)
		assert.NotZero(t, buf.Len(), name)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
