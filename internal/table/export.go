package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatXLSX}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, s)
}

// Ext is the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

var columnHeaders = []string{"步骤序号", "步骤描述", "预期结果"}

const listSeparator = " | "

// Export writes records to w in format f.
func Export(w io.Writer, f Format, records []Record) error {
	switch f {
	case FormatJSON:
		b, err := ToJSON(records)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case FormatCSV:
		_, err := io.WriteString(w, ToCSV(records))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, ToMarkdown(records))
		return err
	case FormatXLSX:
		return WriteXLSX(w, records)
	}
	return fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, f)
}

// ToJSON renders records with two-space indentation and without HTML
// escaping.
func ToJSON(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseJSON decodes records as produced by ToJSON or edited by hand.
func ParseJSON(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return records, nil
}

// ToCSV renders a header line and one line per record. Text fields are
// always quoted. An empty list renders as "".
func ToCSV(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(columnHeaders, ","))
	for _, r := range records {
		lines = append(lines, strings.Join([]string{
			strconv.Itoa(r.Sequence),
			csvQuote(r.Step),
			csvQuote(r.Expected.Join(listSeparator)),
		}, ","))
	}
	return strings.Join(lines, "\n")
}

func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ToMarkdown renders a pipe table. Pipes inside cells are escaped and line
// breaks become <br>. An empty list renders as "".
func ToMarkdown(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	sep := make([]string, len(columnHeaders))
	for i := range sep {
		sep[i] = "---"
	}
	lines := []string{mdRow(columnHeaders), mdRow(sep)}
	for _, r := range records {
		lines = append(lines, mdRow([]string{
			strconv.Itoa(r.Sequence),
			mdEscape(r.Step),
			mdEscape(r.Expected.Join(listSeparator)),
		}))
	}
	return strings.Join(lines, "\n")
}

func mdRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

var mdReplacer = strings.NewReplacer(`|`, `\|`, "\r\n", "<br>", "\n", "<br>")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}

const xlsxSheet = "测试步骤"

// WriteXLSX writes a workbook with one sheet: a header row and one row per
// record. Each result line gets its own cell, from the third column on, so
// lines that contain line breaks survive a round trip.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}
	for i, h := range columnHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			return err
		}
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}

	width := len(columnHeaders)
	for i, r := range records {
		row := i + 2
		values := []any{r.Sequence, r.Step}
		for _, line := range r.Expected {
			values = append(values, line)
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(xlsxSheet, cell, v); err != nil {
				return err
			}
		}
		width = max(width, len(values))
	}
	if len(records) > 0 {
		last, _ := excelize.CoordinatesToCellName(width, len(records)+1)
		if err := f.SetCellStyle(xlsxSheet, "B2", last, wrap); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(width)
	if err := f.SetColWidth(xlsxSheet, "B", lastCol, 48); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

// ReadXLSX reads records back from a workbook written by WriteXLSX.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		return nil, err
	}
	records := []Record{}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		for len(row) < len(columnHeaders) {
			row = append(row, "")
		}
		seq, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: sequence %q", ErrInvalidInput, i+1, row[0])
		}
		var expected ExpectedResult
		for _, line := range row[2:] {
			if line != "" {
				expected = append(expected, line)
			}
		}
		records = append(records, Record{Sequence: seq, Step: row[1], Expected: expected})
	}
	return records, nil
}
