// Package export builds spreadsheet downloads with tealeg/xlsx.
package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/tealeg/xlsx"
)

// ContentType is the MIME type of an .xlsx workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04:05"

// Workbook accumulates sheets before being written out.
type Workbook struct {
	file *xlsx.File
}

func New() *Workbook {
	return &Workbook{file: xlsx.NewFile()}
}

// Sheet appends a sheet with a bold header row followed by rows.
func (w *Workbook) Sheet(name string, headers []string, rows [][]any) error {
	sheet, err := w.file.AddSheet(name)
	if err != nil {
		return fmt.Errorf("export: add sheet %q: %w", name, err)
	}

	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true

	header := sheet.AddRow()
	for _, h := range headers {
		c := header.AddCell()
		c.SetString(h)
		c.SetStyle(bold)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			setCell(row.AddCell(), v)
		}
	}
	return nil
}

func setCell(c *xlsx.Cell, v any) {
	switch t := v.(type) {
	case nil:
		c.SetString("")
	case time.Time:
		if t.IsZero() {
			c.SetString("")
			return
		}
		c.SetString(t.UTC().Format(timeLayout))
	case *time.Time:
		if t == nil {
			c.SetString("")
			return
		}
		setCell(c, *t)
	case fmt.Stringer:
		c.SetString(t.String())
	default:
		c.SetValue(t)
	}
}

func (w *Workbook) Write(out io.Writer) error {
	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// Bytes renders the workbook into memory.
func (w *Workbook) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
