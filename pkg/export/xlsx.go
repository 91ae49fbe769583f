package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// xlsxWriter buffers rows in an excelize stream writer and writes the
// workbook to the destination on Flush
type xlsxWriter struct {
	dst  io.Writer
	f    *excelize.File
	sw   *excelize.StreamWriter
	row  int
	head int
}

func newXLSXWriter(dst io.Writer) (*xlsxWriter, error) {
	f := excelize.NewFile()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	head, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	return &xlsxWriter{dst: dst, f: f, sw: sw, row: 1, head: head}, nil
}

func (x *xlsxWriter) WriteHeader(columns []string) error {
	if err := x.sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if err := x.sw.SetColWidth(1, len(columns), 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	return x.setRow(values, excelize.RowOpts{StyleID: x.head})
}

func (x *xlsxWriter) WriteRow(values []interface{}) error {
	return x.setRow(values)
}

func (x *xlsxWriter) setRow(values []interface{}, opts ...excelize.RowOpts) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	if err := x.sw.SetRow(cell, values, opts...); err != nil {
		return fmt.Errorf("failed to write row %d: %w", x.row, err)
	}
	x.row++
	return nil
}

func (x *xlsxWriter) Flush() error {
	if err := x.sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := x.f.WriteTo(x.dst); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// release drops the workbook and its temporary files
func (x *xlsxWriter) release() {
	_ = x.f.Close()
}
