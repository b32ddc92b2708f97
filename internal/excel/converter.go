// Package excel converts finished CSV shards into .xlsx workbooks.
//
// Conversion is streaming in both directions: the shard is read through a
// small buffer one record at a time and rows go straight to an excelize
// StreamWriter, so memory stays bounded by the column cap rather than by the
// shard length. Each shard's CSV is removed once its workbook is saved.
package excel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/WvvvWv/csvsplit/internal/csvio"
)

// Defaults mirror what the converter has always produced.
const (
	DefaultMaxColumns        = 100
	DefaultMaxCellRunes      = 500
	DefaultRowHeightInterval = 5000
	DefaultRowHeight         = 15
	DefaultColumnWidth       = 12
	DefaultReadBuffer        = 4 * 1024
)

// ErrRemoveSource marks a failure to delete the CSV after a successful
// conversion; the workbook exists at that point.
var ErrRemoveSource = errors.New("remove converted csv")

// ErrTooManyRows is returned for shards that do not fit on one worksheet.
var ErrTooManyRows = fmt.Errorf("shard exceeds the worksheet limit of %d rows", excelize.TotalRows)

// Options tunes the converter. Zero values take the defaults.
type Options struct {
	MaxColumns        int
	MaxCellRunes      int
	RowHeightInterval int
	RowHeight         float64
	ColumnWidth       float64
	ReadBuffer        int
	Logger            *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxColumns <= 0 {
		o.MaxColumns = DefaultMaxColumns
	}
	if o.MaxColumns > excelize.MaxColumns {
		o.MaxColumns = excelize.MaxColumns
	}
	if o.MaxCellRunes <= 0 {
		o.MaxCellRunes = DefaultMaxCellRunes
	}
	if o.MaxCellRunes > excelize.TotalCellChars {
		o.MaxCellRunes = excelize.TotalCellChars
	}
	if o.RowHeightInterval <= 0 {
		o.RowHeightInterval = DefaultRowHeightInterval
	}
	if o.RowHeight <= 0 {
		o.RowHeight = DefaultRowHeight
	}
	if o.ColumnWidth <= 0 {
		o.ColumnWidth = DefaultColumnWidth
	}
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = DefaultReadBuffer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Converter turns CSV shards into workbooks. It is not safe for concurrent
// use; shards are converted one after another.
type Converter struct {
	opts Options
}

// NewConverter creates a converter with opts applied over the defaults.
func NewConverter(opts Options) *Converter {
	return &Converter{opts: opts.withDefaults()}
}

// Result describes one converted shard.
type Result struct {
	Source string
	Target string
	Rows   int
}

// TargetPath returns the workbook path for a CSV shard path.
func TargetPath(csvPath string) string {
	if e := filepath.Ext(csvPath); strings.EqualFold(e, ".csv") {
		return strings.TrimSuffix(csvPath, e) + ".xlsx"
	}
	return csvPath + ".xlsx"
}

// ConvertAll converts each shard in order, skipping paths that no longer
// exist, and stops at the first failure. Results for completed shards are
// returned alongside the error.
func (c *Converter) ConvertAll(csvPaths []string) ([]Result, error) {
	results := make([]Result, 0, len(csvPaths))
	for _, path := range csvPaths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			c.opts.Logger.Warn("shard missing, skipping conversion", "path", path)
			continue
		}
		res, err := c.Convert(path, TargetPath(path))
		if err != nil {
			return results, err
		}
		c.opts.Logger.Debug("shard converted", "source", res.Source, "target", res.Target, "rows", res.Rows)
		results = append(results, res)
	}
	return results, nil
}

// Convert writes csvPath as a workbook at xlsxPath and removes csvPath on
// success. The first CSV record becomes a bold, centered header row.
func (c *Converter) Convert(csvPath, xlsxPath string) (Result, error) {
	res := Result{Source: csvPath, Target: xlsxPath}

	rows, err := c.write(csvPath, xlsxPath)
	if err != nil {
		return res, err
	}
	res.Rows = rows

	if err := os.Remove(csvPath); err != nil {
		return res, fmt.Errorf("%w %s: %v", ErrRemoveSource, csvPath, err)
	}
	return res, nil
}

func (c *Converter) write(csvPath, xlsxPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open shard %s: %w", csvPath, err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	reader := csvio.NewReader(csvio.WrapForStreaming(f, size, c.opts.ReadBuffer), -1)

	header, err := csvio.ReadHeader(reader)
	if err != nil {
		if err == io.EOF {
			return 0, fmt.Errorf("shard %s has no header row", csvPath)
		}
		return 0, fmt.Errorf("read shard header %s: %w", csvPath, err)
	}

	book := excelize.NewFile()
	defer book.Close()

	sheet := book.GetSheetName(0)
	sw, err := book.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("open worksheet: %w", err)
	}

	headerStyle, err := book.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("create header style: %w", err)
	}

	cols := min(len(header), c.opts.MaxColumns)

	// The stream writer only accepts column widths before the first row.
	if err := sw.SetColWidth(1, cols, c.opts.ColumnWidth); err != nil {
		return 0, fmt.Errorf("set column width: %w", err)
	}

	headerCells := make([]interface{}, cols)
	for i := 0; i < cols; i++ {
		headerCells[i] = excelize.Cell{StyleID: headerStyle, Value: header[i]}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return 0, fmt.Errorf("write header row: %w", err)
	}

	cells := make([]interface{}, 0, c.opts.MaxColumns)
	heightOpts := []excelize.RowOpts{{Height: c.opts.RowHeight}}
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read shard %s: %w", csvPath, err)
		}

		rowNum++
		if rowNum > excelize.TotalRows {
			return 0, fmt.Errorf("%s: %w", csvPath, ErrTooManyRows)
		}

		cells = cells[:0]
		for i, field := range record {
			if i >= c.opts.MaxColumns {
				break
			}
			cells = append(cells, CellValue(field, c.opts.MaxCellRunes))
		}

		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return 0, err
		}
		var opts []excelize.RowOpts
		if rowNum%c.opts.RowHeightInterval == 0 {
			opts = heightOpts
		}
		if err := sw.SetRow(cell, cells, opts...); err != nil {
			return 0, fmt.Errorf("write row %d: %w", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("flush worksheet: %w", err)
	}
	if err := book.SaveAs(xlsxPath); err != nil {
		return 0, fmt.Errorf("save workbook %s: %w", xlsxPath, err)
	}
	return rowNum - 1, nil
}

// CellValue types one CSV field: a finite float when the (truncated) text
// parses as one, nil for an empty field, otherwise the text cut to maxRunes
// characters. The decision is per cell; columns have no declared type.
func CellValue(field string, maxRunes int) interface{} {
	if field == "" {
		return nil
	}
	text := Truncate(field, maxRunes)
	if v, err := strconv.ParseFloat(text, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
		return v
	}
	return text
}

// Truncate cuts s to at most maxRunes characters without splitting a rune.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || len(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
