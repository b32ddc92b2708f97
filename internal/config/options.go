package config

import (
	"strings"

	"github.com/WvvvWv/csvsplit/internal/core"
	"github.com/WvvvWv/csvsplit/internal/excel"
)

// ServiceOptions maps the split and excel settings onto core.Options.
func (c *Config) ServiceOptions() core.Options {
	return core.Options{
		Selector: core.SelectorOptions{
			SizeThreshold: c.Split.ParallelSizeThreshold,
			RowThreshold:  c.Split.ParallelRowThreshold,
		},
		MaxWorkers:    c.Split.MaxWorkers,
		Layout:        core.ChunkLayout(strings.ToLower(c.Split.ChunkLayout)),
		WriteBuffer:   c.Split.WriteBuffer,
		LockTimeout:   c.Split.LockTimeout,
		MaxConcurrent: c.Split.MaxConcurrentRequests,
		MaxWait:       c.Split.MaxWaitTime,
		Excel: excel.Options{
			MaxColumns:        c.Excel.MaxColumns,
			MaxCellRunes:      c.Excel.MaxCellRunes,
			RowHeightInterval: c.Excel.RowHeightInterval,
			RowHeight:         c.Excel.RowHeight,
			ColumnWidth:       c.Excel.ColumnWidth,
		},
	}
}
