package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Strategy names an execution shape for a split.
type Strategy string

const (
	StrategyAuto       Strategy = "auto"
	StrategySequential Strategy = "sequential"
	StrategyParallel   Strategy = "parallel"
)

// ParseStrategy accepts "", "auto", "sequential" or "parallel" (any case).
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategySequential:
		return StrategySequential, nil
	case StrategyParallel:
		return StrategyParallel, nil
	default:
		return "", fmt.Errorf("unknown strategy %q: must be auto, sequential or parallel", s)
	}
}

// ChunkLayout decides how many rows each parallel chunk carries.
type ChunkLayout string

const (
	// LayoutFill gives every chunk rows_per_file rows and the last one the
	// remainder, so parallel output matches sequential output exactly.
	LayoutFill ChunkLayout = "fill"

	// LayoutBalanced spreads rows evenly: ceil(data_rows / shard_count) per chunk.
	LayoutBalanced ChunkLayout = "balanced"
)

// SplitRequest describes one split invocation. It is passed by value and not
// modified after Validate.
type SplitRequest struct {
	InputPath      string   `json:"input_path" yaml:"input_path"`
	OutputDir      string   `json:"output_dir" yaml:"output_dir"`
	RowsPerFile    int      `json:"rows_per_file" yaml:"rows_per_file"`
	HasHeader      bool     `json:"has_header" yaml:"has_header"`
	ConvertToExcel bool     `json:"convert_to_excel" yaml:"convert_to_excel"`
	Strategy       Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// Stem is the input file name without its extension; shards are named after it.
func (r SplitRequest) Stem() string {
	base := filepath.Base(r.InputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "output"
	}
	return stem
}

// ShardPath returns the CSV path of the 1-based shard index.
func (r SplitRequest) ShardPath(index int) string {
	return filepath.Join(r.OutputDir, fmt.Sprintf("%s_%d.csv", r.Stem(), index))
}

// SplitResult is the response handed to the HTTP and CLI boundaries.
type SplitResult struct {
	Success   bool    `json:"success"`
	FileCount int     `json:"file_count"`
	Error     *string `json:"error,omitempty"`
	Strategy  string  `json:"strategy,omitempty"`
	RunID     string  `json:"run_id,omitempty"`
}

// ErrorMessage returns the error text, or "" for a successful result.
func (r SplitResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// HeaderRow is the column list written at the top of every shard.
type HeaderRow []string

// SyntheticHeader returns column_1..column_n.
func SyntheticHeader(n int) HeaderRow {
	h := make(HeaderRow, n)
	for i := range h {
		h[i] = fmt.Sprintf("column_%d", i+1)
	}
	return h
}

// Chunk is a line-aligned half-open byte range [Start, End) of the source
// assigned to one parallel worker, together with the rows it must emit.
type Chunk struct {
	ID    int
	Start int64
	End   int64
	Rows  int
}

// Len returns the byte length of the chunk.
func (c Chunk) Len() int64 { return c.End - c.Start }

// Shard is one written output file.
type Shard struct {
	Index int
	Path  string
	Rows  int
}
