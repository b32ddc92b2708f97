package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WvvvWv/csvsplit/internal/history"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(opts Options) (*Service, *history.MemoryStore) {
	store := history.NewMemoryStore(10)
	return NewService(opts, store), store
}

// listOutput returns the names of regular files in dir, sorted.
func listOutput(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func numberedRows(header string, n int) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header + "\n")
	}
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,name %d,\"note, %d\"\n", i, i, i)
	}
	return b.String()
}

func TestSplit_HeaderNineRowsFourPerFile(t *testing.T) {
	for _, strategy := range []Strategy{StrategySequential, StrategyParallel} {
		t.Run(string(strategy), func(t *testing.T) {
			input := writeInput(t, "data.csv", numberedRows("id,name,note", 9))
			out := t.TempDir()
			svc, _ := newTestService(Options{})

			res := svc.Split(context.Background(), SplitRequest{
				InputPath: input, OutputDir: out, RowsPerFile: 4, HasHeader: true, Strategy: strategy,
			})

			require.True(t, res.Success, res.ErrorMessage())
			assert.Equal(t, 3, res.FileCount)
			assert.Nil(t, res.Error)
			assert.Equal(t, string(strategy), res.Strategy)
			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, []string{"data_1.csv", "data_2.csv", "data_3.csv"}, listOutput(t, out))

			assert.Equal(t,
				"id,name,note\n1,name 1,\"note, 1\"\n2,name 2,\"note, 2\"\n3,name 3,\"note, 3\"\n4,name 4,\"note, 4\"\n",
				readFile(t, filepath.Join(out, "data_1.csv")))
			assert.Equal(t, "id,name,note\n9,name 9,\"note, 9\"\n", readFile(t, filepath.Join(out, "data_3.csv")))
		})
	}
}

func TestSplit_ZeroRowsPerFile(t *testing.T) {
	input := writeInput(t, "data.csv", numberedRows("id,name,note", 3))
	out := filepath.Join(t.TempDir(), "out")
	svc, _ := newTestService(Options{})

	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 0, HasHeader: true})

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.FileCount)
	assert.Equal(t, "rows per file must be greater than 0", res.ErrorMessage())
	assert.NoDirExists(t, out)
}

func TestSplit_EmptyInput(t *testing.T) {
	input := writeInput(t, "empty.csv", "")
	svc, _ := newTestService(Options{})

	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 10, HasHeader: true})

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.FileCount)
	assert.Contains(t, res.ErrorMessage(), "empty file")
}

func TestSplit_HeaderOnly(t *testing.T) {
	for _, strategy := range []Strategy{StrategySequential, StrategyParallel} {
		t.Run(string(strategy), func(t *testing.T) {
			input := writeInput(t, "head.csv", "a,b\n")
			out := t.TempDir()
			svc, _ := newTestService(Options{})

			res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 10, HasHeader: true, Strategy: strategy})

			assert.False(t, res.Success)
			assert.Contains(t, res.ErrorMessage(), "csv file has no data rows")
			assert.Empty(t, listOutput(t, out))
		})
	}
}

func TestSplit_StrategiesProduceIdenticalFiles(t *testing.T) {
	inputs := map[string]string{
		"header":           numberedRows("id,name,note", 103),
		"no header":        numberedRows("", 57),
		"crlf":             strings.ReplaceAll(numberedRows("id,name,note", 20), "\n", "\r\n"),
		"bom":              "\ufeff" + numberedRows("id,name,note", 11),
		"unterminated end": strings.TrimSuffix(numberedRows("id,name,note", 15), "\n"),
		"trailing blank":   "h\na\nb\n\n",
		"crlf blank":       "h\r\na\r\nb\r\n\r\n",
		"interior blank":   "h\na\n\nb\n\n\nc\n",
		"leading blank":    "\n\nh\na\nb\n",
		"bom blank":        "\ufeff\nh\na\n",
		"no header blank":  "1,2\n\n3,4\n\r\n5,6\n\n",
	}

	for name, content := range inputs {
		for _, rows := range []int{1, 7, 10, 500} {
			t.Run(fmt.Sprintf("%s rows=%d", name, rows), func(t *testing.T) {
				input := writeInput(t, "in.csv", content)
				hasHeader := !strings.HasPrefix(name, "no header")

				seqOut, parOut := t.TempDir(), t.TempDir()
				svc, _ := newTestService(Options{MaxWorkers: 3})

				seq := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: seqOut, RowsPerFile: rows, HasHeader: hasHeader, Strategy: StrategySequential})
				par := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: parOut, RowsPerFile: rows, HasHeader: hasHeader, Strategy: StrategyParallel})
				require.True(t, seq.Success, seq.ErrorMessage())
				require.True(t, par.Success, par.ErrorMessage())
				require.Equal(t, seq.FileCount, par.FileCount)

				names := listOutput(t, seqOut)
				require.Equal(t, names, listOutput(t, parOut))
				for _, n := range names {
					assert.Equal(t, readFile(t, filepath.Join(seqOut, n)), readFile(t, filepath.Join(parOut, n)), n)
				}
			})
		}
	}
}

func TestSplit_OnlyBlankLinesAfterHeader(t *testing.T) {
	input := writeInput(t, "blank.csv", "h\n\n\r\n\n")

	for _, strategy := range []Strategy{StrategySequential, StrategyParallel} {
		t.Run(string(strategy), func(t *testing.T) {
			svc, _ := newTestService(Options{})
			res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 1, HasHeader: true, Strategy: strategy})

			assert.False(t, res.Success)
			assert.Contains(t, res.ErrorMessage(), "csv file has no data rows")
		})
	}
}

func TestSplit_ParallelReportsRecordSpanningLines(t *testing.T) {
	// The quoted field holds a newline, so two physical lines carry one record.
	input := writeInput(t, "quoted.csv", "h\n\"a\nb\"\nc\n")

	svc, _ := newTestService(Options{})
	seq := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 2, HasHeader: true, Strategy: StrategySequential})
	require.True(t, seq.Success, seq.ErrorMessage())
	assert.Equal(t, 1, seq.FileCount)

	par := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 2, HasHeader: true, Strategy: StrategyParallel})
	assert.False(t, par.Success)
	assert.Contains(t, par.ErrorMessage(), "process shard 1")
	assert.Contains(t, par.ErrorMessage(), "chunk 0 ended after 1 of 2 rows")
	assert.Equal(t, "CSV005", MapError(errors.New(par.ErrorMessage())).Code)
}

func TestWriteChunk_RowCountMismatch(t *testing.T) {
	content := "h\na\nb\n"
	input := writeInput(t, "c.csv", content)
	req := SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 5, HasHeader: true}
	header := HeaderRow{"h"}

	t.Run("fewer rows than planned", func(t *testing.T) {
		_, err := writeChunk(req, Chunk{ID: 0, Start: 2, End: int64(len(content)), Rows: 3}, header, splitOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrChunkRows)
		assert.Equal(t, KindParse, KindOf(err))
		assert.Contains(t, err.Error(), "chunk 0 ended after 2 of 3 rows")
	})

	t.Run("more rows than planned", func(t *testing.T) {
		_, err := writeChunk(req, Chunk{ID: 1, Start: 2, End: int64(len(content)), Rows: 1}, header, splitOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrChunkRows)
		assert.Contains(t, err.Error(), "chunk 1 has data past its 1 rows")
	})

	t.Run("exact", func(t *testing.T) {
		shard, err := writeChunk(req, Chunk{ID: 0, Start: 2, End: int64(len(content)), Rows: 2}, header, splitOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, shard.Rows)
		assert.Equal(t, "h\na\nb\n", readFile(t, shard.Path))
	})
}

func TestSplit_BalancedLayoutKeepsEveryRow(t *testing.T) {
	input := writeInput(t, "in.csv", numberedRows("id,name,note", 10))
	out := t.TempDir()
	svc, _ := newTestService(Options{Layout: LayoutBalanced})

	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 4, HasHeader: true, Strategy: StrategyParallel})
	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, 3, res.FileCount)

	total := 0
	for _, n := range listOutput(t, out) {
		lines := strings.Split(strings.TrimSuffix(readFile(t, filepath.Join(out, n)), "\n"), "\n")
		assert.Equal(t, "id,name,note", lines[0])
		assert.LessOrEqual(t, len(lines)-1, 4)
		total += len(lines) - 1
	}
	assert.Equal(t, 10, total)
}

func TestSplit_NoHeaderSynthesizesColumns(t *testing.T) {
	input := writeInput(t, "raw.csv", "1,2,3\n4,5,6\n7,8,9\n")
	out := t.TempDir()
	svc, _ := newTestService(Options{})

	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 2})
	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, 2, res.FileCount)
	assert.Equal(t, "column_1,column_2,column_3\n1,2,3\n4,5,6\n", readFile(t, filepath.Join(out, "raw_1.csv")))
	assert.Equal(t, "column_1,column_2,column_3\n7,8,9\n", readFile(t, filepath.Join(out, "raw_2.csv")))
}

func TestSplit_BadRecordKeepsEarlierShards(t *testing.T) {
	input := writeInput(t, "bad.csv", "a,b\n1,2\n3\n5,6\n")

	t.Run("sequential", func(t *testing.T) {
		out := t.TempDir()
		svc, _ := newTestService(Options{})
		res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 1, HasHeader: true, Strategy: StrategySequential})

		assert.False(t, res.Success)
		assert.Equal(t, 0, res.FileCount)
		assert.Contains(t, res.ErrorMessage(), "wrong number of fields")
		assert.FileExists(t, filepath.Join(out, "bad_1.csv"))
	})

	t.Run("parallel", func(t *testing.T) {
		out := t.TempDir()
		svc, _ := newTestService(Options{})
		res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 1, HasHeader: true, Strategy: StrategyParallel})

		assert.False(t, res.Success)
		assert.Equal(t, 0, res.FileCount)
		assert.Contains(t, res.ErrorMessage(), "process shard 2")
		assert.Contains(t, res.ErrorMessage(), "wrong number of fields")
		assert.FileExists(t, filepath.Join(out, "bad_1.csv"))
		assert.FileExists(t, filepath.Join(out, "bad_3.csv"))
	})
}

func TestSplit_ConvertToExcel(t *testing.T) {
	for _, strategy := range []Strategy{StrategySequential, StrategyParallel} {
		t.Run(string(strategy), func(t *testing.T) {
			input := writeInput(t, "book.csv", numberedRows("id,name,note", 5))
			out := t.TempDir()
			svc, _ := newTestService(Options{})

			res := svc.Split(context.Background(), SplitRequest{
				InputPath: input, OutputDir: out, RowsPerFile: 2, HasHeader: true, ConvertToExcel: true, Strategy: strategy,
			})
			require.True(t, res.Success, res.ErrorMessage())
			assert.Equal(t, 3, res.FileCount)
			assert.Equal(t, []string{"book_1.xlsx", "book_2.xlsx", "book_3.xlsx"}, listOutput(t, out))
		})
	}
}

func TestSplit_BusyOutputDirectory(t *testing.T) {
	input := writeInput(t, "data.csv", numberedRows("id,name,note", 3))
	out := t.TempDir()

	held := flock.New(filepath.Join(out, outputLockName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	svc, _ := newTestService(Options{LockTimeout: 50 * time.Millisecond})
	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 2, HasHeader: true})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage(), "output directory is busy")
}

func TestSplit_LockFileRemoved(t *testing.T) {
	input := writeInput(t, "data.csv", numberedRows("id,name,note", 3))
	out := t.TempDir()
	svc, _ := newTestService(Options{})

	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 2, HasHeader: true})
	require.True(t, res.Success, res.ErrorMessage())
	assert.NoFileExists(t, filepath.Join(out, outputLockName))
}

func TestSplit_TooManyConcurrentSplits(t *testing.T) {
	input := writeInput(t, "data.csv", numberedRows("id,name,note", 3))
	svc, _ := newTestService(Options{MaxConcurrent: 1, MaxWait: 30 * time.Millisecond})

	require.True(t, svc.limiter.TryAcquire())
	defer svc.limiter.Release()

	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 2, HasHeader: true})
	assert.False(t, res.Success)
	assert.Equal(t, ErrTooManySplits.Error(), res.ErrorMessage())
	assert.Equal(t, LimiterStatus{Active: 1, Available: 0, Max: 1}, svc.LimiterStatus())
}

func TestSplit_CancelledContext(t *testing.T) {
	input := writeInput(t, "data.csv", numberedRows("id,name,note", 3))
	svc, _ := newTestService(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := svc.Split(ctx, SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 2, HasHeader: true})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage(), "context canceled")
}

func TestSplit_RecordsHistory(t *testing.T) {
	input := writeInput(t, "data.csv", numberedRows("id,name,note", 3))
	svc, store := newTestService(Options{})
	ctx := context.Background()

	ok := svc.Split(ctx, SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 2, HasHeader: true})
	bad := svc.Split(ctx, SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 0})

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, bad.RunID, runs[0].ID)
	assert.False(t, runs[0].Success)
	assert.Equal(t, "rows per file must be greater than 0", runs[0].Error)
	assert.Equal(t, ok.RunID, runs[1].ID)
	assert.True(t, runs[1].Success)
	assert.Equal(t, 2, runs[1].FileCount)
	assert.Equal(t, "sequential", runs[1].Strategy)

	viaService, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, viaService, 1)
}

func TestSplit_AutoSelectsParallelOverThreshold(t *testing.T) {
	input := writeInput(t, "big.csv", numberedRows("id,name,note", 30))
	svc, _ := newTestService(Options{Selector: SelectorOptions{RowThreshold: 10}})

	res := svc.Split(context.Background(), SplitRequest{InputPath: input, OutputDir: t.TempDir(), RowsPerFile: 8, HasHeader: true})
	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, "parallel", res.Strategy)
	assert.Equal(t, 4, res.FileCount)
}

func TestSplitParallel_BoundsActiveWorkers(t *testing.T) {
	input := writeInput(t, "many.csv", numberedRows("id,name,note", 200))
	out := t.TempDir()
	workers := NewLimiter(2, 0)

	shards, err := splitParallel(
		SplitRequest{InputPath: input, OutputDir: out, RowsPerFile: 10, HasHeader: true},
		splitOptions{layout: LayoutFill, workers: workers},
	)
	require.NoError(t, err)
	require.Len(t, shards, 20)
	for i, sh := range shards {
		assert.Equal(t, i+1, sh.Index)
		assert.Equal(t, 10, sh.Rows)
	}
	assert.LessOrEqual(t, workers.Peak(), 2)
	assert.GreaterOrEqual(t, workers.Peak(), 1)
	assert.Equal(t, 0, workers.ActiveCount())
}
