package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/WvvvWv/csvsplit/internal/excel"
	"github.com/WvvvWv/csvsplit/internal/history"
	"github.com/WvvvWv/csvsplit/internal/logging"
)

// Defaults for the request-level limiter.
const (
	DefaultMaxConcurrentSplits = 2
	DefaultMaxWaitTime         = 30 * time.Second
)

// Options configures a Service. Zero values take the package defaults.
type Options struct {
	Selector    SelectorOptions
	MaxWorkers  int
	Layout      ChunkLayout
	WriteBuffer int
	LockTimeout time.Duration

	// MaxConcurrent bounds how many splits run at once; MaxWait is how long a
	// request waits for a slot before failing with ErrTooManySplits.
	MaxConcurrent int
	MaxWait       time.Duration

	Excel excel.Options
}

func (o Options) withDefaults() Options {
	o.Selector = o.Selector.withDefaults()
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.Layout == "" {
		o.Layout = LayoutFill
	}
	if o.WriteBuffer <= 0 {
		o.WriteBuffer = DefaultWriteBufferSize
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrentSplits
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWaitTime
	}
	return o
}

// Service runs splits and turns their outcome into a SplitResult. It is safe
// for concurrent use.
type Service struct {
	opts    Options
	limiter *Limiter
	history history.Store
}

// NewService creates a Service. store may be nil, in which case runs are not
// recorded.
func NewService(opts Options, store history.Store) *Service {
	opts = opts.withDefaults()
	return &Service{
		opts:    opts,
		limiter: NewLimiter(opts.MaxConcurrent, opts.MaxWait),
		history: store,
	}
}

// Split runs one request to completion. It never panics and never returns an
// error: failures are reported in the result with success=false and
// file_count=0. Shards written before a failure are left on disk.
func (s *Service) Split(ctx context.Context, req SplitRequest) SplitResult {
	runID := uuid.New().String()
	started := time.Now()
	log := logging.WithFields(ctx, "run_id", runID, "input", req.InputPath, "output_dir", req.OutputDir)

	log.Info("split started", "rows_per_file", req.RowsPerFile, "has_header", req.HasHeader, "convert_to_excel", req.ConvertToExcel)

	count, strategy, err := s.run(ctx, log, req)

	result := SplitResult{
		Success:   err == nil,
		FileCount: count,
		Strategy:  string(strategy),
		RunID:     runID,
	}
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		result.FileCount = 0
		log.Error("split failed", "error", err, "kind", KindOf(err).String(), "strategy", string(strategy), "duration", time.Since(started))
	} else {
		log.Info("split completed", "files", count, "strategy", string(strategy), "duration", time.Since(started))
	}

	s.record(ctx, log, history.Run{
		ID:             runID,
		InputPath:      req.InputPath,
		OutputDir:      req.OutputDir,
		RowsPerFile:    req.RowsPerFile,
		HasHeader:      req.HasHeader,
		ConvertToExcel: req.ConvertToExcel,
		Strategy:       result.Strategy,
		Success:        result.Success,
		FileCount:      result.FileCount,
		Error:          result.ErrorMessage(),
		StartedAt:      started.UTC(),
		Duration:       time.Since(started),
	})
	return result
}

func (s *Service) run(ctx context.Context, log *slog.Logger, req SplitRequest) (count int, strategy Strategy, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("split panicked", "panic", r)
			count, err = 0, fmt.Errorf("split panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return 0, "", err
	}
	defer s.limiter.Release()

	req, err = Validate(req)
	if err != nil {
		return 0, "", err
	}
	if err := PrepareOutputDir(req.OutputDir); err != nil {
		return 0, "", err
	}

	lock, err := lockOutputDir(ctx, req.OutputDir, s.opts.LockTimeout)
	if err != nil {
		return 0, "", err
	}
	defer func() {
		if relErr := lock.release(); relErr != nil {
			log.Warn("release output lock", "error", relErr)
		}
	}()

	strategy = req.Strategy
	if strategy == StrategyAuto {
		info, statErr := os.Stat(req.InputPath)
		if statErr != nil {
			return 0, "", ioError("stat input file", statErr)
		}
		strategy = SelectStrategy(req.InputPath, info.Size(), s.opts.Selector)
		log.Debug("strategy selected", "strategy", string(strategy), "size", info.Size())
	}

	splitOpts := splitOptions{
		maxWorkers:  s.opts.MaxWorkers,
		layout:      s.opts.Layout,
		writeBuffer: s.opts.WriteBuffer,
		logger:      log,
	}

	var shards []Shard
	switch strategy {
	case StrategyParallel:
		shards, err = splitParallel(req, splitOpts)
	default:
		shards, err = splitSequential(req, splitOpts)
	}
	if err != nil {
		return 0, strategy, err
	}

	if req.ConvertToExcel {
		if err := s.convert(log, shards); err != nil {
			return 0, strategy, err
		}
	}
	return len(shards), strategy, nil
}

// convert turns every shard into a workbook, one after another.
func (s *Service) convert(log *slog.Logger, shards []Shard) error {
	paths := make([]string, len(shards))
	for i, sh := range shards {
		paths[i] = sh.Path
	}

	opts := s.opts.Excel
	opts.Logger = log
	results, err := excel.NewConverter(opts).ConvertAll(paths)
	if err != nil {
		if errors.Is(err, excel.ErrRemoveSource) {
			return ioError("remove converted shard", err)
		}
		return conversionError("convert shards to excel", err)
	}
	log.Info("shards converted", "workbooks", len(results))
	return nil
}

func (s *Service) record(ctx context.Context, log *slog.Logger, run history.Run) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("record split run", "error", err)
	}
}

// Recent returns up to limit recorded runs, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]history.Run, error) {
	if s.history == nil {
		return []history.Run{}, nil
	}
	return s.history.Recent(ctx, limit)
}

// LimiterStatus reports the request-level limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForSplits blocks until no split is running or ctx ends. Used during
// graceful shutdown.
func (s *Service) WaitForSplits(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
