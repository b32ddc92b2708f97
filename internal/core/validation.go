package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Validate checks a request against the filesystem contract and returns a
// normalized copy. Checks run cheapest first and stop at the first failure:
//
//  1. rows per file is positive
//  2. strategy is known
//  3. input exists, is a regular file with a .csv extension, and is not empty
//
// The output directory is handled separately by PrepareOutputDir.
func Validate(req SplitRequest) (SplitRequest, error) {
	if req.RowsPerFile <= 0 {
		return req, invalid(ErrRowsPerFile)
	}

	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return req, invalid(err)
	}
	req.Strategy = strategy

	if strings.TrimSpace(req.InputPath) == "" {
		return req, invalid(fmt.Errorf("%w: no input path given", ErrInputMissing))
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return req, invalid(fmt.Errorf("%w: no output directory given", ErrNotWritable))
	}
	req.InputPath = filepath.Clean(req.InputPath)
	req.OutputDir = filepath.Clean(req.OutputDir)

	info, err := os.Stat(req.InputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return req, invalid(fmt.Errorf("%w: %s", ErrInputMissing, req.InputPath))
		}
		return req, ioError("stat input file", err)
	}
	if info.IsDir() {
		return req, invalid(fmt.Errorf("%w: %s is a directory", ErrNotCSV, req.InputPath))
	}
	if !strings.EqualFold(filepath.Ext(req.InputPath), ".csv") {
		return req, invalid(fmt.Errorf("%w: %s", ErrNotCSV, req.InputPath))
	}
	if info.Size() == 0 {
		return req, invalid(fmt.Errorf("%w: %s", ErrEmptyFile, req.InputPath))
	}

	return req, nil
}

// writeProbePattern names the temporary file that proves the output
// directory accepts new files. Each call gets its own file, so concurrent
// requests for the same directory never touch each other's probe.
const writeProbePattern = ".csvsplit_probe_*.tmp"

// PrepareOutputDir creates dir if needed and probes it for write access with a
// temporary file that is removed immediately.
func PrepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return invalid(fmt.Errorf("%w: cannot create %s: %v", ErrNotWritable, dir, err))
	}

	f, err := os.CreateTemp(dir, writeProbePattern)
	if err != nil {
		return invalid(fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err))
	}
	closeErr := f.Close()
	removeErr := os.Remove(f.Name())
	if closeErr != nil || removeErr != nil {
		return invalid(fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, errors.Join(closeErr, removeErr)))
	}
	return nil
}
