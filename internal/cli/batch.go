package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/WvvvWv/csvsplit/internal/core"
)

// Manifest is a batch of splits read from YAML:
//
//	defaults:
//	  output_dir: out
//	  rows_per_file: 50000
//	splits:
//	  - input_path: january.csv
//	  - input_path: february.csv
//	    has_header: false
//
// Entry fields override defaults. Relative paths are resolved against the
// manifest's directory.
type Manifest struct {
	Defaults ManifestEntry   `yaml:"defaults"`
	Splits   []ManifestEntry `yaml:"splits"`
}

// ManifestEntry is one split in a manifest. Booleans are pointers so that an
// entry can turn off a default.
type ManifestEntry struct {
	InputPath      string `yaml:"input_path"`
	OutputDir      string `yaml:"output_dir"`
	RowsPerFile    int    `yaml:"rows_per_file"`
	HasHeader      *bool  `yaml:"has_header"`
	ConvertToExcel *bool  `yaml:"convert_to_excel"`
	Strategy       string `yaml:"strategy"`
}

// LoadManifest reads and resolves a manifest file.
func LoadManifest(path string) ([]core.SplitRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Splits) == 0 {
		return nil, fmt.Errorf("manifest %s lists no splits", path)
	}

	base := filepath.Dir(path)
	reqs := make([]core.SplitRequest, 0, len(m.Splits))
	for _, e := range m.Splits {
		reqs = append(reqs, m.Defaults.merge(e).request(base))
	}
	return reqs, nil
}

func (d ManifestEntry) merge(e ManifestEntry) ManifestEntry {
	if e.InputPath == "" {
		e.InputPath = d.InputPath
	}
	if e.OutputDir == "" {
		e.OutputDir = d.OutputDir
	}
	if e.RowsPerFile == 0 {
		e.RowsPerFile = d.RowsPerFile
	}
	if e.HasHeader == nil {
		e.HasHeader = d.HasHeader
	}
	if e.ConvertToExcel == nil {
		e.ConvertToExcel = d.ConvertToExcel
	}
	if e.Strategy == "" {
		e.Strategy = d.Strategy
	}
	return e
}

// request converts a merged entry. A missing has_header means true.
func (e ManifestEntry) request(base string) core.SplitRequest {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	hasHeader := true
	if e.HasHeader != nil {
		hasHeader = *e.HasHeader
	}
	return core.SplitRequest{
		InputPath:      resolve(e.InputPath),
		OutputDir:      resolve(e.OutputDir),
		RowsPerFile:    e.RowsPerFile,
		HasHeader:      hasHeader,
		ConvertToExcel: e.ConvertToExcel != nil && *e.ConvertToExcel,
		Strategy:       core.Strategy(e.Strategy),
	}
}

// BatchItem pairs an input with its result in JSON output.
type BatchItem struct {
	Input  string           `json:"input"`
	Result core.SplitResult `json:"result"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Run the splits listed in a YAML manifest",
		Long: `Run every split in a YAML manifest, in order. A failed split does not
stop the batch; the command exits non-zero if any split failed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runBatch(cmd *cobra.Command, opts *RootOptions, manifestPath string) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	reqs, err := LoadManifest(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load manifest", err)
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	items := make([]BatchItem, 0, len(reqs))
	failed := 0
	for _, req := range reqs {
		res := svc.Split(cmd.Context(), req)
		if !res.Success {
			failed++
		}
		items = append(items, BatchItem{Input: filepath.Base(req.InputPath), Result: res})
	}

	if opts.Format == "json" {
		status := "ok"
		if failed > 0 {
			status = "error"
		}
		if err := formatter.encode(CLIResponse{Status: status, Data: items}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, it := range items {
			fmt.Fprintf(w, "%s: %s\n", it.Input, SplitLine(it.Result))
		}
		fmt.Fprintf(w, "%d of %d splits succeeded\n", len(items)-failed, len(items))
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d splits failed", failed, len(items)))
	}
	return nil
}
