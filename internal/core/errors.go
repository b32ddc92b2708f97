package core

import "errors"

// Kind classifies a split failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindParse
	KindIO
	KindConversion
	KindConcurrency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindIO:
		return "io"
	case KindConversion:
		return "conversion"
	case KindConcurrency:
		return "concurrency"
	default:
		return "unknown"
	}
}

// Error is a classified split error. Op is a short human-readable description
// of what failed and may be empty; Err is the underlying cause and may be nil.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err == nil:
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func parseError(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

func ioError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func conversionError(op string, err error) error {
	return &Error{Kind: KindConversion, Op: op, Err: err}
}

// Sentinel causes for the validation and parse failures a caller may want to
// match with errors.Is.
var (
	ErrRowsPerFile   = errors.New("rows per file must be greater than 0")
	ErrInputMissing  = errors.New("input file does not exist")
	ErrNotCSV        = errors.New("input is not a .csv file")
	ErrEmptyFile     = errors.New("empty file")
	ErrNotWritable   = errors.New("output directory is not writable")
	ErrNoDataRows    = errors.New("csv file has no data rows")
	ErrNoColumns     = errors.New("csv file has no columns")
	ErrOutputBusy    = errors.New("output directory is busy")
	ErrChunkRows     = errors.New("chunk does not match its planned row count")
	ErrTooManySplits = errors.New("too many concurrent splits, please try again later")
)

// invalid wraps err as a validation failure, keeping its message as is.
func invalid(err error) error {
	return &Error{Kind: KindValidation, Err: err}
}
