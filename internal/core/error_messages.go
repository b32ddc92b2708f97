// # Error Codes Reference
//
// This file defines user-facing messages with codes for support reference.
// Both boundaries (HTTP and CLI) show the code next to the message so a
// failed split can be quoted back without the full technical error.
//
// Error codes are grouped by category:
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Rows per file must be greater than 0
//	         Action: Choose a positive number of rows per output file
//	         Patterns: "rows per file must be greater than 0"
//
//	VAL002 - Unknown strategy
//	         Action: Use auto, sequential or parallel
//	         Patterns: "unknown strategy"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Input file does not exist
//	          Action: Check the input path
//	          Patterns: "input file does not exist"
//
//	FILE002 - Input is not a .csv file
//	          Action: Select a file with the .csv extension
//	          Patterns: "input is not a .csv file"
//
//	FILE003 - Empty file
//	          Action: Select a CSV file with a header and data rows
//	          Patterns: "empty file"
//
//	FILE004 - Output directory is not writable
//	          Action: Pick another output directory or fix its permissions
//	          Patterns: "output directory is not writable"
//
//	FILE005 - Output directory is busy
//	          Action: Wait for the other split into this directory to finish
//	          Patterns: "output directory is busy"
//
// # CSV Errors (CSV001-CSV099)
//
//	CSV001 - No data rows
//	CSV002 - No columns
//	CSV003 - Wrong number of fields in a record
//	CSV004 - Malformed quoting
//	CSV005 - Parallel chunk did not hold its planned rows
//
// # Spreadsheet Errors (XLSX001-XLSX099)
//
//	XLSX001 - Shard too large for one worksheet
//	XLSX002 - Converted CSV could not be removed
//	XLSX003 - Conversion failed
//
// # Worker Errors (WRK001-WRK099)
//
//	WRK001 - A parallel worker panicked
//	WRK002 - A parallel worker failed
//
// # Split Errors (SPL001-SPL099)
//
//	SPL001 - Too many concurrent splits
//	SPL002 - Request cancelled
//	SPL003 - Request timed out
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so a CSV cause reported by a parallel
// worker maps to its CSV code rather than the generic worker code.

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Validation Errors (VAL001-VAL002)
	// =========================================================================
	{
		pattern: "rows per file must be greater than 0",
		msg: UserMessage{
			Message: "Rows per file must be greater than 0",
			Action:  "Choose a positive number of rows per output file",
			Code:    "VAL001",
		},
	},
	{
		pattern: "unknown strategy",
		msg: UserMessage{
			Message: "Unknown split strategy",
			Action:  "Use auto, sequential or parallel",
			Code:    "VAL002",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		pattern: "input file does not exist",
		msg: UserMessage{
			Message: "Input file does not exist",
			Action:  "Check the input path",
			Code:    "FILE001",
		},
	},
	{
		pattern: "input is not a .csv file",
		msg: UserMessage{
			Message: "Input is not a .csv file",
			Action:  "Select a file with the .csv extension",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The input file is empty",
			Action:  "Select a CSV file with a header and data rows",
			Code:    "FILE003",
		},
	},
	{
		pattern: "output directory is not writable",
		msg: UserMessage{
			Message: "Output directory is not writable",
			Action:  "Pick another output directory or fix its permissions",
			Code:    "FILE004",
		},
	},
	{
		pattern: "output directory is busy",
		msg: UserMessage{
			Message: "Another split is writing to this output directory",
			Action:  "Wait for it to finish or choose another directory",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Worker panics come before CSV causes: a panic message can quote anything.
	// =========================================================================
	{
		pattern: "worker panic",
		msg: UserMessage{
			Message: "A split worker stopped unexpectedly",
			Action:  "Retry with the sequential strategy and report the error",
			Code:    "WRK001",
		},
	},

	// =========================================================================
	// CSV Errors (CSV001-CSV005)
	// =========================================================================
	{
		pattern: "csv file has no data rows",
		msg: UserMessage{
			Message: "The CSV file has no data rows",
			Action:  "Add at least one row below the header",
			Code:    "CSV001",
		},
	},
	{
		pattern: "csv file has no columns",
		msg: UserMessage{
			Message: "The CSV header has no columns",
			Action:  "Check the first line of the file",
			Code:    "CSV002",
		},
	},
	{
		pattern: "wrong number of fields",
		msg: UserMessage{
			Message: "A row has a different number of columns than the header",
			Action:  "Fix the reported line so every row has the same columns",
			Code:    "CSV003",
		},
	},
	{
		pattern: "quote",
		msg: UserMessage{
			Message: "A field has malformed quoting",
			Action:  "Check quotes around fields on the reported line",
			Code:    "CSV004",
		},
	},
	{
		pattern: "planned row count",
		msg: UserMessage{
			Message: "The file could not be split in parallel",
			Action:  "A quoted field probably spans several lines; run the split with the sequential strategy",
			Code:    "CSV005",
		},
	},

	// =========================================================================
	// Spreadsheet Errors (XLSX001-XLSX003)
	// =========================================================================
	{
		pattern: "worksheet limit",
		msg: UserMessage{
			Message: "A shard has more rows than one worksheet can hold",
			Action:  "Use fewer rows per file",
			Code:    "XLSX001",
		},
	},
	{
		pattern: "remove converted csv",
		msg: UserMessage{
			Message: "The workbook was written but the CSV shard could not be removed",
			Action:  "Remove the leftover .csv file by hand",
			Code:    "XLSX002",
		},
	},
	{
		pattern: "convert shard",
		msg: UserMessage{
			Message: "Conversion to Excel failed",
			Action:  "Retry without Excel conversion to keep the CSV shards",
			Code:    "XLSX003",
		},
	},

	// =========================================================================
	// Worker and Split Errors
	// =========================================================================
	{
		pattern: "process shard",
		msg: UserMessage{
			Message: "A parallel worker failed",
			Action:  "Check the reported shard and retry",
			Code:    "WRK002",
		},
	},
	{
		pattern: "too many concurrent splits",
		msg: UserMessage{
			Message: "System is busy with other splits",
			Action:  "Please wait a moment and try again",
			Code:    "SPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again, or split into a directory nobody else is using",
			Code:    "SPL003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
