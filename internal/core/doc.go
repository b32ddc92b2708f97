// Package core splits a CSV file into numbered shards of at most
// rows_per_file data rows each, optionally converting every shard to an
// .xlsx workbook.
//
// The package holds all split logic independent of any transport. It is used
// by the HTTP server, the CLI and tests without modification.
//
// # Strategies
//
// Two execution strategies produce the same files:
//
//   - Sequential: one streaming pass over the source with a single open
//     shard at a time. Memory stays bounded by one record.
//   - Parallel: the source is mapped read-only, every line start is
//     indexed, and line-aligned chunks are written by a bounded pool of
//     workers. Chunk i always becomes shard i+1.
//
// [SelectStrategy] picks parallel for files over the size threshold or with
// more lines than the row threshold; a request may also force a strategy.
//
// # Service
//
// [Service.Split] is the entry point. It validates the request, probes and
// locks the output directory, runs the strategy, converts shards when asked,
// and reports the outcome as a [SplitResult]. It never panics and never
// returns an error; failures are carried in the result.
//
// # Error Handling
//
// Failures are [*Error] values classified by [Kind]. [MapError] turns any
// error into a [UserMessage] with a support code:
//
//   - VAL001-VAL002: request validation
//   - FILE001-FILE005: input and output paths
//   - CSV001-CSV004: malformed CSV
//   - XLSX001-XLSX003: spreadsheet conversion
//   - WRK001-WRK002: parallel workers
//   - SPL001-SPL003: request limits and cancellation
//
// Shards written before a failure are not removed.
package core
