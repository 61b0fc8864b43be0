// Package logging configures slog for clausecheck.
//
// Without --debug, warnings and errors go to stderr as text. With --debug,
// JSON records at debug level are also written to a size-rotated file under
// ~/.clausecheck/logs/ so degraded lookups and skipped sub-items can be
// traced after a run.
package logging
