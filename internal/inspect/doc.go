// Package inspect turns raw directory-listing output into structured,
// sortable data.
//
// It parses the long-format text produced by `ls -lrth` on a remote host
// into listing entries, converts human-readable size tokens into byte
// counts, and aggregates entries into per-directory summaries with a
// top-3 largest-files ranking. All functions are pure and fail-soft:
// malformed lines are dropped and malformed size tokens count as zero
// bytes, so partial output still aggregates.
package inspect
