package inspect

import (
	"fmt"
	"sort"
)

// TopLargest is the number of largest entries ranked in a summary.
const TopLargest = 3

// inaccessibleMessage is deliberately ambiguous: at this layer an empty
// listing cannot be told apart from a permission failure. Callers that see
// the listing exit code may log the distinction themselves.
const inaccessibleMessage = "Directory empty or access denied"

// Summary is the aggregate view of one directory snapshot. It is computed
// on demand from a parsed listing and discarded after use.
type Summary struct {
	// Path is the directory the summary describes.
	Path string `json:"path"`
	// Accessible is false when the listing was empty or failed.
	Accessible bool `json:"accessible"`
	// TotalItems is the number of parsed entries.
	TotalItems int `json:"total_items"`
	// Directories counts entries whose permissions start with 'd'.
	Directories int `json:"directories"`
	// Files counts the remaining entries, special types included.
	Files int `json:"files"`
	// TotalSize is the human-formatted sum of all entry sizes.
	TotalSize string `json:"total_size,omitempty"`
	// LargestFiles holds the top entries by byte size, descending.
	LargestFiles []Entry `json:"largest_files,omitempty"`
	// Error carries the inaccessibility message when Accessible is false.
	Error string `json:"error,omitempty"`
}

// Summarize aggregates parsed listing entries for path into a Summary.
//
// An empty entry slice yields an inaccessible summary. Otherwise entries
// are counted, their sizes summed fail-soft (malformed tokens contribute
// zero) and the largest entries ranked descending by byte size with a
// stable tie-break that preserves the input order. The input is not
// mutated.
func Summarize(path string, entries []Entry) Summary {
	if len(entries) == 0 {
		return Summary{
			Path:  path,
			Error: inaccessibleMessage,
		}
	}

	directories := 0

	var totalBytes float64

	for _, e := range entries {
		if e.IsDir() {
			directories++
		}

		totalBytes += ParseSize(e.Size)
	}

	largest := make([]Entry, len(entries))
	copy(largest, entries)

	sort.SliceStable(largest, func(i, j int) bool {
		return ParseSize(largest[i].Size) > ParseSize(largest[j].Size)
	})

	if len(largest) > TopLargest {
		largest = largest[:TopLargest]
	}

	return Summary{
		Path:         path,
		Accessible:   true,
		TotalItems:   len(entries),
		Directories:  directories,
		Files:        len(entries) - directories,
		TotalSize:    FormatSize(totalBytes),
		LargestFiles: largest,
	}
}

// FormatSize renders a byte count with the largest fitting binary unit.
// Thresholds are strict greater-than: exactly 1024 bytes reports as
// "1024 bytes", not "1.0KB".
func FormatSize(bytes float64) string {
	switch {
	case bytes > gigabyte:
		return fmt.Sprintf("%.1fGB", bytes/gigabyte)
	case bytes > megabyte:
		return fmt.Sprintf("%.1fMB", bytes/megabyte)
	case bytes > kilobyte:
		return fmt.Sprintf("%.1fKB", bytes/kilobyte)
	default:
		return fmt.Sprintf("%d bytes", int64(bytes))
	}
}
