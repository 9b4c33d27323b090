package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/idelchi/remotestat/internal/inspect"
	"github.com/idelchi/remotestat/internal/sshexec"
)

const (
	// TabSpacing is the number of spaces between tabwriter columns.
	TabSpacing = 2
)

// PrintJSON outputs any value in indented JSON format.
func PrintJSON(v any, writer io.Writer) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// PrintListing outputs directory entries in human-readable table format.
func PrintListing(entries []inspect.Entry, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s %s %s\t%s\n",
			e.Permissions, e.Links, e.Owner, e.Group, e.Size, e.Month, e.Day, e.Time, e.Name)
	}

	return w.Flush()
}

// PrintSummaries outputs directory summaries in human-readable table format.
func PrintSummaries(summaries []inspect.Summary, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	for _, s := range summaries {
		fmt.Fprintf(w, "\n%s:\t\t\n", s.Path)

		if !s.Accessible {
			fmt.Fprintf(w, "  %s\n", s.Error)

			continue
		}

		fmt.Fprintf(w, "  Items:\t%d (%d directories, %d files)\n",
			s.TotalItems, s.Directories, s.Files)
		fmt.Fprintf(w, "  Total size:\t%s\n", s.TotalSize)

		if len(s.LargestFiles) > 0 {
			fmt.Fprintln(w, "  Largest files:\t")

			for i, f := range s.LargestFiles {
				fmt.Fprintf(w, "    %d) %s\t%s\n", i+1, f.Name, f.Size)
			}
		}
	}

	return w.Flush()
}

// PrintInfo outputs system information fields in label order. Multi-line
// values get their own indented block.
func PrintInfo(fields []sshexec.InfoField, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	for _, f := range fields {
		value := strings.TrimRight(f.Value, "\n")

		if !strings.Contains(value, "\n") {
			fmt.Fprintf(w, "%s:\t%s\n", f.Label, value)

			continue
		}

		fmt.Fprintf(w, "%s:\t\n", f.Label)

		for _, line := range strings.Split(value, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	return w.Flush()
}
