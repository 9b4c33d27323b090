package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/idelchi/remotestat/internal/inspect"
	"github.com/idelchi/remotestat/internal/logging"
	"github.com/idelchi/remotestat/internal/sshexec"
)

const (
	// rootListingLimit caps how many root entries the report shows.
	rootListingLimit = 10

	// recentListingLimit caps how many recent items are shown per directory.
	recentListingLimit = 5
)

// Report is the full inspection result for one host.
type Report struct {
	Host        string              `json:"host"`
	SystemInfo  []sshexec.InfoField `json:"system_info"`
	HomeListing []inspect.Entry     `json:"home_listing"`
	RootListing []inspect.Entry     `json:"root_listing"`
	Directories []DirectoryReport   `json:"directories"`
	Docker      string              `json:"docker"`
}

// DirectoryReport pairs a summary with the most recently modified items.
// Listings are sorted oldest first, so the recent items are the tail.
type DirectoryReport struct {
	Summary inspect.Summary `json:"summary"`
	Recent  []inspect.Entry `json:"recent,omitempty"`
}

// report produces the full inspection report for the configured host.
func (c *CLI) report(ctx context.Context) error {
	return c.withClient(ctx, func(client *sshexec.Client) error {
		rep := c.buildReport(client)

		if strings.ToLower(c.output) == "json" {
			return PrintJSON(rep, os.Stdout)
		}

		return printReport(rep, os.Stdout)
	})
}

func (c *CLI) buildReport(client *sshexec.Client) Report {
	rep := Report{
		Host:       c.settings.Host,
		SystemInfo: client.SystemInfo(),
	}

	rep.HomeListing = listOrEmpty(client, path.Join("/home", c.settings.User))

	rootEntries := listOrEmpty(client, "/")
	if len(rootEntries) > rootListingLimit {
		rootEntries = rootEntries[:rootListingLimit]
	}

	rep.RootListing = rootEntries

	for _, dir := range c.settings.ReportDirectories() {
		entries := listOrEmpty(client, dir)

		recent := entries
		if len(recent) > recentListingLimit {
			recent = recent[len(recent)-recentListingLimit:]
		}

		rep.Directories = append(rep.Directories, DirectoryReport{
			Summary: inspect.Summarize(dir, entries),
			Recent:  recent,
		})
	}

	docker, err := client.Execute("docker ps 2>/dev/null || echo 'Docker not available'")
	if err != nil {
		logging.S().Debugf("docker probe failed: %v", err)

		rep.Docker = "Docker not available"
	} else {
		rep.Docker = strings.TrimSpace(docker.Stdout)
	}

	return rep
}

// listOrEmpty lists a remote directory, degrading any failure to an empty
// listing so the report covers unreadable directories instead of aborting.
func listOrEmpty(client *sshexec.Client, dir string) []inspect.Entry {
	entries, err := client.ListDirectory(dir)
	if err != nil {
		logging.S().Debugf("listing %s: %v", dir, err)

		return nil
	}

	return entries
}

// summarizeAll summarizes each path, degrading listing failures to empty
// listings so one unreadable directory cannot abort the rest.
func summarizeAll(client *sshexec.Client, paths []string) []inspect.Summary {
	summaries := make([]inspect.Summary, 0, len(paths))

	for _, p := range paths {
		summaries = append(summaries, inspect.Summarize(p, listOrEmpty(client, p)))
	}

	return summaries
}

func printReport(rep Report, w io.Writer) error {
	fmt.Fprintf(w, "Inspection report for %s\n", rep.Host)

	fmt.Fprintln(w, "\nSystem information:")

	if err := PrintInfo(rep.SystemInfo, w); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nHome directory:")

	if err := PrintListing(rep.HomeListing, w); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nRoot directory (first entries):")

	if err := PrintListing(rep.RootListing, w); err != nil {
		return err
	}

	summaries := make([]inspect.Summary, 0, len(rep.Directories))
	for _, d := range rep.Directories {
		summaries = append(summaries, d.Summary)
	}

	if err := PrintSummaries(summaries, w); err != nil {
		return err
	}

	for _, d := range rep.Directories {
		if len(d.Recent) == 0 {
			continue
		}

		fmt.Fprintf(w, "\nRecent items in %s:\n", d.Summary.Path)

		if err := PrintListing(d.Recent, w); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nDocker:")
	fmt.Fprintln(w, rep.Docker)

	return nil
}

// uploadTree uploads a directory tree with a live progress line on stderr
// when attached to a terminal.
func uploadTree(client *sshexec.Client, local, remote string) error {
	enableProgress := isatty.IsTerminal(os.Stderr.Fd())

	var progressHook func(files, bytes int64)

	if enableProgress {
		// Hide cursor for in-place updates; restore on exit.
		fmt.Fprint(os.Stderr, "\033[?25l")
		defer fmt.Fprint(os.Stderr, "\033[?25h")

		// The walk is parallel, so callbacks may arrive out of order.
		var mu sync.Mutex

		var maxFiles, maxBytes int64

		progressHook = func(files, bytes int64) {
			mu.Lock()
			defer mu.Unlock()

			if files < maxFiles && bytes < maxBytes {
				return
			}

			if files > maxFiles {
				maxFiles = files
			}

			if bytes > maxBytes {
				maxBytes = bytes
			}

			msg := fmt.Sprintf("Uploading… %d files, %s",
				maxFiles, humanize.IBytes(uint64(maxBytes))) //nolint:gosec // Bytes is always positive
			fmt.Fprintf(os.Stderr, "\r\033[2K%s\r", msg)
		}
	}

	err := client.UploadDir(local, remote, progressHook)

	// Clear the status line
	if enableProgress {
		fmt.Fprint(os.Stderr, "\r\033[2K\r")
	}

	return err
}
