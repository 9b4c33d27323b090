package sshexec

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/idelchi/remotestat/internal/inspect"
	"github.com/idelchi/remotestat/internal/logging"
)

// listCommand is the long-format, reverse-time, human-readable listing the
// parser expects.
const listCommand = "ls -lrth"

// ListDirectory lists a remote directory and parses the output into
// entries. A failed listing (non-zero exit) returns a *CommandError so
// callers can choose to treat the directory as inaccessible instead of
// aborting.
func (c *Client) ListDirectory(path string) ([]inspect.Entry, error) {
	cmd := fmt.Sprintf("%s %s", listCommand, shellQuote(path))

	res, err := c.Execute(cmd)
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}

	if res.ExitCode != 0 {
		return nil, &CommandError{Command: cmd, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	return inspect.Parse(res.Stdout), nil
}

// ReadFile reads the contents of a remote file.
func (c *Client) ReadFile(path string) ([]byte, error) {
	res, err := c.Execute(fmt.Sprintf("cat %s", shellQuote(path)))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	if res.ExitCode != 0 {
		return nil, fmt.Errorf("read file: %s", strings.TrimSpace(res.Stderr))
	}

	return []byte(res.Stdout), nil
}

// WriteFile writes data to a remote file, truncating it first. Data is
// sent as base64 chunks to avoid shell argument length limits.
func (c *Client) WriteFile(path string, data []byte) error {
	const chunkSize = 48000

	res, err := c.Execute(fmt.Sprintf("> %s", shellQuote(path)))
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("write file: %s", strings.TrimSpace(res.Stderr))
	}

	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}

		b64 := base64.StdEncoding.EncodeToString(data[i:end])

		res, err := c.Execute(fmt.Sprintf("echo '%s' | base64 -d >> %s", b64, shellQuote(path)))
		if err != nil {
			return fmt.Errorf("write file: %w", err)
		}

		if res.ExitCode != 0 {
			return fmt.Errorf("write file: %s", strings.TrimSpace(res.Stderr))
		}
	}

	return nil
}

// Download copies a remote file to a local path.
func (c *Client) Download(remotePath, localPath string) error {
	start := time.Now()

	data, err := c.ReadFile(remotePath)
	if err != nil {
		return fmt.Errorf("download %s: %w", remotePath, err)
	}

	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return fmt.Errorf("write local file %s: %w", localPath, err)
	}

	logging.S().Infof("downloaded %s to %s (%d bytes) in %s", remotePath, localPath, len(data), time.Since(start))

	return nil
}

// Upload copies a local file to a remote path.
func (c *Client) Upload(localPath, remotePath string) error {
	start := time.Now()

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read local file %s: %w", localPath, err)
	}

	if err := c.WriteFile(remotePath, data); err != nil {
		return fmt.Errorf("upload %s: %w", localPath, err)
	}

	logging.S().Infof("uploaded %s to %s (%d bytes) in %s", localPath, remotePath, len(data), time.Since(start))

	return nil
}

// CreateDirectory creates a remote directory and any missing parents.
func (c *Client) CreateDirectory(path string) error {
	res, err := c.Execute(fmt.Sprintf("mkdir -p %s", shellQuote(path)))
	if err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("create directory: %s", strings.TrimSpace(res.Stderr))
	}

	return nil
}

// UploadDir recursively uploads a local directory tree to remotePath.
//
// The local tree is walked in parallel; unreadable local paths are skipped
// rather than failing the whole transfer. Remote directories are created
// before their children are uploaded, which the walk ordering guarantees.
// If progress is non-nil it is called with cumulative file and byte counts
// after every uploaded file.
func (c *Client) UploadDir(localRoot, remotePath string, progress func(files, bytes int64)) error {
	localRoot = filepath.Clean(localRoot)

	info, err := os.Stat(localRoot)
	if err != nil {
		return fmt.Errorf("accessing path %q: %w", localRoot, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path %q is not a directory", localRoot)
	}

	if err := c.CreateDirectory(remotePath); err != nil {
		return err
	}

	var files, bytes int64

	conf := &fastwalk.Config{
		Follow: false, // Don't follow symlinks
	}

	walkErr := fastwalk.Walk(conf, localRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.S().Debugf("skipping %s: %v", path, err)

			return nil
		}

		rel, err := filepath.Rel(localRoot, path)
		if err != nil || rel == "." {
			return nil
		}

		target := remotePath + "/" + filepath.ToSlash(rel)

		if d.IsDir() {
			if err := c.CreateDirectory(target); err != nil {
				logging.S().Warnf("skipping directory %s: %v", path, err)

				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logging.S().Debugf("skipping %s: %v", path, err)

			return nil
		}

		if err := c.WriteFile(target, data); err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}

		n := atomic.AddInt64(&files, 1)
		total := atomic.AddInt64(&bytes, int64(len(data)))

		if progress != nil {
			progress(n, total)
		}

		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	logging.S().Infof("uploaded %d files (%d bytes) to %s", atomic.LoadInt64(&files), atomic.LoadInt64(&bytes), remotePath)

	return nil
}

// ResolvePath checks that a remote directory exists and is enterable,
// returning its canonical path.
func (c *Client) ResolvePath(path string) (string, error) {
	res, err := c.Execute(fmt.Sprintf("cd %s && pwd", shellQuote(path)))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	if res.ExitCode != 0 {
		return "", &CommandError{Command: "cd " + path, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	return strings.TrimSpace(res.Stdout), nil
}

// shellQuote wraps a string in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
