package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/remotestat/internal/config"
	"github.com/idelchi/remotestat/internal/logging"
	"github.com/idelchi/remotestat/internal/sshexec"
)

// CLI represents the command-line interface.
type CLI struct {
	version  string
	settings config.Settings
	output   string
	verbose  bool
}

// New creates a new CLI instance with the given version.
func New(version string) *CLI {
	return &CLI{version: version}
}

// allowedOutputs are the accepted values for the --output flag.
var allowedOutputs = []string{"table", "json"}

// Execute runs the CLI with the process arguments. The session context is
// cancelled on interrupt or termination so the SSH connection is released
// on every exit path.
func (c *CLI) Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer logging.Sync() //nolint:errcheck // Best-effort flush on exit

	return c.rootCommand().ExecuteContext(ctx)
}

func (c *CLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "remotestat [flags]",
		Version: c.version,
		Short:   "Inspect a remote host over SSH",
		Long: heredoc.Doc(`
			remotestat connects to a remote host over SSH and inspects it:
			it runs commands, transfers files and summarizes directory
			contents (item counts, total size, largest files).

			Without a subcommand it produces a full inspection report:
			system information, home and root directory listings, and a
			summary for every configured directory.

			Configuration is read from REMOTESTAT_* environment variables
			(HOST, USER, KEY, PORT, DIRECTORIES, LOG_LEVEL) and overridden
			by flags.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.report(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("host", "H", "", "Remote hostname or IP address")
	flags.StringP("user", "u", "", "SSH username")
	flags.StringP("key", "k", "", "Path to SSH private key")
	flags.IntP("port", "p", 0, "SSH port")
	flags.StringVarP(&c.output, "output", "o", "table", "Output format: json or table")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringSlice("dirs", nil, "Directories to summarize in the report")

	root.AddCommand(
		c.lsCommand(),
		c.summaryCommand(),
		c.execCommand(),
		c.getCommand(),
		c.putCommand(),
		c.infoCommand(),
	)

	return root
}

// setup merges environment settings with flag overrides, validates the
// result and initializes logging.
func (c *CLI) setup(flags *pflag.FlagSet) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	if flags.Changed("host") {
		settings.Host, _ = flags.GetString("host")
	}

	if flags.Changed("user") {
		settings.User, _ = flags.GetString("user")
	}

	if flags.Changed("key") {
		settings.Key, _ = flags.GetString("key")
	}

	if flags.Changed("port") {
		settings.Port, _ = flags.GetInt("port")
	}

	if flags.Changed("dirs") {
		settings.Directories, _ = flags.GetStringSlice("dirs")
	}

	if err := settings.Validate(); err != nil {
		return err
	}

	if !slices.Contains(allowedOutputs, strings.ToLower(c.output)) {
		return fmt.Errorf("invalid output format %q: must be one of %v", c.output, allowedOutputs)
	}

	level := settings.LogLevel
	if c.verbose {
		level = "debug"
	}

	if err := logging.Init(level); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	c.settings = settings

	return nil
}

// withClient runs fn with a connected client, releasing the connection on
// every exit path.
func (c *CLI) withClient(ctx context.Context, fn func(*sshexec.Client) error) error {
	client, err := sshexec.Dial(ctx, sshexec.Options{
		Host:    c.settings.Host,
		User:    c.settings.User,
		KeyPath: c.settings.Key,
		Port:    c.settings.Port,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(client)
}

func (c *CLI) lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <path>",
		Short: "List a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *sshexec.Client) error {
				entries, err := client.ListDirectory(args[0])
				if err != nil {
					return err
				}

				if strings.ToLower(c.output) == "json" {
					return PrintJSON(entries, os.Stdout)
				}

				return PrintListing(entries, os.Stdout)
			})
		},
	}
}

func (c *CLI) summaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <path>...",
		Short: "Summarize remote directories",
		Long: heredoc.Doc(`
			Summarize one or more remote directories: item counts, the
			directory/file split, total size and the three largest entries.

			A directory that is empty or unreadable is reported as
			inaccessible; the two cases cannot be told apart from the
			listing alone.
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *sshexec.Client) error {
				summaries := summarizeAll(client, args)

				if strings.ToLower(c.output) == "json" {
					return PrintJSON(summaries, os.Stdout)
				}

				return PrintSummaries(summaries, os.Stdout)
			})
		},
	}
}

func (c *CLI) execCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>...",
		Short: "Run a command on the remote host",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *sshexec.Client) error {
				res, err := client.Execute(strings.Join(args, " "))
				if err != nil {
					return err
				}

				fmt.Fprint(os.Stdout, res.Stdout)
				fmt.Fprint(os.Stderr, res.Stderr)

				if res.ExitCode != 0 {
					return fmt.Errorf("remote command exited %d", res.ExitCode)
				}

				return nil
			})
		},
	}
}

func (c *CLI) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "Download a file from the remote host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *sshexec.Client) error {
				return client.Download(args[0], args[1])
			})
		},
	}
}

func (c *CLI) putCommand() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a file or directory to the remote host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *sshexec.Client) error {
				if !recursive {
					return client.Upload(args[0], args[1])
				}

				return uploadTree(client, args[0], args[1])
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Upload a directory tree")

	return cmd
}

func (c *CLI) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show remote system information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd.Context(), func(client *sshexec.Client) error {
				fields := client.SystemInfo()

				if strings.ToLower(c.output) == "json" {
					return PrintJSON(fields, os.Stdout)
				}

				return PrintInfo(fields, os.Stdout)
			})
		},
	}
}
