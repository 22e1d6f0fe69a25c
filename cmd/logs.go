// File: cmd/logs.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
		app    bool
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the event log",
		Long: `Prints the last lines of the event log, one line per started patrol,
finished visit and skipped tick. --app reads the application log file instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			path := cfg.Logger().EventLog
			if app {
				path = cfg.Logger().LogFile
			}
			if path == "" {
				return fmt.Errorf("no log file configured")
			}

			out := cmd.OutOrStdout()
			if err := printLastLines(out, path, lines); err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return followFile(cmd.Context(), out, path)
		},
	}

	f := logsCmd.Flags()
	f.BoolVarP(&follow, "follow", "f", false, "keep printing lines as they are appended")
	f.IntVarP(&lines, "lines", "n", 50, "number of trailing lines to print")
	f.BoolVar(&app, "app", false, "read the application log instead of the event log")
	return logsCmd
}

// printLastLines reads path to EOF and writes at most n trailing lines.
func printLastLines(w io.Writer, path string, n int) error {
	if n <= 0 {
		return nil
	}
	t, err := tail.TailFile(path, tail.Config{MustExist: true, Logger: tail.DiscardingLogger})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer t.Cleanup()

	ring := make([]string, 0, n)
	for line := range t.Lines {
		if line.Err != nil {
			return fmt.Errorf("failed to read %s: %w", path, line.Err)
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, line.Text)
	}
	for _, l := range ring {
		fmt.Fprintln(w, l)
	}
	return t.Wait()
}

func followFile(ctx context.Context, w io.Writer, path string) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read %s: %w", path, line.Err)
			}
			fmt.Fprintln(w, line.Text)
		}
	}
}
