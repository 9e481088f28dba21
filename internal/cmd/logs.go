package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/statebridge/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View statebridge logs",
	Long: `View and filter the statebridge log file.

Logs are only kept on disk when logging.dir is set; otherwise they go to
stderr.

Examples:
  # Show last 50 lines
  statebridge logs

  # Follow logs in real-time
  statebridge logs -f

  # Only writes and subscriptions for one document
  statebridge logs --grep "BTC/USDT"

  # Warnings and errors from the last hour
  statebridge logs --level warn --since 1h

  # Export everything for one key, rotated files included
  statebridge logs --key BTC/USDT --export btc.csv --format csv`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail   int
	logsFollow bool
	logsLevel  string
	logsSince  string
	logsGrep   string
	logsKey    string
	logsExport string
	logsFormat string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsKey, "key", "", "Only entries for this document key")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "Write matching entries, including rotated logs, to this file")
	logsCmd.Flags().StringVar(&logsFormat, "format", "json", "Export format: json, text or csv")
}

// newLogFilter validates the flag values and builds the filter.
func newLogFilter(level, since, grep string, now time.Time) (logging.LogFilter, error) {
	var f logging.LogFilter

	if level != "" {
		if !logging.ValidLevel(level) {
			return f, fmt.Errorf("invalid level %q: must be one of %s",
				level, strings.ToLower(strings.Join(logging.ValidLevels(), ", ")))
		}
		f.Level = level
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.Since = now.Add(-d)
	}
	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.Pattern = re
	}
	return f, nil
}

// formatLine parses one raw line. Lines that are not JSON pass through.
func formatLine(line string, f logging.LogFilter) (string, bool) {
	entry, err := logging.ParseLogEntry(line)
	if err != nil {
		return line, true
	}
	if !f.Matches(entry) {
		return "", false
	}
	return logging.FormatText(entry), true
}

func runLogs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	dir := viper.GetString("logging.dir")
	if dir == "" {
		fmt.Fprintln(out, "No log file: logging.dir is not set, logs are written to stderr.")
		return nil
	}
	logPath := filepath.Join(dir, logging.FileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "No logs found at %s\n", logPath)
		return nil
	}

	filter, err := newLogFilter(logsLevel, logsSince, logsGrep, time.Now())
	if err != nil {
		return err
	}
	filter.Key = logsKey

	if logsExport != "" {
		return exportLogs(out, dir, logsExport, logsFormat, filter)
	}

	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, out, logPath, filter)
	}
	return displayLogs(out, logPath, logsTail, filter)
}

// displayLogs prints the last tail matching entries.
func displayLogs(out io.Writer, logPath string, tail int, filter logging.LogFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		if line, ok := formatLine(scanner.Text(), filter); ok {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if len(lines) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
	}
	return nil
}

// followLogs implements tail -f behavior until ctx is done.
func followLogs(ctx context.Context, out io.Writer, logPath string, filter logging.LogFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		partial += chunk
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}

		raw := strings.TrimSpace(partial)
		partial = ""
		if raw == "" {
			continue
		}
		if line, ok := formatLine(raw, filter); ok {
			fmt.Fprintln(out, line)
		}
	}
}

// exportLogs writes every matching entry from the live and rotated log files
// to path.
func exportLogs(out io.Writer, dir, path, format string, filter logging.LogFilter) error {
	if !slices.Contains(logging.ExportFormats(), strings.ToLower(format)) {
		return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(logging.ExportFormats(), ", "))
	}

	entries, err := logging.AggregateLogs(dir)
	if err != nil {
		return err
	}
	entries = logging.FilterLogs(entries, filter)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := logging.ExportLogEntries(file, entries, format); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	fmt.Fprintf(out, "Exported %d entries to %s\n", len(entries), path)
	return nil
}
