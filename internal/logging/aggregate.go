package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of statebridge.log.
type LogEntry struct {
	Time           time.Time      `json:"time"`
	Level          string         `json:"level"`
	Message        string         `json:"msg"`
	Collection     string         `json:"collection,omitempty"`
	Key            string         `json:"key,omitempty"`
	SubscriptionID string         `json:"subscription_id,omitempty"`
	Attrs          map[string]any `json:"attrs,omitempty"`
}

// knownFields are lifted into LogEntry fields; everything else lands in Attrs.
var knownFields = map[string]bool{
	"time":            true,
	"level":           true,
	"msg":             true,
	"collection":      true,
	"key":             true,
	"subscription_id": true,
}

// ParseLogEntry decodes one JSON log line.
func ParseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var entry LogEntry
	if s, ok := raw["time"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Time = ts
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.Collection, _ = raw["collection"].(string)
	entry.Key, _ = raw["key"].(string)
	entry.SubscriptionID, _ = raw["subscription_id"].(string)

	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if entry.Attrs == nil {
			entry.Attrs = make(map[string]any)
		}
		entry.Attrs[k] = v
	}
	return entry, nil
}

// LogFilter selects entries. Zero-valued fields do not filter.
// All set criteria must match.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level string
	// Since and Until bound the entry time, inclusive.
	Since time.Time
	Until time.Time
	// Collection and Key select one document's entries.
	Collection string
	Key        string
	// SubscriptionID selects one subscription's entries.
	SubscriptionID string
	// Pattern must match the message, document fields or any attribute.
	Pattern *regexp.Regexp
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ValidLevel reports whether level names a known level, in any case.
func ValidLevel(level string) bool {
	_, ok := levelOrder[strings.ToUpper(level)]
	return ok
}

// Matches reports whether e satisfies every criterion of f.
func (f LogFilter) Matches(e LogEntry) bool {
	if f.Level != "" {
		want, okWant := levelOrder[strings.ToUpper(f.Level)]
		got, okGot := levelOrder[strings.ToUpper(e.Level)]
		if okWant && okGot && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Time.After(f.Until) {
		return false
	}
	if f.Collection != "" && e.Collection != f.Collection {
		return false
	}
	if f.Key != "" && e.Key != f.Key {
		return false
	}
	if f.SubscriptionID != "" && e.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.Pattern != nil && !f.Pattern.MatchString(e.searchText()) {
		return false
	}
	return true
}

func (e LogEntry) searchText() string {
	text := []string{e.Message, e.Collection, e.Key, e.SubscriptionID}
	for _, v := range e.Attrs {
		text = append(text, fmt.Sprint(v))
	}
	return strings.Join(text, " ")
}

// FilterLogs returns the entries matching f, in order.
func FilterLogs(entries []LogEntry, f LogFilter) []LogEntry {
	var out []LogEntry
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// AggregateLogs reads {dir}/statebridge.log together with its rotated
// backups, plain or gzipped, and returns every parseable entry sorted by
// time. Lines that are not JSON are skipped.
func AggregateLogs(dir string) ([]LogEntry, error) {
	livePath := filepath.Join(dir, FileName)
	if _, err := os.Stat(livePath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	paths, err := filepath.Glob(livePath + ".*")
	if err != nil {
		return nil, fmt.Errorf("failed to list rotated logs: %w", err)
	}
	paths = append(paths, livePath)

	var entries []LogEntry
	for _, p := range paths {
		got, err := readLogFile(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, got...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	var entries []LogEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if entry, err := ParseLogEntry(line); err == nil {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return entries, nil
}

// ExportFormats lists the formats ExportLogEntries accepts.
func ExportFormats() []string {
	return []string{"json", "text", "csv"}
}

// ExportLogEntries writes entries to w as "json" (an indented array),
// "text" (one line per entry) or "csv" (with a header row).
func ExportLogEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []LogEntry{}
		}
		return enc.Encode(entries)
	case "text":
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, FormatText(e)); err != nil {
				return fmt.Errorf("failed to write text entry: %w", err)
			}
		}
		return nil
	case "csv":
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: %s)", format, strings.Join(ExportFormats(), ", "))
	}
}

// FormatText renders an entry as a single human-readable line.
func FormatText(e LogEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%-5s] %s", e.Time.Format("15:04:05.000"), strings.ToUpper(e.Level), e.Message)

	if e.Collection != "" || e.Key != "" {
		fmt.Fprintf(&sb, " doc=%s/%s", e.Collection, e.Key)
	}
	if e.SubscriptionID != "" {
		fmt.Fprintf(&sb, " sub=%s", e.SubscriptionID)
	}

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
	}
	return sb.String()
}

func exportCSV(w io.Writer, entries []LogEntry) error {
	cw := csv.NewWriter(w)

	header := []string{"time", "level", "message", "collection", "key", "subscription_id", "attrs"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		attrs := ""
		if len(e.Attrs) > 0 {
			if b, err := json.Marshal(e.Attrs); err == nil {
				attrs = string(b)
			}
		}
		record := []string{
			e.Time.Format(time.RFC3339Nano),
			e.Level,
			e.Message,
			e.Collection,
			e.Key,
			e.SubscriptionID,
			attrs,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
