package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/statebridge/internal/config"
	"github.com/Iron-Ham/statebridge/internal/credential"
	"github.com/Iron-Ham/statebridge/internal/errors"
	"github.com/Iron-Ham/statebridge/internal/logging"
	"github.com/Iron-Ham/statebridge/internal/statesync"
	"github.com/Iron-Ham/statebridge/internal/store"
	"github.com/Iron-Ham/statebridge/internal/testutil"
	"github.com/spf13/viper"
)

// syncBuffer is a bytes.Buffer safe for the watch handler goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// sharedStore survives Manager.Close so state persists across commands.
type sharedStore struct {
	*store.MemoryStore
}

func (sharedStore) Close() error { return nil }

// useMemoryStore points every command at one in-memory store.
func useMemoryStore(t *testing.T) *store.MemoryStore {
	t.Helper()

	testutil.SetupConfigDir(t, "")
	testutil.ClearFirebaseEnv(t)
	viper.Reset()

	st := store.NewMemoryStore()
	dialer := statesync.DialerFunc(func(context.Context, config.Config, credential.Credential) (statesync.Handles, error) {
		return statesync.Handles{Store: sharedStore{st}}, nil
	})

	prev := newManager
	newManager = func() *statesync.Manager {
		return statesync.New(config.Default(), statesync.WithDialer(dialer))
	}
	t.Cleanup(func() {
		newManager = prev
		_ = st.Close()
		viper.Reset()
	})
	return st
}

// executeCommand runs the root command with args and returns captured output
func executeCommand(args ...string) (string, error) {
	setJSON = ""
	stateCollection = ""
	initCredentials = ""
	logsKey, logsExport, logsFormat = "", "", "json"
	logsLevel, logsSince, logsGrep = "", "", ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "statebridge" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "statebridge")
	}

	expectedCmds := []string{"init", "set", "get", "watch", "config", "logs"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{
			name:  "typed values",
			pairs: []string{"price=100.5", "active=true", "side=long", "tags=[\"a\"]"},
			want:  map[string]any{"price": 100.5, "active": true, "side": "long", "tags": []any{"a"}},
		},
		{
			name:  "pairs override json",
			json:  `{"price":1,"meta":{"venue":"x"}}`,
			pairs: []string{"price=2"},
			want:  map[string]any{"price": float64(2), "meta": map[string]any{"venue": "x"}},
		},
		{
			name:  "value may contain equals",
			pairs: []string{"expr=a=b"},
			want:  map[string]any{"expr": "a=b"},
		},
		{
			name:  "empty value is an empty string",
			pairs: []string{"note="},
			want:  map[string]any{"note": ""},
		},
		{name: "missing equals", pairs: []string{"price"}, wantErr: true},
		{name: "empty field", pairs: []string{"=1"}, wantErr: true},
		{name: "json array", json: `[1,2]`, wantErr: true},
		{name: "json null", json: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePayload(tt.json, tt.pairs)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("parsePayload() = %v, %v; want a validation error", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePayload() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parsePayload() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParsePayload_KeepsDecodeError(t *testing.T) {
	_, err := parsePayload(`{"price":`, nil)

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("parsePayload() error = %v, want the JSON syntax error in the chain", err)
	}
	var validationErr *errors.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "json" {
		t.Errorf("parsePayload() error = %v, want a validation error on field json", err)
	}
}

func TestSetAndGet(t *testing.T) {
	useMemoryStore(t)

	out, err := executeCommand("set", "BTC/USDT", "price=100", "side=long")
	if err != nil {
		t.Fatalf("set failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Updated BTC/USDT: price, side") {
		t.Errorf("set output = %q", out)
	}

	if _, err := executeCommand("set", "BTC/USDT", "volume=5"); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	out, err = executeCommand("get", "BTC/USDT")
	if err != nil {
		t.Fatalf("get failed: %v\n%s", err, out)
	}
	for _, want := range []string{`"price": 100`, `"volume": 5`, `"side": "long"`, `"symbol": "BTC/USDT"`, `"source": "aatb_intelligence_layer"`} {
		if !strings.Contains(out, want) {
			t.Errorf("get output missing %s:\n%s", want, out)
		}
	}
}

func TestSetCollection(t *testing.T) {
	st := useMemoryStore(t)

	if _, err := executeCommand("set", "ETH", "regime=trending", "--collection", "signals"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	snap, _ := st.Get(context.Background(), "signals", "ETH")
	if !snap.Exists || snap.Data["regime"] != "trending" {
		t.Errorf("signals/ETH = %+v", snap)
	}
	if snap, _ := st.Get(context.Background(), "market_states", "ETH"); snap.Exists {
		t.Error("write leaked into the default collection")
	}
}

func TestSetRequiresFields(t *testing.T) {
	useMemoryStore(t)

	if _, err := executeCommand("set", "BTC"); err == nil {
		t.Error("set without fields should fail")
	}
}

func TestGetMissing(t *testing.T) {
	useMemoryStore(t)

	_, err := executeCommand("get", "NOPE")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("get error = %v, want not found", err)
	}
}

func TestInitCommand(t *testing.T) {
	useMemoryStore(t)

	out, err := executeCommand("init")
	if err != nil {
		t.Fatalf("init failed: %v\n%s", err, out)
	}
	for _, want := range []string{"aatb-production", "default_fallback", "Realtime:    disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("init output missing %q:\n%s", want, out)
		}
	}
}

func TestInitCommandWithCredentials(t *testing.T) {
	useMemoryStore(t)
	keyFile := testutil.WriteServiceAccount(t, "aatb-staging")

	out, err := executeCommand("init", "--credentials", keyFile)
	if err != nil {
		t.Fatalf("init failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Credentials: certificate_file") {
		t.Errorf("init output missing certificate_file strategy:\n%s", out)
	}
}

func TestInitCommandRejectsBadCredentials(t *testing.T) {
	useMemoryStore(t)
	keyFile := testutil.WriteFile(t, "broken.json", `{"type":"authorized_user"}`)

	_, err := executeCommand("init", "--credentials", keyFile)
	if !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("init error = %v, want configuration error", err)
	}
}

func TestWatchCommand(t *testing.T) {
	useMemoryStore(t)

	buf := &syncBuffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"watch", "SOL"})
	stateCollection = ""

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchCmd.SetContext(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- rootCmd.ExecuteContext(ctx) }()

	waitForOutput(t, buf, "Watching market_states/SOL")

	writer := newManager()
	defer writer.Close()
	if err := writer.UpdateState(context.Background(), "SOL", map[string]any{"price": 1}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	waitForOutput(t, buf, `"price":1`)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func waitForOutput(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q in output:\n%s", want, buf.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConfigShow(t *testing.T) {
	useMemoryStore(t)
	t.Setenv(config.EnvServiceAccount, `{"private_key":"secret"}`)

	out, err := executeCommand("config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"collection: market_states", "backend: firestore", "service_account: (set, hidden)"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Error("config show leaked the service account")
	}
}

func TestConfigShowReadsFile(t *testing.T) {
	useMemoryStore(t)
	dir := testutil.SetupConfigDir(t, "state:\n  collection: ticks\nlogging:\n  level: debug\n")

	out, err := executeCommand("config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{filepath.Join(dir, "config.yaml"), "collection: ticks", "level: debug"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConfigPath(t *testing.T) {
	useMemoryStore(t)

	out, err := executeCommand("config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(out, filepath.Join(config.ConfigDir(), "config.yaml")) {
		t.Errorf("config path output = %q", out)
	}
}

func TestNewLogFilter(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := logging.LogEntry{
		Time:       now.Add(-10 * time.Minute),
		Level:      "WARN",
		Message:    "credential file not found, trying next strategy",
		Collection: "market_states",
		Key:        "BTC/USDT",
		Attrs:      map[string]any{"path": "/secrets/sa.json"},
	}

	tests := []struct {
		name  string
		level string
		since string
		grep  string
		want  bool
	}{
		{name: "no filter", want: true},
		{name: "level at threshold", level: "warn", want: true},
		{name: "level above entry", level: "error", want: false},
		{name: "within since", since: "1h", want: true},
		{name: "outside since", since: "5m", want: false},
		{name: "grep message", grep: "credential", want: true},
		{name: "grep key", grep: "BTC/", want: true},
		{name: "grep attrs", grep: "sa\\.json", want: true},
		{name: "grep miss", grep: "ETH", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newLogFilter(tt.level, tt.since, tt.grep, now)
			if err != nil {
				t.Fatalf("newLogFilter() error = %v", err)
			}
			if got := f.Matches(entry); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := newLogFilter("verbose", "", "", now); err == nil {
		t.Error("unknown level should be rejected")
	}
	if _, err := newLogFilter("", "yesterday", "", now); err == nil {
		t.Error("bad duration should be rejected")
	}
	if _, err := newLogFilter("", "", "([", now); err == nil {
		t.Error("bad pattern should be rejected")
	}
}

func TestLogsExport(t *testing.T) {
	useMemoryStore(t)
	dir := t.TempDir()
	t.Setenv("STATEBRIDGE_LOGGING_DIR", dir)

	live := filepath.Join(dir, logging.FileName)
	backup := logging.BackupPath(live, 1)
	if err := os.WriteFile(backup, []byte(`{"time":"2026-06-01T12:00:00Z","level":"INFO","msg":"state updated","key":"BTC/USDT"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(live, []byte(strings.Join([]string{
		`{"time":"2026-06-01T12:00:01Z","level":"INFO","msg":"state updated","key":"ETH"}`,
		`{"time":"2026-06-01T12:00:02Z","level":"ERROR","msg":"state update failed","key":"BTC/USDT"}`,
	}, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	exportPath := filepath.Join(t.TempDir(), "btc.json")
	out, err := executeCommand("logs", "--key", "BTC/USDT", "--export", exportPath)
	if err != nil {
		t.Fatalf("logs --export failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Exported 2 entries") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	var got []logging.LogEntry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(got) != 2 || got[0].Message != "state updated" || got[1].Level != "ERROR" {
		t.Errorf("exported = %+v", got)
	}

	if _, err := executeCommand("logs", "--export", exportPath, "--format", "xml"); err == nil {
		t.Error("unknown export format should fail")
	}
}

func TestDisplayLogs(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "statebridge.log")
	content := strings.Join([]string{
		`{"time":"2026-06-01T12:00:00Z","level":"INFO","msg":"state store initialized","project_id":"aatb-production"}`,
		`{"time":"2026-06-01T12:00:01Z","level":"DEBUG","msg":"state updated","collection":"market_states","key":"BTC/USDT","fields":2}`,
		`not json`,
		`{"time":"2026-06-01T12:00:02Z","level":"ERROR","msg":"state update failed","collection":"market_states","key":"ETH"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	f, _ := newLogFilter("info", "", "", time.Now())
	if err := displayLogs(&buf, logPath, 2, f); err != nil {
		t.Fatalf("displayLogs() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if lines[0] != "not json" {
		t.Errorf("raw line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR]") || !strings.Contains(lines[1], "doc=market_states/ETH") {
		t.Errorf("formatted line = %q", lines[1])
	}
}
