package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "firebase.project_id",
		Value:   "X",
		Message: "cannot be empty",
	}

	want := "firebase.project_id: cannot be empty (got: X)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := ValidationErrors(nil).Error(); got != "" {
		t.Errorf("empty ValidationErrors.Error() = %q, want empty", got)
	}

	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	got := errs.Error()
	if !strings.HasPrefix(got, "2 validation errors:") {
		t.Errorf("Error() = %q, want count prefix", got)
	}
	if !strings.Contains(got, "1. a: bad") || !strings.Contains(got, "2. b: worse") {
		t.Errorf("Error() = %q, want numbered entries", got)
	}
}

func TestFirebaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       FirebaseConfig
		wantField string
	}{
		{name: "valid", cfg: FirebaseConfig{ProjectID: "aatb-production"}},
		{name: "valid with database", cfg: FirebaseConfig{ProjectID: "aatb-production", DatabaseURL: "https://aatb.firebaseio.com"}},
		{name: "empty project", cfg: FirebaseConfig{}, wantField: "firebase.project_id"},
		{name: "uppercase project", cfg: FirebaseConfig{ProjectID: "AATB-prod"}, wantField: "firebase.project_id"},
		{name: "too short", cfg: FirebaseConfig{ProjectID: "ab"}, wantField: "firebase.project_id"},
		{name: "trailing hyphen", cfg: FirebaseConfig{ProjectID: "aatb-prod-"}, wantField: "firebase.project_id"},
		{name: "http database", cfg: FirebaseConfig{ProjectID: "aatb-production", DatabaseURL: "http://aatb.firebaseio.com"}, wantField: "firebase.database_url"},
		{name: "relative database", cfg: FirebaseConfig{ProjectID: "aatb-production", DatabaseURL: "aatb.firebaseio.com"}, wantField: "firebase.database_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.cfg.Validate()
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_State(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		source     string
		wantErrors int
	}{
		{"valid", "market_states", "desk", 0},
		{"empty collection", "", "desk", 1},
		{"nested collection", "markets/BTC", "desk", 1},
		{"blank source", "market_states", "  ", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.State.Collection = tt.collection
			cfg.State.Source = tt.source

			if got := len(cfg.validateState()); got != tt.wantErrors {
				t.Errorf("validateState() returned %d errors, want %d", got, tt.wantErrors)
			}
		})
	}
}

func TestConfig_Validate_Store(t *testing.T) {
	tests := []struct {
		name       string
		backend    string
		boltPath   string
		wantErrors int
	}{
		{"firestore", BackendFirestore, "", 0},
		{"memory", BackendMemory, "", 0},
		{"bolt with path", BackendBolt, "/tmp/state.db", 0},
		{"bolt without path", BackendBolt, "", 1},
		{"unknown", "redis", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Store.Backend = tt.backend
			cfg.Store.BoltPath = tt.boltPath

			if got := len(cfg.validateStore()); got != tt.wantErrors {
				t.Errorf("validateStore() returned %d errors, want %d", got, tt.wantErrors)
			}
		})
	}
}

func TestConfig_Validate_Logging(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "error"} {
		cfg := Default()
		cfg.Logging.Level = level
		if errs := cfg.validateLogging(); len(errs) != 0 {
			t.Errorf("level %q: unexpected errors %v", level, errs)
		}
	}

	cfg := Default()
	cfg.Logging.Level = "verbose"
	if errs := cfg.validateLogging(); len(errs) != 1 {
		t.Errorf("level verbose: got %d errors, want 1", len(errs))
	}

	cfg = Default()
	cfg.Logging.MaxSizeMB = -1
	cfg.Logging.MaxBackups = -2
	errs := cfg.validateLogging()
	if len(errs) != 2 || errs[0].Field != "logging.max_size_mb" || errs[1].Field != "logging.max_backups" {
		t.Errorf("negative rotation settings: got %v", errs)
	}

	cfg = Default()
	cfg.Logging.MaxSizeMB = 0
	if errs := cfg.validateLogging(); len(errs) != 0 {
		t.Errorf("max_size_mb 0 disables rotation, got %v", errs)
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Firebase.ProjectID = ""
	cfg.State.Collection = ""
	cfg.Store.Backend = "nope"

	if got := len(cfg.Validate()); got != 3 {
		t.Errorf("Validate() returned %d errors, want 3", got)
	}
}
