package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete statebridge configuration
type Config struct {
	Firebase FirebaseConfig `mapstructure:"firebase"`
	State    StateConfig    `mapstructure:"state"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FirebaseConfig identifies the remote project and the credential inputs.
// It is read once, when the session is initialized.
type FirebaseConfig struct {
	// ProjectID is the Firebase/GCP project (env FIREBASE_PROJECT_ID, default: "aatb-production")
	ProjectID string `mapstructure:"project_id"`
	// DatabaseURL enables the realtime tree when set (env FIREBASE_DATABASE_URL)
	DatabaseURL string `mapstructure:"database_url"`
	// CredentialPath is an explicit service account file, used when it exists
	CredentialPath string `mapstructure:"credential_path"`
	// ApplicationCredentials mirrors GOOGLE_APPLICATION_CREDENTIALS
	ApplicationCredentials string `mapstructure:"application_credentials"`
	// ServiceAccount is inline service account JSON (env FIREBASE_SERVICE_ACCOUNT)
	ServiceAccount string `mapstructure:"service_account"`
}

// StateConfig controls how state documents are written
type StateConfig struct {
	// Collection is the default collection for writes and subscriptions (default: "market_states")
	Collection string `mapstructure:"collection"`
	// Source is the provenance tag stamped on every write (default: "aatb_intelligence_layer")
	Source string `mapstructure:"source"`
}

// StoreConfig selects the document store backend
type StoreConfig struct {
	// Backend is one of "firestore", "memory", "bolt" (default: "firestore")
	Backend string `mapstructure:"backend"`
	// BoltPath is the database file for the bolt backend (default: <config dir>/statebridge.db)
	BoltPath string `mapstructure:"bolt_path"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir writes logs to <dir>/statebridge.log instead of stderr when set
	Dir string `mapstructure:"dir"`
	// MaxSizeMB rotates the log file at this size, 0 disables rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files
	Compress bool `mapstructure:"compress"`
}

// Store backends
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
	BackendBolt      = "bolt"
)

// Environment variables read directly, without the STATEBRIDGE_ prefix.
// These names are shared with the Firebase and Google Cloud tooling.
const (
	EnvProjectID              = "FIREBASE_PROJECT_ID"
	EnvDatabaseURL            = "FIREBASE_DATABASE_URL"
	EnvApplicationCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvServiceAccount         = "FIREBASE_SERVICE_ACCOUNT"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Firebase: FirebaseConfig{
			ProjectID: "aatb-production",
		},
		State: StateConfig{
			Collection: "market_states",
			Source:     "aatb_intelligence_layer",
		},
		Store: StoreConfig{
			Backend:  BackendFirestore,
			BoltPath: filepath.Join(ConfigDir(), "statebridge.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "", // stderr
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// HasRealtime reports whether a realtime database URL is configured.
func (f FirebaseConfig) HasRealtime() bool {
	return f.DatabaseURL != ""
}

// SetDefaults registers default values and environment bindings with the global viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values and environment bindings with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("firebase.project_id", defaults.Firebase.ProjectID)
	v.SetDefault("firebase.database_url", defaults.Firebase.DatabaseURL)
	v.SetDefault("firebase.credential_path", defaults.Firebase.CredentialPath)
	v.SetDefault("firebase.application_credentials", defaults.Firebase.ApplicationCredentials)
	v.SetDefault("firebase.service_account", defaults.Firebase.ServiceAccount)

	v.SetDefault("state.collection", defaults.State.Collection)
	v.SetDefault("state.source", defaults.State.Source)

	v.SetDefault("store.backend", defaults.Store.Backend)
	v.SetDefault("store.bolt_path", defaults.Store.BoltPath)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	// BindEnv only fails when called without a key.
	_ = v.BindEnv("firebase.project_id", EnvProjectID)
	_ = v.BindEnv("firebase.database_url", EnvDatabaseURL)
	_ = v.BindEnv("firebase.application_credentials", EnvApplicationCredentials)
	_ = v.BindEnv("firebase.service_account", EnvServiceAccount)
}

// Load reads the configuration from the global viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v into a Config struct and validates it
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "statebridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".statebridge"
	}
	return filepath.Join(home, ".config", "statebridge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidBackends returns the list of valid store backends
func ValidBackends() []string {
	return []string{BackendFirestore, BackendMemory, BackendBolt}
}
