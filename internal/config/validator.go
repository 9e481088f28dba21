package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "firebase.project_id")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// projectIDRegex follows the GCP project ID rules: 6-30 characters, lowercase
// letters, digits and hyphens, starting with a letter and not ending in a hyphen.
var projectIDRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.Firebase.Validate()...)
	errors = append(errors, c.validateState()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// Validate checks the project identity. It is also run by the session
// manager right before dialing, so a config assembled in code gets the
// same checks as one loaded through viper.
func (f FirebaseConfig) Validate() []ValidationError {
	var errors []ValidationError

	if f.ProjectID == "" {
		errors = append(errors, ValidationError{
			Field:   "firebase.project_id",
			Value:   f.ProjectID,
			Message: "cannot be empty",
		})
	} else if !projectIDRegex.MatchString(f.ProjectID) {
		errors = append(errors, ValidationError{
			Field:   "firebase.project_id",
			Value:   f.ProjectID,
			Message: "must be 6-30 lowercase letters, digits or hyphens, starting with a letter",
		})
	}

	if f.DatabaseURL != "" {
		u, err := url.Parse(f.DatabaseURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "firebase.database_url",
				Value:   f.DatabaseURL,
				Message: "must be an absolute https URL",
			})
		}
	}

	return errors
}

// validateState validates the StateConfig
func (c *Config) validateState() []ValidationError {
	var errors []ValidationError

	if c.State.Collection == "" {
		errors = append(errors, ValidationError{
			Field:   "state.collection",
			Value:   c.State.Collection,
			Message: "cannot be empty",
		})
	} else if strings.Contains(c.State.Collection, "/") {
		errors = append(errors, ValidationError{
			Field:   "state.collection",
			Value:   c.State.Collection,
			Message: "must be a single collection ID without '/'",
		})
	}

	if strings.TrimSpace(c.State.Source) == "" {
		errors = append(errors, ValidationError{
			Field:   "state.source",
			Value:   c.State.Source,
			Message: "cannot be empty",
		})
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if c.Store.Backend == BackendBolt && c.Store.BoltPath == "" {
		errors = append(errors, ValidationError{
			Field:   "store.bolt_path",
			Value:   c.Store.BoltPath,
			Message: "required when store.backend is bolt",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "cannot be negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "cannot be negative",
		})
	}

	return errors
}
