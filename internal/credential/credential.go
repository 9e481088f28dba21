package credential

import (
	"encoding/json"
	"os"

	"github.com/Iron-Ham/statebridge/internal/config"
	"github.com/Iron-Ham/statebridge/internal/errors"
	"github.com/Iron-Ham/statebridge/internal/logging"
	"google.golang.org/api/option"
)

// Strategy identifies how credentials were acquired.
type Strategy int

const (
	// StrategyCertificateFile uses a service account file at an explicit path.
	StrategyCertificateFile Strategy = iota + 1
	// StrategyApplicationDefault uses the ADC file named by
	// GOOGLE_APPLICATION_CREDENTIALS or firebase.application_credentials.
	StrategyApplicationDefault
	// StrategyInlineServiceAccount uses service account JSON from the environment.
	StrategyInlineServiceAccount
	// StrategyDefaultFallback uses ADC because nothing else was configured.
	StrategyDefaultFallback
)

// String returns the name used in logs and events.
func (s Strategy) String() string {
	switch s {
	case StrategyCertificateFile:
		return "certificate_file"
	case StrategyApplicationDefault:
		return "application_default"
	case StrategyInlineServiceAccount:
		return "inline_service_account"
	case StrategyDefaultFallback:
		return "default_fallback"
	default:
		return "unknown"
	}
}

// Inputs is the environment state the resolver decides on.
type Inputs struct {
	// CredentialPath is the caller-supplied service account file.
	CredentialPath string
	// ApplicationCredentials is the value of GOOGLE_APPLICATION_CREDENTIALS.
	ApplicationCredentials string
	// ServiceAccountJSON is the value of FIREBASE_SERVICE_ACCOUNT.
	ServiceAccountJSON string

	// FileExists reports whether a regular file exists. Defaults to os.Stat.
	FileExists func(path string) bool
	// ReadFile reads a credential file. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// InputsFromConfig builds Inputs from the loaded configuration. An explicit
// path argument wins over firebase.credential_path.
func InputsFromConfig(cfg config.FirebaseConfig, credentialPath string) Inputs {
	if credentialPath == "" {
		credentialPath = cfg.CredentialPath
	}
	return Inputs{
		CredentialPath:         credentialPath,
		ApplicationCredentials: cfg.ApplicationCredentials,
		ServiceAccountJSON:     cfg.ServiceAccount,
	}
}

// Credential is the resolved authentication material.
type Credential struct {
	Strategy Strategy
	// File is set for StrategyCertificateFile and StrategyApplicationDefault.
	File string
	// JSON holds validated service account JSON for StrategyCertificateFile
	// and StrategyInlineServiceAccount.
	JSON []byte
	// ServiceAccount is the decoded account, when one was read.
	ServiceAccount *ServiceAccount
}

// ClientOptions converts the credential into Google client options.
// The ADC file is passed explicitly because it may come from config.yaml
// rather than the process environment the client library inspects.
// StrategyDefaultFallback returns no options so the client library runs its
// own lookup.
func (c Credential) ClientOptions() []option.ClientOption {
	switch c.Strategy {
	case StrategyCertificateFile, StrategyApplicationDefault:
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	case StrategyInlineServiceAccount:
		return []option.ClientOption{option.WithCredentialsJSON(c.JSON)}
	default:
		return nil
	}
}

// ServiceAccount holds the fields statebridge requires from a service account key.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ParseServiceAccount decodes and checks service account JSON.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, errors.Wrap(err, "decode service account JSON")
	}

	if sa.Type != "service_account" {
		return nil, errors.Wrapf(errors.ErrInvalidCredential, "credential type %q is not service_account", sa.Type)
	}
	switch {
	case sa.ProjectID == "":
		return nil, errors.Wrap(errors.ErrInvalidCredential, "project_id is missing")
	case sa.ClientEmail == "":
		return nil, errors.Wrap(errors.ErrInvalidCredential, "client_email is missing")
	case sa.PrivateKey == "":
		return nil, errors.Wrap(errors.ErrInvalidCredential, "private_key is missing")
	}
	return &sa, nil
}

// Resolve selects exactly one credential strategy from in.
func Resolve(in Inputs, logger *logging.Logger) (Credential, error) {
	logger = logging.OrNop(logger)
	fileExists := in.FileExists
	if fileExists == nil {
		fileExists = regularFileExists
	}
	readFile := in.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	if in.CredentialPath != "" {
		if fileExists(in.CredentialPath) {
			return resolveFile(in.CredentialPath, readFile, logger)
		}
		logger.Warn("credential file not found, trying next strategy", "path", in.CredentialPath)
	}

	if in.ApplicationCredentials != "" {
		logger.Info("using application default credentials",
			"strategy", StrategyApplicationDefault.String(),
			"path", in.ApplicationCredentials)
		return Credential{Strategy: StrategyApplicationDefault, File: in.ApplicationCredentials}, nil
	}

	if in.ServiceAccountJSON != "" {
		sa, err := ParseServiceAccount([]byte(in.ServiceAccountJSON))
		if err != nil {
			return Credential{}, errors.NewConfigurationError("invalid inline service account", err).
				WithKey(config.EnvServiceAccount).
				WithStrategy(StrategyInlineServiceAccount.String())
		}
		logger.Info("using inline service account from environment",
			"strategy", StrategyInlineServiceAccount.String(),
			"client_email", sa.ClientEmail)
		return Credential{
			Strategy:       StrategyInlineServiceAccount,
			JSON:           []byte(in.ServiceAccountJSON),
			ServiceAccount: sa,
		}, nil
	}

	logger.Warn("no credentials configured, using default credentials; ensure proper IAM roles",
		"strategy", StrategyDefaultFallback.String())
	return Credential{Strategy: StrategyDefaultFallback}, nil
}

func resolveFile(path string, readFile func(string) ([]byte, error), logger *logging.Logger) (Credential, error) {
	data, err := readFile(path)
	if err != nil {
		return Credential{}, errors.NewConfigurationError("read credential file", err).
			WithKey(path).
			WithStrategy(StrategyCertificateFile.String())
	}
	sa, err := ParseServiceAccount(data)
	if err != nil {
		return Credential{}, errors.NewConfigurationError("invalid credential file", err).
			WithKey(path).
			WithStrategy(StrategyCertificateFile.String())
	}

	logger.Info("using credential file",
		"strategy", StrategyCertificateFile.String(),
		"path", path,
		"client_email", sa.ClientEmail)
	return Credential{
		Strategy:       StrategyCertificateFile,
		File:           path,
		JSON:           data,
		ServiceAccount: sa,
	}, nil
}

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
