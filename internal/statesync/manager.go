package statesync

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/statebridge/internal/config"
	"github.com/Iron-Ham/statebridge/internal/credential"
	"github.com/Iron-Ham/statebridge/internal/errors"
	"github.com/Iron-Ham/statebridge/internal/event"
	"github.com/Iron-Ham/statebridge/internal/logging"
	"github.com/Iron-Ham/statebridge/internal/store"
)

// session is the authenticated connection. It is fully built before it is
// published and read-only afterwards.
type session struct {
	projectID   string
	databaseURL string
	credential  credential.Credential
	store       store.DocumentStore
	realtime    store.TreeRef
}

// Manager owns the process's session with the remote state store.
// It is safe for concurrent use.
type Manager struct {
	cfg    config.Config
	cfgErr error
	dialer Dialer
	logger *logging.Logger
	bus    *event.Bus
	now    func() time.Time

	fileExists func(string) bool
	readFile   func(string) ([]byte, error)

	// initMu serializes initialization and is held across the dial.
	// It is always taken before mu.
	initMu sync.Mutex

	// mu guards session and subs. It is never held across network calls.
	mu      sync.Mutex
	session *session
	subs    map[string]*Subscription
}

// New creates a Manager for cfg. Nothing is dialed until the session is
// first needed.
func New(cfg *config.Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}

	m := &Manager{
		cfg:    *cfg,
		logger: logging.NopLogger(),
		now:    time.Now,
		subs:   make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultManager = sync.OnceValue(func() *Manager {
	return newDefault(config.Load)
})

// newDefault builds the process-wide Manager from load. Its logger follows
// the logging section and every lifecycle event is logged at DEBUG.
func newDefault(load func() (*config.Config, error)) *Manager {
	cfg, err := load()
	if err != nil {
		m := New(config.Default())
		m.cfgErr = err
		return m
	}

	logger, logErr := logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if logErr != nil {
		logger = logging.NopLogger()
	}

	bus := event.NewBus(logger)
	bus.SubscribeAll(logEvent(logger))
	return New(cfg, WithLogger(logger), WithBus(bus))
}

// logEvent returns a bus handler that records events in the log.
func logEvent(logger *logging.Logger) event.Handler {
	return func(e event.Event) {
		args := []any{"event_type", e.EventType()}
		switch ev := e.(type) {
		case event.SessionInitializedEvent:
			args = append(args, "project_id", ev.ProjectID, "strategy", ev.Strategy)
		case event.StateUpdatedEvent:
			args = append(args, "collection", ev.Collection, "key", ev.Key)
		case event.SubscriptionStartedEvent:
			args = append(args, "subscription_id", ev.SubscriptionID, "collection", ev.Collection, "key", ev.Key)
		case event.SubscriptionEndedEvent:
			args = append(args, "subscription_id", ev.SubscriptionID, "delivered", ev.Delivered)
			if ev.Err != nil {
				args = append(args, "error", ev.Err)
			}
		}
		logger.Debug("lifecycle event", args...)
	}
}

// Default returns the process-wide Manager, built from the global viper
// configuration on first use. A configuration that fails to load is
// reported by the first call that needs a session.
func Default() *Manager {
	return defaultManager()
}

// Initialize builds the session. credentialPath, when non-empty, names a
// service account file that takes priority over firebase.credential_path.
//
// Calling Initialize on an initialized Manager logs a warning and returns
// nil. On failure no session is kept and a later call may try again.
func (m *Manager) Initialize(ctx context.Context, credentialPath string) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if s := m.loadSession(); s != nil {
		m.logger.Warn("state store already initialized", "project_id", s.projectID)
		return nil
	}
	_, err := m.initializeLocked(ctx, credentialPath)
	return err
}

// initializeLocked dials and publishes a session. The caller holds initMu.
func (m *Manager) initializeLocked(ctx context.Context, credentialPath string) (*session, error) {
	if m.cfgErr != nil {
		return nil, errors.NewConfigurationError("load configuration", m.cfgErr)
	}
	if errs := m.cfg.Firebase.Validate(); len(errs) > 0 {
		return nil, errors.NewConfigurationError("invalid firebase configuration", config.ValidationErrors(errs)).
			WithKey(errs[0].Field)
	}

	in := credential.InputsFromConfig(m.cfg.Firebase, credentialPath)
	in.FileExists = m.fileExists
	in.ReadFile = m.readFile
	cred, err := credential.Resolve(in, m.logger)
	if err != nil {
		m.logger.Error("credential resolution failed", "error", err)
		return nil, err
	}

	dialer := m.dialer
	if dialer == nil {
		dialer, err = DialerForBackend(m.cfg.Store.Backend)
		if err != nil {
			return nil, errors.NewConfigurationError("select store backend", err).WithKey("store.backend")
		}
	}

	handles, err := dialer.Dial(ctx, m.cfg, cred)
	if err != nil {
		m.logger.Error("failed to initialize state store",
			"project_id", m.cfg.Firebase.ProjectID,
			"strategy", cred.Strategy.String(),
			"error", err)
		return nil, errors.NewConfigurationError("initialize state store", err).
			WithStrategy(cred.Strategy.String())
	}
	if handles.Store == nil {
		return nil, errors.NewConfigurationError("initialize state store", errors.ErrStoreUnavailable).
			WithStrategy(cred.Strategy.String())
	}

	s := &session{
		projectID:   m.cfg.Firebase.ProjectID,
		databaseURL: m.cfg.Firebase.DatabaseURL,
		credential:  cred,
		store:       handles.Store,
		realtime:    handles.Realtime,
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.logger.Info("state store initialized",
		"project_id", s.projectID,
		"strategy", cred.Strategy.String(),
		"realtime", handles.Realtime != nil,
		"backend", m.cfg.Store.Backend)
	m.bus.Publish(event.NewSessionInitializedEvent(s.projectID, cred.Strategy.String(), handles.Realtime != nil))
	return s, nil
}

func (m *Manager) loadSession() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// current returns the session, initializing it if needed.
func (m *Manager) current(ctx context.Context) (*session, error) {
	if s := m.loadSession(); s != nil {
		return s, nil
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	if s := m.loadSession(); s != nil {
		return s, nil
	}
	return m.initializeLocked(ctx, "")
}

// Store returns the document store, initializing the session if needed.
func (m *Manager) Store(ctx context.Context) (store.DocumentStore, error) {
	s, err := m.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.store, nil
}

// Realtime returns the realtime tree root. It returns nil and no error when
// firebase.database_url is not configured, without initializing anything.
func (m *Manager) Realtime(ctx context.Context) (store.TreeRef, error) {
	s := m.loadSession()
	if s == nil {
		if !m.cfg.Firebase.HasRealtime() {
			return nil, nil
		}
		var err error
		if s, err = m.current(ctx); err != nil {
			return nil, err
		}
	}
	return s.realtime, nil
}

// Initialized reports whether a session exists.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// ProjectID returns the project of the current session, or "" before
// initialization.
func (m *Manager) ProjectID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return ""
	}
	return m.session.projectID
}

// Strategy returns the credential strategy of the current session.
// The boolean is false before initialization.
func (m *Manager) Strategy() (credential.Strategy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return 0, false
	}
	return m.session.credential.Strategy, true
}

// Config returns a copy of the configuration the Manager was built with.
func (m *Manager) Config() config.Config {
	return m.cfg
}

// Close tears the session down: every subscription ends and the store is
// closed. The Manager can be initialized again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subs = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if s == nil || s.store == nil {
		return nil
	}

	if err := s.store.Close(); err != nil {
		m.logger.Warn("failed to close state store", "error", err)
		// The session is already gone, so a failed close is not fatal.
		return errors.NewStoreOperationError("close", err).WithSeverity(errors.SeverityWarning)
	}
	m.logger.Info("state store closed", "project_id", s.projectID)
	return nil
}

func (m *Manager) trackSubscription(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
}

func (m *Manager) untrackSubscription(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}
