package statesync

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/Iron-Ham/statebridge/internal/config"
	"github.com/Iron-Ham/statebridge/internal/credential"
	"github.com/Iron-Ham/statebridge/internal/store"
)

// Handles are the store handles a dial produces.
type Handles struct {
	Store store.DocumentStore
	// Realtime is nil unless firebase.database_url is set.
	Realtime store.TreeRef
}

// Dialer opens the store handles for one session. A Dialer must not return
// partially opened handles: on error everything it opened is closed.
type Dialer interface {
	Dial(ctx context.Context, cfg config.Config, cred credential.Credential) (Handles, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, cfg config.Config, cred credential.Credential) (Handles, error)

func (f DialerFunc) Dial(ctx context.Context, cfg config.Config, cred credential.Credential) (Handles, error) {
	return f(ctx, cfg, cred)
}

// DialerForBackend returns the dialer for a store.backend value.
func DialerForBackend(backend string) (Dialer, error) {
	switch backend {
	case config.BackendFirestore, "":
		return DialerFunc(dialFirebase), nil
	case config.BackendMemory:
		return DialerFunc(dialMemory), nil
	case config.BackendBolt:
		return DialerFunc(dialBolt), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// dialFirebase registers a Firebase app for the project and opens a
// Firestore client, plus a realtime database reference when configured.
func dialFirebase(ctx context.Context, cfg config.Config, cred credential.Credential) (Handles, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.Firebase.ProjectID,
		DatabaseURL: cfg.Firebase.DatabaseURL,
	}, cred.ClientOptions()...)
	if err != nil {
		return Handles{}, fmt.Errorf("register firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return Handles{}, fmt.Errorf("open firestore client: %w", err)
	}
	handles := Handles{Store: store.NewFirestoreStore(client)}

	if cfg.Firebase.HasRealtime() {
		rtdb, err := app.Database(ctx)
		if err != nil {
			_ = handles.Store.Close()
			return Handles{}, fmt.Errorf("open realtime database client: %w", err)
		}
		handles.Realtime = store.NewFirebaseTree(rtdb.NewRef("/"))
	}
	return handles, nil
}

func dialMemory(_ context.Context, cfg config.Config, _ credential.Credential) (Handles, error) {
	handles := Handles{Store: store.NewMemoryStore()}
	if cfg.Firebase.HasRealtime() {
		handles.Realtime = store.NewMemoryTree()
	}
	return handles, nil
}

func dialBolt(_ context.Context, cfg config.Config, _ credential.Credential) (Handles, error) {
	bolt, err := store.OpenBolt(cfg.Store.BoltPath)
	if err != nil {
		return Handles{}, err
	}
	handles := Handles{Store: bolt}
	if cfg.Firebase.HasRealtime() {
		handles.Realtime = store.NewMemoryTree()
	}
	return handles, nil
}
