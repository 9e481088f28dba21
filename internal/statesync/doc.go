// Package statesync connects a process to the remote state store.
//
// A [Manager] owns at most one session per process. The session is built
// the first time anything needs it, either through an explicit
// [Manager.Initialize] or lazily from [Manager.Store], [Manager.Realtime],
// [Manager.UpdateState] or [Manager.StreamUpdates]. Concurrent first calls
// produce exactly one session; a failed initialization leaves no session
// behind, so the next call tries again.
//
// # Writing state
//
// UpdateState merges a payload into one document and stamps it with
// enrichment fields:
//
//	timestamp   server-assigned write time
//	symbol      the document key
//	updated_at  client UTC time, RFC 3339
//	source      provenance tag from state.source
//
// Enrichment fields are applied last, so they win over caller fields of the
// same name. Fields not named in a call are left as they are in the store.
//
// # Streaming state
//
//	sub, err := mgr.StreamUpdates(ctx, "BTC/USDT", func(doc map[string]any) {
//	    fmt.Println(doc["price"])
//	})
//	if err != nil {
//	    return err
//	}
//	defer sub.Cancel()
//
// The handler runs on the subscription's own goroutine, one snapshot at a
// time, in the order the store delivers them. Snapshots of a missing
// document are skipped.
//
// # Process-wide instance
//
// [Default] returns a Manager built from the viper configuration the first
// time it is called. Libraries that need a session without threading a
// Manager through their APIs use it.
package statesync
