// Package store defines the document store seam statebridge writes to and
// listens on, together with its backends.
//
// [DocumentStore] is the narrow contract the session manager needs:
// merge-set a document, read it, delete it, and listen for changes on a
// single document. [Listener] delivers a [Snapshot] per change, carrying the
// existence flag, in the order the backend observed the changes.
//
// Backends:
//   - [FirestoreStore]: Cloud Firestore through the Firebase Admin SDK.
//   - [MemoryStore]: process-local maps, used in tests and for dry runs.
//   - [BoltStore]: a bbolt file with CBOR-encoded documents, giving an
//     offline store whose contents survive restarts.
//
// The optional realtime tier is exposed as a [TreeRef], backed by the
// Firebase Realtime Database ([FirebaseTree]) or by [MemoryTree].
//
// Values equal to [ServerTimestamp] are replaced by the time the backend
// applies the write.
package store
