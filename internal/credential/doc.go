// Package credential selects how statebridge authenticates to Firebase.
//
// Resolve walks a fixed priority order and picks exactly one strategy:
//
//  1. an explicit service account file, when a path is given and the file exists
//  2. application default credentials, when GOOGLE_APPLICATION_CREDENTIALS is set
//  3. inline service account JSON from FIREBASE_SERVICE_ACCOUNT
//  4. application default credentials, unconditionally
//
// Once the trigger for strategy 1 or 3 is met, malformed material is a
// terminal configuration error. It never falls through to strategy 4.
package credential
