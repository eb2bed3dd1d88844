// Package firebase verifies Firebase Authentication ID tokens with the
// Firebase Admin SDK.
//
// The Verifier checks signature, issuer, audience, expiry and issue time
// and, when configured, revocation and disabled accounts, then returns a
// models.DecodedIdentity. Set FIREBASE_AUTH_EMULATOR_HOST to run against
// the Auth emulator.
package firebase
