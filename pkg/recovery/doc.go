// Package recovery runs account recovery sessions.
//
// A session starts with Initiate, which picks the user's recovery method,
// stores a request keyed by the hash of a fresh token and hands the token to
// a notifier. The request then moves through
//
//	pending -> verified -> completed
//
// with pending -> expired (checked lazily when the token is used) and
// verified -> cancelled (attempt cap reached) as failure exits. A completed
// request allows exactly one credential reset.
//
// Initiate answers the same generic message whether or not the account
// exists or has recovery methods; only the audit log tells them apart.
package recovery
