// Package session stores the per-sender conversation state of the translation
// dialogue. A sender without a stored session is in the NEW state.
//
// Backends: an in-memory LRU with idle expiry, a Postgres table (sqlx) and
// expiring Redis keys. All of them satisfy Store.
package session
