// Package device persists and caches the DALI devices, groups and scenes
// discovered behind the bridge's gateways.
//
// The Repository interface abstracts persistence; SQLiteRepository is the
// production implementation over the embedded SQLite database. The Registry
// wraps a Repository with an in-memory cache so state lookups on the hot
// path (every gateway report) never touch disk, and adds the scan
// reconciliation logic: after a bus scan the discovered inventory is diffed
// against the stored one, new devices are inserted and vanished ones
// removed.
//
// Records returned by the Registry are deep copies; callers can mutate them
// freely without corrupting the cache.
package device
