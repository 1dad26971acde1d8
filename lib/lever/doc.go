// Package lever orchestrates the lifecycle of user dictionaries.
//
// A Manager drives every operation surfaced to callers: listing the local
// catalog, backing a dictionary up as an immutable snapshot file, merging
// snapshots back in (the conflict-free reconciliation core), plain-text
// import/export, upgrading dictionaries written by legacy versions, and
// synchronizing with peers through a shared directory.
//
// Synchronization model: every installation publishes its snapshots under
// <sync-dir>/<user-id>/ and merges whatever snapshots other peers have
// published there. There is no transport and no locking across processes;
// safety comes from snapshots being immutable and the merge being idempotent
// and commutative, so racing peers can apply each other's snapshots in any
// order, repeatedly, without corrupting a live store.
//
// Conflict resolution: each record carries a usage count, a decayed weight
// and the logical-clock stamp of its last write. During a merge both sides'
// weights are decay-rescaled to their own store's clock, then usage count
// and weight resolve independently by max. Negative usage counts are
// tombstones and participate in max like any integer, so a use on either
// side outlives a deletion. After a successful merge the destination clock
// advances to the maximum of both clocks and every merged record is stamped
// with it.
package lever
