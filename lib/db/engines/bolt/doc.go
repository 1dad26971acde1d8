// Package bolt implements the db.UserDB interface on top of bbolt.
//
// Each dictionary lives in a single B-tree file named <name>.userdb. All
// records share one bucket; metadata keys carry the db.MetaPrefix prefix and
// therefore sort before every printable entry key, so an ordered scan that
// jumps to " " visits entry records only.
//
// Snapshots are produced with bbolt's transactional file copy, which makes a
// snapshot a regular (read-only usable) store file. Restore replaces the
// store file wholesale and reopens the handle.
//
// The package keeps a process-wide registry of open store paths; a second
// open of an already-held path fails immediately rather than blocking on the
// file lock. Cross-process access is serialized by bbolt's own file locking.
package bolt
