// Package db defines the store-engine boundary for user dictionaries.
// It provides a UserDB interface that allows for consistent interaction with
// different ordered key-value backends while abstracting implementation
// details.
//
// The package focuses on:
//   - A unified interface for dictionary store operations
//   - Ordered iteration through the Accessor cursor interface
//   - Single-file snapshot export and import
//   - In-store metadata (owning user, logical clock, creator version)
//
// Key Components:
//
//   - UserDB Interface: The core interface that all engine implementations
//     must satisfy. It provides lifecycle methods (Open, OpenReadOnly, Close,
//     Exists, Remove), record operations (Fetch, Update, Query),
//     metadata operations (MetaFetch, MetaUpdate, CreateMetadata, IsUserDB,
//     UserID, TickCount, DBName, CreatorVersion) and persistence operations
//     (Backup, Restore).
//
//   - Accessor Interface: An ordered cursor over the store's key space.
//     Metadata lives under the MetaPrefix key prefix, which sorts before
//     every printable entry key; a scan that starts at " " therefore visits
//     entry records only.
//
//   - Factory: A constructor type that lets orchestration code create engine
//     handles by dictionary name without depending on a concrete engine.
//
// Note on Scoping:
//
// A UserDB handle is meant to be opened, used and closed within a single
// operation. There is no in-process sharing of open handles; implementations
// must refuse (or serialize) a second concurrent open of the same physical
// store file.
//
// Related Packages:
//
// The engines/bolt package (github.com/udict/udict/lib/db/engines/bolt)
// provides the production implementation backed by bbolt, storing each
// dictionary in one B-tree file with transactional snapshot copies.
//
// The testing package (github.com/udict/udict/lib/db/testing) provides a
// standardized conformance suite for engine implementations:
//   - RunUserDBTests: Runs a standardized test suite to validate implementations
package db
