package db

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBolt Implementation = "bolt"
)

// Metadata keys. Engines store metadata in the same ordered key space as the
// dictionary entries, under a prefix that sorts before every printable entry
// key. Callers always pass the key with its leading slash ("/tick"); the
// engine prepends MetaPrefix.
const (
	MetaPrefix = "\x01"

	MetaDBName         = "/db_name"
	MetaDBType         = "/db_type"
	MetaUserID         = "/user_id"
	MetaTick           = "/tick"
	MetaCreatorVersion = "/version"
)

// UserDBType is the value of the MetaDBType entry that marks a store as a
// user dictionary. Stores without it are not recognized by IsUserDB.
const UserDBType = "userdb"

// Factory is a function type that creates a (not yet opened) UserDB for a
// dictionary name. This is used to abstract the creation of the engine from
// the code that orchestrates dictionaries.
type Factory func(name string) UserDB

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// UserDB defines the interface for user dictionary store engines.
// A UserDB is addressed by dictionary name, lives in a single file, keeps its
// records in ascending key order and carries its own metadata (owning user,
// logical clock, creator version) inside the store.
//
// All handles are single-operation scoped: open, use, close. Implementations
// must serialize concurrent opens of the same physical store within the
// process.
type UserDB interface {

	// Name returns the dictionary name this handle is bound to.
	Name() string

	// --------------------------------------------------------------------------
	// Lifecycle
	// --------------------------------------------------------------------------

	// Open opens the store read-write, creating file and metadata if the
	// store does not exist yet.
	Open() error

	// OpenReadOnly opens an existing store for reading only.
	OpenReadOnly() error

	// Close releases the handle. Closing a closed handle is a no-op.
	Close() error

	// Exists reports whether the store file is present on disk.
	Exists() bool

	// Remove deletes the store file. The handle must be closed first.
	Remove() error

	// --------------------------------------------------------------------------
	// Record Operations
	// --------------------------------------------------------------------------

	// Fetch retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Fetch(key string) (value []byte, found bool)

	// Update inserts or overwrites a key-value pair.
	// Returns false if the write could not be performed (e.g. read-only handle).
	Update(key string, value []byte) bool

	// Query returns an Accessor positioned before the first key with the
	// given prefix. The Accessor must be closed before the store is closed.
	Query(prefix string) (Accessor, error)

	// --------------------------------------------------------------------------
	// Metadata Operations
	// --------------------------------------------------------------------------

	// MetaFetch retrieves a metadata value ("/tick", "/user_id", ...).
	MetaFetch(key string) (value string, found bool)

	// MetaUpdate sets a metadata value.
	MetaUpdate(key, value string) bool

	// CreateMetadata (re)generates the store's identifying metadata: its
	// embedded dictionary name, store type tag, owning user and creator
	// version. Record data is left untouched.
	CreateMetadata() error

	// IsUserDB reports whether the store is tagged as a user dictionary.
	IsUserDB() bool

	// UserID returns the owning user identity recorded in the store.
	UserID() string

	// TickCount returns the store's logical clock. A store without clock
	// metadata is at tick 0.
	TickCount() uint64

	// DBName returns the dictionary name embedded in the store's metadata
	// (which may differ from Name() for a snapshot restored into a
	// temporary store).
	DBName() string

	// CreatorVersion returns the version string of the writer that created
	// the store's metadata.
	CreatorVersion() string

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Backup exports a complete point-in-time copy of the store to a single
	// snapshot file. The handle must be open.
	Backup(filePath string) error

	// Restore replaces the store's entire content with the given snapshot
	// file and reopens the handle. Fails if the file is not a recognizable
	// store export.
	Restore(filePath string) error
}

// --------------------------------------------------------------------------
// Cursor Interface
// --------------------------------------------------------------------------

// Accessor is an ordered cursor over the records of a UserDB.
// The iteration order is ascending byte order of the keys.
type Accessor interface {
	// Jump repositions the cursor at the first key >= the given key
	// (within the Accessor's prefix).
	Jump(key string) bool

	// Next returns the record at the cursor and advances. ok is false once
	// the prefix range is exhausted.
	Next() (key string, value []byte, ok bool)

	// Close releases the cursor. Must be called on every exit path.
	Close()
}
