package bolt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/udict/udict/lib/db"
	bolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// Extension is the file name suffix of every dictionary store.
	Extension = ".userdb"

	defaultFileMode    = 0o644
	defaultOpenTimeout = time.Second
)

// entriesBucket holds all records, entry keys and metadata keys alike.
var entriesBucket = []byte("entries")

// --------------------------------------------------------------------------
// Open-Handle Registry
// --------------------------------------------------------------------------

// openHandles serializes opens of the same physical store file within the
// process: a second Open of a path that is already held fails immediately
// instead of blocking on the file lock.
var openHandles = xsync.NewMapOf[string, *userDB]()

// --------------------------------------------------------------------------
// Core bolt engine structure
// --------------------------------------------------------------------------

// userDB implements db.UserDB on top of a single bbolt file.
type userDB struct {
	name     string // dictionary name
	path     string // <directory>/<name><Extension>
	userID   string // local identity written by CreateMetadata
	version  string // creator version written by CreateMetadata
	handle   *bolt.DB
	readOnly bool
}

// DBOptions configures the engine during initialization
type DBOptions struct {
	Directory string // Directory holding the store files
	UserID    string // Local user identity for metadata regeneration
	Version   string // Creator version for metadata regeneration
}

// DefaultOptions returns the default engine options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Directory: ".",
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// New creates a handle for the dictionary with the given name. The store is
// not touched until Open or OpenReadOnly is called.
func New(name string, opts *DBOptions) db.UserDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &userDB{
		name:    name,
		path:    filepath.Join(opts.Directory, name+Extension),
		userID:  opts.UserID,
		version: opts.Version,
	}
}

// Factory returns a db.Factory bound to the given options.
func Factory(opts *DBOptions) db.Factory {
	return func(name string) db.UserDB {
		return New(name, opts)
	}
}

func (d *userDB) Name() string {
	return d.name
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (d *userDB) Open() error {
	return d.open(false)
}

func (d *userDB) OpenReadOnly() error {
	if !d.Exists() {
		return fmt.Errorf("store %s: not found", d.path)
	}
	return d.open(true)
}

func (d *userDB) open(readOnly bool) error {
	if d.handle != nil {
		return fmt.Errorf("store %s: handle already open", d.path)
	}
	if _, held := openHandles.LoadOrStore(d.path, d); held {
		return fmt.Errorf("store %s: opened by another handle", d.path)
	}

	h, err := bolt.Open(d.path, defaultFileMode, &bolt.Options{
		Timeout:  defaultOpenTimeout,
		ReadOnly: readOnly,
	})
	if err != nil {
		openHandles.Delete(d.path)
		return fmt.Errorf("open store %s: %w", d.path, err)
	}
	d.handle = h
	d.readOnly = readOnly

	if readOnly {
		err = h.View(func(tx *bolt.Tx) error {
			if tx.Bucket(entriesBucket) == nil {
				return fmt.Errorf("store %s: not a dictionary store", d.path)
			}
			return nil
		})
	} else {
		var created bool
		err = h.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(entriesBucket)
			if b == nil {
				created = true
				_, e := tx.CreateBucket(entriesBucket)
				return e
			}
			return nil
		})
		if err == nil && created {
			err = d.CreateMetadata()
		}
	}
	if err != nil {
		_ = d.Close()
		return err
	}
	return nil
}

func (d *userDB) Close() error {
	if d.handle == nil {
		return nil
	}
	err := d.handle.Close()
	d.handle = nil
	openHandles.Delete(d.path)
	return err
}

func (d *userDB) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

func (d *userDB) Remove() error {
	if d.handle != nil {
		return fmt.Errorf("store %s: cannot remove an open store", d.path)
	}
	return os.Remove(d.path)
}

// --------------------------------------------------------------------------
// Record Operations
// --------------------------------------------------------------------------

func (d *userDB) Fetch(key string) (value []byte, found bool) {
	if d.handle == nil {
		return nil, false
	}
	_ = d.handle.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	return value, found
}

func (d *userDB) Update(key string, value []byte) bool {
	if d.handle == nil || d.readOnly {
		return false
	}
	err := d.handle.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b == nil {
			return fmt.Errorf("store %s: missing entries bucket", d.path)
		}
		return b.Put([]byte(key), value)
	})
	return err == nil
}

func (d *userDB) Query(prefix string) (db.Accessor, error) {
	if d.handle == nil {
		return nil, fmt.Errorf("store %s: not open", d.path)
	}
	tx, err := d.handle.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("store %s: begin query: %w", d.path, err)
	}
	b := tx.Bucket(entriesBucket)
	if b == nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("store %s: missing entries bucket", d.path)
	}
	a := &accessor{tx: tx, c: b.Cursor(), prefix: []byte(prefix)}
	a.k, a.v = a.c.Seek(a.prefix)
	return a, nil
}

// --------------------------------------------------------------------------
// Metadata Operations
// --------------------------------------------------------------------------

func (d *userDB) MetaFetch(key string) (string, bool) {
	v, found := d.Fetch(db.MetaPrefix + key)
	if !found {
		return "", false
	}
	return string(v), true
}

func (d *userDB) MetaUpdate(key, value string) bool {
	return d.Update(db.MetaPrefix+key, []byte(value))
}

func (d *userDB) CreateMetadata() error {
	if d.handle == nil || d.readOnly {
		return fmt.Errorf("store %s: not open for writing", d.path)
	}
	ok := d.MetaUpdate(db.MetaDBName, d.name) &&
		d.MetaUpdate(db.MetaDBType, db.UserDBType) &&
		d.MetaUpdate(db.MetaUserID, d.userID) &&
		d.MetaUpdate(db.MetaCreatorVersion, d.version)
	if !ok {
		return fmt.Errorf("store %s: failed to write metadata", d.path)
	}
	// the clock survives metadata regeneration
	if _, found := d.MetaFetch(db.MetaTick); !found {
		if !d.MetaUpdate(db.MetaTick, "0") {
			return fmt.Errorf("store %s: failed to initialize tick", d.path)
		}
	}
	return nil
}

func (d *userDB) IsUserDB() bool {
	v, found := d.MetaFetch(db.MetaDBType)
	return found && v == db.UserDBType
}

func (d *userDB) UserID() string {
	v, _ := d.MetaFetch(db.MetaUserID)
	return v
}

func (d *userDB) TickCount() uint64 {
	v, found := d.MetaFetch(db.MetaTick)
	if !found {
		return 0
	}
	tick, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return tick
}

func (d *userDB) DBName() string {
	v, _ := d.MetaFetch(db.MetaDBName)
	return v
}

func (d *userDB) CreatorVersion() string {
	v, _ := d.MetaFetch(db.MetaCreatorVersion)
	return v
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (d *userDB) Backup(filePath string) error {
	if d.handle == nil {
		return fmt.Errorf("store %s: not open", d.path)
	}
	err := d.handle.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(filePath, defaultFileMode)
	})
	if err != nil {
		return fmt.Errorf("backup store %s to %s: %w", d.path, filePath, err)
	}
	return nil
}

func (d *userDB) Restore(filePath string) error {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", filePath, err)
	}
	if d.handle != nil {
		if err := d.Close(); err != nil {
			return fmt.Errorf("close store %s before restore: %w", d.path, err)
		}
	}
	if err := os.WriteFile(d.path, src, defaultFileMode); err != nil {
		return fmt.Errorf("restore store %s: %w", d.path, err)
	}
	return d.open(false)
}

// --------------------------------------------------------------------------
// Cursor
// --------------------------------------------------------------------------

// accessor implements db.Accessor over a long-lived read transaction.
// The transaction is held until Close, so the cursor stays valid while the
// caller writes to other stores.
type accessor struct {
	tx     *bolt.Tx
	c      *bolt.Cursor
	prefix []byte
	k, v   []byte
}

func (a *accessor) Jump(key string) bool {
	a.k, a.v = a.c.Seek([]byte(key))
	return a.k != nil && bytes.HasPrefix(a.k, a.prefix)
}

func (a *accessor) Next() (string, []byte, bool) {
	if a.k == nil || !bytes.HasPrefix(a.k, a.prefix) {
		return "", nil, false
	}
	key := string(a.k)
	value := append([]byte(nil), a.v...)
	a.k, a.v = a.c.Next()
	return key, value, true
}

func (a *accessor) Close() {
	_ = a.tx.Rollback()
}
