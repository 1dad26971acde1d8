package lever

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/sirupsen/logrus"
	"github.com/udict/udict/lib/common"
	"github.com/udict/udict/lib/db"
	"github.com/udict/udict/lib/db/engines/bolt"
	"github.com/udict/udict/lib/dict"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// SnapshotSuffix is appended to the dictionary name to form a snapshot
	// file name.
	SnapshotSuffix = bolt.Extension + ".snapshot"

	// tempDBName is the scratch store a snapshot is loaded into before it
	// is merged. It lives in the user data directory and is removed on
	// every exit path.
	tempDBName = ".temp"

	// trashDirName is the quarantine directory for pre-upgrade snapshots.
	trashDirName = "trash"

	// keyEncodingFixVersion is the first creator version whose import wrote
	// well-formed record keys. Dictionaries created by anything older are
	// migrated through Upgrade.
	keyEncodingFixVersion = "1.0.0"
)

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

var (
	snapshotsMerged = metrics.NewCounter("udict_snapshots_merged_total")
	entriesMerged   = metrics.NewCounter("udict_entries_merged_total")
	entriesImported = metrics.NewCounter("udict_entries_imported_total")
	entriesExported = metrics.NewCounter("udict_entries_exported_total")
	syncFailures    = metrics.NewCounter("udict_sync_failures_total")
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config carries all paths and the local identity. It is passed explicitly;
// there is no ambient configuration state.
type Config struct {
	UserDataDir string // directory holding the local dictionary stores
	SyncDir     string // shared synchronization root, one subdirectory per peer
	UserID      string // identity of the local installation
	Version     string // creator version written into new store metadata
}

// --------------------------------------------------------------------------
// Manager
// --------------------------------------------------------------------------

// Manager orchestrates the lifecycle of user dictionaries: catalog listing,
// backup, snapshot merge, plain-text import/export, legacy upgrade and
// synchronization. It owns no persistent state; every store handle is opened
// for the duration of one operation and released on all exit paths.
type Manager struct {
	cfg    Config
	newDB  db.Factory
	logger *logrus.Entry
}

// NewManager creates a Manager backed by the bolt engine.
func NewManager(cfg Config) *Manager {
	return NewManagerWithFactory(cfg, bolt.Factory(&bolt.DBOptions{
		Directory: cfg.UserDataDir,
		UserID:    cfg.UserID,
		Version:   cfg.Version,
	}))
}

// NewManagerWithFactory creates a Manager with a custom engine factory.
// The user data directory is created eagerly; a failure surfaces on the
// first store open.
func NewManagerWithFactory(cfg Config, factory db.Factory) *Manager {
	_ = os.MkdirAll(cfg.UserDataDir, 0o755)
	return &Manager{
		cfg:    cfg,
		newDB:  factory,
		logger: common.CreateLogger("lever"),
	}
}

// --------------------------------------------------------------------------
// Catalog Listing
// --------------------------------------------------------------------------

// List returns the names of all dictionaries present in the user data
// directory, by file naming convention. A missing directory yields an empty
// list.
func (m *Manager) List() []string {
	entries, err := os.ReadDir(m.cfg.UserDataDir)
	if err != nil {
		m.logger.Infof("directory %q does not exist", m.cfg.UserDataDir)
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, bolt.Extension) {
			names = append(names, strings.TrimSuffix(name, bolt.Extension))
		}
	}
	return names
}

// --------------------------------------------------------------------------
// Backup
// --------------------------------------------------------------------------

// Backup exports a full snapshot of the dictionary into the local peer
// directory under the synchronization root. A dictionary whose recorded
// owner differs from the local identity was copied from another installation;
// its ownership metadata is regenerated first, without touching record data.
func (m *Manager) Backup(dictName string) error {
	d := m.newDB(dictName)
	if err := d.OpenReadOnly(); err != nil {
		return fmt.Errorf("backup %q: %w", dictName, err)
	}
	defer d.Close()

	if d.UserID() != m.cfg.UserID {
		m.logger.Infof("user id not match; recreating metadata in %q", dictName)
		if err := d.Close(); err != nil {
			return fmt.Errorf("backup %q: %w", dictName, err)
		}
		if err := d.Open(); err != nil {
			return fmt.Errorf("backup %q: %w", dictName, err)
		}
		if err := d.CreateMetadata(); err != nil {
			return fmt.Errorf("backup %q: recreate metadata: %w", dictName, err)
		}
	}

	dir := filepath.Join(m.cfg.SyncDir, m.cfg.UserID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backup %q: create directory %q: %w", dictName, dir, err)
	}
	return d.Backup(filepath.Join(dir, dictName+SnapshotSuffix))
}

// --------------------------------------------------------------------------
// Upgrade
// --------------------------------------------------------------------------

// Upgrade migrates a dictionary created before the key-encoding fix: it is
// exported to the quarantine directory, removed, and re-imported through the
// snapshot merge, whose key sanitation repairs every corrupted key. An
// up-to-date dictionary is a no-op.
func (m *Manager) Upgrade(dictName string) error {
	d := m.newDB(dictName)
	if err := d.OpenReadOnly(); err != nil {
		return fmt.Errorf("upgrade %q: %w", dictName, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = d.Close()
		}
	}()
	if !d.IsUserDB() {
		return fmt.Errorf("upgrade %q: not a user dictionary", dictName)
	}
	if dict.CompareVersions(d.CreatorVersion(), keyEncodingFixVersion) >= 0 {
		return nil
	}

	m.logger.Infof("upgrading user dict %q", dictName)
	trash := filepath.Join(m.cfg.UserDataDir, trashDirName)
	if err := os.MkdirAll(trash, 0o755); err != nil {
		return fmt.Errorf("upgrade %q: create directory %q: %w", dictName, trash, err)
	}
	snapshotFile := filepath.Join(trash, dictName+SnapshotSuffix)
	if err := d.Backup(snapshotFile); err != nil {
		return fmt.Errorf("upgrade %q: %w", dictName, err)
	}
	if err := d.Close(); err != nil {
		return fmt.Errorf("upgrade %q: %w", dictName, err)
	}
	closed = true
	if err := d.Remove(); err != nil {
		return fmt.Errorf("upgrade %q: %w", dictName, err)
	}
	return m.Restore(snapshotFile)
}

// --------------------------------------------------------------------------
// Synchronization
// --------------------------------------------------------------------------

// Synchronize merges every peer's snapshot of the dictionary found under the
// synchronization root, then publishes the merged state with a final Backup.
// Individual peer-merge failures are collected; the remaining peers and the
// final backup are still attempted.
func (m *Manager) Synchronize(dictName string) error {
	m.logger.Infof("synchronize user dict %q", dictName)
	if err := os.MkdirAll(m.cfg.SyncDir, 0o755); err != nil {
		return fmt.Errorf("synchronize %q: create directory %q: %w", dictName, m.cfg.SyncDir, err)
	}
	peers, err := os.ReadDir(m.cfg.SyncDir)
	if err != nil {
		return fmt.Errorf("synchronize %q: %w", dictName, err)
	}

	snapshotName := dictName + SnapshotSuffix
	failures := 0
	for _, peer := range peers {
		if !peer.IsDir() {
			continue
		}
		filePath := filepath.Join(m.cfg.SyncDir, peer.Name(), snapshotName)
		if _, err := os.Stat(filePath); err != nil {
			continue
		}
		m.logger.Infof("merging snapshot file %q", filePath)
		if err := m.Restore(filePath); err != nil {
			m.logger.Errorf("failed to merge snapshot file %q: %v", filePath, err)
			syncFailures.Inc()
			failures++
		}
	}

	if err := m.Backup(dictName); err != nil {
		m.logger.Errorf("error backing up user dict %q: %v", dictName, err)
		syncFailures.Inc()
		failures++
	}
	if failures > 0 {
		return fmt.Errorf("synchronize %q: %d step(s) failed", dictName, failures)
	}
	return nil
}

// SynchronizeAll synchronizes every local dictionary. It is best-effort: a
// failing dictionary is reported but does not stop the remaining ones.
func (m *Manager) SynchronizeAll() error {
	dictNames := m.List()
	m.logger.Infof("synchronizing %d user dicts", len(dictNames))
	var failed []string
	for _, dictName := range dictNames {
		if err := m.Synchronize(dictName); err != nil {
			m.logger.Errorf("%v", err)
			failed = append(failed, dictName)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to synchronize: %s", strings.Join(failed, ", "))
	}
	return nil
}
