package lever

import (
	"fmt"
	"strconv"

	"github.com/udict/udict/lib/db"
	"github.com/udict/udict/lib/dict"
)

// --------------------------------------------------------------------------
// Snapshot Merge Engine
// --------------------------------------------------------------------------

// Restore merges a snapshot file into the live dictionary named inside it.
// The snapshot is loaded into a temporary, isolated store first; the live
// dictionary is only ever merged into, never overwritten wholesale. A
// snapshot that contributes no new entries is not an error.
func (m *Manager) Restore(snapshotFile string) error {
	temp := m.newDB(tempDBName)
	if temp.Exists() {
		if err := temp.Remove(); err != nil {
			return fmt.Errorf("restore: clear temporary store: %w", err)
		}
	}
	if err := temp.Open(); err != nil {
		return fmt.Errorf("restore: open temporary store: %w", err)
	}
	defer func() {
		_ = temp.Close()
		_ = temp.Remove()
	}()

	if err := temp.Restore(snapshotFile); err != nil {
		return fmt.Errorf("restore %q: %w", snapshotFile, err)
	}
	if !temp.IsUserDB() {
		return fmt.Errorf("restore %q: not a user dictionary snapshot", snapshotFile)
	}
	dictName := temp.DBName()
	if dictName == "" {
		return fmt.Errorf("restore %q: snapshot carries no dictionary name", snapshotFile)
	}

	dest := m.newDB(dictName)
	if err := dest.Open(); err != nil {
		return fmt.Errorf("restore %q: open destination %q: %w", snapshotFile, dictName, err)
	}
	defer dest.Close()

	m.logger.Infof("merging %q from %s into userdb %q...", snapshotFile, temp.UserID(), dictName)
	numEntries, err := m.merge(dest, temp)
	if err != nil {
		return fmt.Errorf("restore %q: %w", snapshotFile, err)
	}
	m.logger.Infof("total %d entries imported, tick = %d", numEntries, dest.TickCount())
	snapshotsMerged.Inc()
	entriesMerged.Add(numEntries)
	return nil
}

// merge applies every entry record of src to dest and returns the number of
// entries written.
//
// Conflicts resolve per record by max over commit counts and over
// decay-normalized weights: both sides' weights are first rescaled to their
// own store's clock so they are comparable, then the higher value wins. The
// resolution is symmetric and idempotent, so re-merging the same snapshot is
// a no-op and merge order does not matter.
func (m *Manager) merge(dest, src db.UserDB) (int, error) {
	tickDest := dest.TickCount()
	tickSrc := src.TickCount()
	tickMax := max(tickDest, tickSrc)

	a, err := src.Query("")
	if err != nil {
		return 0, err
	}
	defer a.Close()
	a.Jump(" ") // skip metadata

	numEntries := 0
	for {
		key, raw, ok := a.Next()
		if !ok {
			break
		}
		// fix invalid keys created by a buggy version of Import
		key, ok = dict.SanitizeKey(key)
		if !ok {
			continue
		}
		v := dict.UnpackValue(raw)
		if v.Tick < tickSrc {
			v.Dee = dict.Rescale(v.Dee, v.Tick, tickSrc)
		}
		if stored, found := dest.Fetch(key); found {
			u := dict.UnpackValue(stored)
			if u.Tick < tickDest {
				u.Dee = dict.Rescale(u.Dee, u.Tick, tickDest)
			}
			if u.Commits > v.Commits {
				v.Commits = u.Commits
			}
			if u.Dee > v.Dee {
				v.Dee = u.Dee
			}
		}
		v.Tick = tickMax
		if dest.Update(key, v.Pack()) {
			numEntries++
		}
	}

	if numEntries > 0 {
		if !dest.MetaUpdate(db.MetaTick, strconv.FormatUint(tickMax, 10)) ||
			!dest.MetaUpdate(db.MetaUserID, m.cfg.UserID) {
			m.logger.Warnf("failed to update tick count")
		}
	}
	return numEntries, nil
}
