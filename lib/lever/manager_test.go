package lever

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/udict/udict/lib/db"
	"github.com/udict/udict/lib/db/engines/bolt"
	"github.com/udict/udict/lib/dict"
)

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

const testVersion = "1.1.0"

func newTestManager(t *testing.T) (*Manager, Config) {
	t.Helper()
	base := t.TempDir()
	cfg := Config{
		UserDataDir: filepath.Join(base, "data"),
		SyncDir:     filepath.Join(base, "sync"),
		UserID:      "local-device",
		Version:     testVersion,
	}
	return NewManager(cfg), cfg
}

// stageDict creates a dictionary store directly in dir, bypassing the manager.
func stageDict(t *testing.T, dir, dictName, userID, version string, tick uint64, records map[string]dict.Value) {
	t.Helper()
	d := bolt.New(dictName, &bolt.DBOptions{Directory: dir, UserID: userID, Version: version})
	if err := d.Open(); err != nil {
		t.Fatalf("staging %q: %v", dictName, err)
	}
	defer d.Close()
	for key, v := range records {
		if !d.Update(key, v.Pack()) {
			t.Fatalf("staging %q: update %q failed", dictName, key)
		}
	}
	if !d.MetaUpdate(db.MetaTick, strconv.FormatUint(tick, 10)) {
		t.Fatalf("staging %q: tick update failed", dictName)
	}
}

// stageSnapshot stages a peer's copy of a dictionary in its own directory and
// exports it, returning the snapshot path.
func stageSnapshot(t *testing.T, dictName, userID string, tick uint64, records map[string]dict.Value) string {
	t.Helper()
	dir := t.TempDir()
	stageDict(t, dir, dictName, userID, testVersion, tick, records)

	d := bolt.New(dictName, &bolt.DBOptions{Directory: dir, UserID: userID, Version: testVersion})
	if err := d.OpenReadOnly(); err != nil {
		t.Fatalf("staging snapshot of %q: %v", dictName, err)
	}
	defer d.Close()
	path := filepath.Join(dir, dictName+SnapshotSuffix)
	if err := d.Backup(path); err != nil {
		t.Fatalf("staging snapshot of %q: %v", dictName, err)
	}
	return path
}

// readDict opens a dictionary read-only and returns tick and all entry
// records, decoded.
func readDict(t *testing.T, dir, dictName string) (uint64, map[string]dict.Value) {
	t.Helper()
	d := bolt.New(dictName, &bolt.DBOptions{Directory: dir})
	if err := d.OpenReadOnly(); err != nil {
		t.Fatalf("reading %q: %v", dictName, err)
	}
	defer d.Close()

	a, err := d.Query("")
	if err != nil {
		t.Fatalf("reading %q: %v", dictName, err)
	}
	defer a.Close()
	a.Jump(" ")

	records := make(map[string]dict.Value)
	for {
		key, raw, ok := a.Next()
		if !ok {
			break
		}
		records[key] = dict.UnpackValue(raw)
	}
	return d.TickCount(), records
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// --------------------------------------------------------------------------
// Snapshot merge
// --------------------------------------------------------------------------

func TestRestoreEndToEnd(t *testing.T) {
	mgr, cfg := newTestManager(t)
	key := "abc \tentry"

	// local copy at tick 5, record last written at tick 3
	stageDict(t, cfg.UserDataDir, "notes", cfg.UserID, testVersion, 5,
		map[string]dict.Value{key: {Commits: 2, Dee: 1.0, Tick: 3}})

	// peer copy of the same dictionary, ahead at tick 7
	snapshot := stageSnapshot(t, "notes", "peer-device", 7,
		map[string]dict.Value{key: {Commits: 5, Dee: 0.2, Tick: 7}})

	if err := mgr.Restore(snapshot); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	tick, records := readDict(t, cfg.UserDataDir, "notes")
	if tick != 7 {
		t.Errorf("Expected destination clock 7, got %d", tick)
	}
	got, found := records[key]
	if !found {
		t.Fatalf("Expected record %q after merge", key)
	}
	if got.Commits != 5 {
		t.Errorf("Expected commits 5 (max), got %d", got.Commits)
	}
	// max(rescale(1.0, 3, 5), 0.2) = max(e^-2, 0.2) = 0.2
	if math.Abs(got.Dee-0.2) > 1e-12 {
		t.Errorf("Expected weight 0.2, got %g", got.Dee)
	}
	if got.Tick != 7 {
		t.Errorf("Expected record stamp 7, got %d", got.Tick)
	}
}

func TestRestoreIdempotent(t *testing.T) {
	mgr, cfg := newTestManager(t)
	key := "abc \tentry"

	stageDict(t, cfg.UserDataDir, "notes", cfg.UserID, testVersion, 5,
		map[string]dict.Value{key: {Commits: 2, Dee: 1.0, Tick: 3}})
	snapshot := stageSnapshot(t, "notes", "peer-device", 7,
		map[string]dict.Value{key: {Commits: 5, Dee: 0.2, Tick: 7}})

	if err := mgr.Restore(snapshot); err != nil {
		t.Fatalf("first Restore failed: %v", err)
	}
	tick1, records1 := readDict(t, cfg.UserDataDir, "notes")

	if err := mgr.Restore(snapshot); err != nil {
		t.Fatalf("second Restore failed: %v", err)
	}
	tick2, records2 := readDict(t, cfg.UserDataDir, "notes")

	if tick1 != tick2 {
		t.Errorf("Expected clock unchanged by re-merge, got %d then %d", tick1, tick2)
	}
	if len(records1) != len(records2) {
		t.Fatalf("Expected record count unchanged by re-merge, got %d then %d",
			len(records1), len(records2))
	}
	for key, v1 := range records1 {
		if v2, found := records2[key]; !found || v1 != v2 {
			t.Errorf("Record %q changed by re-merge: %+v then %+v", key, v1, v2)
		}
	}
}

func TestRestoreCommutative(t *testing.T) {
	shared, onlyA, onlyB := "s \tx", "a \ty", "b \tz"
	recordsA := map[string]dict.Value{
		shared: {Commits: 3, Dee: 0.5, Tick: 2},
		onlyA:  {Commits: 1, Dee: 0.3, Tick: 1},
	}
	recordsB := map[string]dict.Value{
		shared: {Commits: 5, Dee: 0.1, Tick: 4},
		onlyB:  {Commits: 2, Dee: 0.4, Tick: 3},
	}
	snapA := stageSnapshot(t, "comm", "peer-a", 4, recordsA)
	snapB := stageSnapshot(t, "comm", "peer-b", 6, recordsB)

	mgrAB, cfgAB := newTestManager(t)
	for _, s := range []string{snapA, snapB} {
		if err := mgrAB.Restore(s); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
	}
	mgrBA, cfgBA := newTestManager(t)
	for _, s := range []string{snapB, snapA} {
		if err := mgrBA.Restore(s); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
	}

	tickAB, ab := readDict(t, cfgAB.UserDataDir, "comm")
	tickBA, ba := readDict(t, cfgBA.UserDataDir, "comm")

	if tickAB != 6 || tickBA != 6 {
		t.Errorf("Expected clock 6 in both orders, got %d and %d", tickAB, tickBA)
	}
	if len(ab) != 3 || len(ba) != 3 {
		t.Fatalf("Expected 3 records in both orders, got %d and %d", len(ab), len(ba))
	}
	for key, va := range ab {
		vb, found := ba[key]
		if !found {
			t.Errorf("Record %q missing in reversed merge order", key)
			continue
		}
		if va.Commits != vb.Commits {
			t.Errorf("Record %q: commits differ across merge orders: %d vs %d",
				key, va.Commits, vb.Commits)
		}
	}
	// the weight of a record both sides carry resolves identically
	if math.Abs(ab[shared].Dee-ba[shared].Dee) > 1e-12 {
		t.Errorf("Record %q: weight differs across merge orders: %g vs %g",
			shared, ab[shared].Dee, ba[shared].Dee)
	}
}

func TestRestoreSanitizesKeys(t *testing.T) {
	mgr, cfg := newTestManager(t)

	// "ab\tcd" misses the mandatory space written by correct writers
	snapshot := stageSnapshot(t, "notes", "peer-device", 1, map[string]dict.Value{
		"ab\tcd":  {Commits: 1, Dee: 0.5, Tick: 1},
		"ok \tef": {Commits: 2, Dee: 0.5, Tick: 1},
	})
	if err := mgr.Restore(snapshot); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	_, records := readDict(t, cfg.UserDataDir, "notes")
	if _, found := records["ab \tcd"]; !found {
		t.Errorf("Expected defective key to be repaired to %q", "ab \tcd")
	}
	if _, found := records["ab\tcd"]; found {
		t.Errorf("Expected defective key %q not to survive the merge", "ab\tcd")
	}
	if _, found := records["ok \tef"]; !found {
		t.Errorf("Expected well-formed key to be merged untouched")
	}
}

func TestRestoreRejectsNonSnapshot(t *testing.T) {
	mgr, cfg := newTestManager(t)
	bogus := filepath.Join(cfg.UserDataDir, "bogus.snapshot")
	writeFile(t, bogus, "this is not a dictionary export\n")

	if err := mgr.Restore(bogus); err == nil {
		t.Errorf("Expected Restore of a non-snapshot file to fail")
	}
	// the temporary merge store is cleaned up on the error path
	if _, err := os.Stat(filepath.Join(cfg.UserDataDir, tempDBName+bolt.Extension)); err == nil {
		t.Errorf("Expected temporary store to be removed")
	}
}

// --------------------------------------------------------------------------
// Text import / export
// --------------------------------------------------------------------------

func TestImportSkipsJunk(t *testing.T) {
	mgr, cfg := newTestManager(t)
	textFile := filepath.Join(t.TempDir(), "words.txt")
	writeFile(t, textFile, "# comment\n"+
		"\n"+
		"你好\tni hao\t3\n"+
		"onlyonefield\n"+
		"谢谢\txie  xie\n"+ // no count, repeated separators in code
		"再见\tzai jian\tnotanumber\n")

	n, err := mgr.Import("words", textFile)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 entries imported, got %d", n)
	}

	_, records := readDict(t, cfg.UserDataDir, "words")
	if v := records["ni hao \t你好"]; v.Commits != 3 {
		t.Errorf("Expected commits 3, got %+v", v)
	}
	if v, found := records["xie xie \t谢谢"]; !found || v.Commits != 0 {
		t.Errorf("Expected normalized code and default count, got %+v (found=%v)", v, found)
	}
	if v := records["zai jian \t再见"]; v.Commits != 0 {
		t.Errorf("Expected unparsable count to default to 0, got %+v", v)
	}
}

func TestImportTombstoneRules(t *testing.T) {
	mgr, cfg := newTestManager(t)
	dir := t.TempDir()
	key := "abc \tentry"

	importLine := func(count string) {
		t.Helper()
		textFile := filepath.Join(dir, "line.txt")
		writeFile(t, textFile, "entry\tabc\t"+count+"\n")
		if _, err := mgr.Import("words", textFile); err != nil {
			t.Fatalf("Import failed: %v", err)
		}
	}
	commits := func() int {
		t.Helper()
		_, records := readDict(t, cfg.UserDataDir, "words")
		return records[key].Commits
	}

	importLine("5")
	if got := commits(); got != 5 {
		t.Fatalf("Expected commits 5, got %d", got)
	}

	// a negative count is a delete marker and overrides the stored count
	importLine("-1")
	if got := commits(); got != -1 {
		t.Errorf("Expected tombstone -1 to override, got %d", got)
	}

	// a positive count takes max against the tombstone and revives the entry
	importLine("3")
	if got := commits(); got != 3 {
		t.Errorf("Expected commits 3 to win over tombstone, got %d", got)
	}

	// a smaller positive count never lowers the stored one
	importLine("1")
	if got := commits(); got != 3 {
		t.Errorf("Expected commits to stay 3, got %d", got)
	}
}

func TestExportRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()

	in := filepath.Join(dir, "in.txt")
	writeFile(t, in, "你好\tni hao\t3\n再见\tzai jian\t-1\n")
	if _, err := mgr.Import("words", in); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	out := filepath.Join(dir, "out.txt")
	n, err := mgr.Export("words", out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 entries exported, got %d", n)
	}

	// importing the export into a fresh dictionary reproduces the records
	mgr2, cfg2 := newTestManager(t)
	if _, err := mgr2.Import("words", out); err != nil {
		t.Fatalf("re-Import failed: %v", err)
	}
	_, records := readDict(t, cfg2.UserDataDir, "words")
	if v := records["ni hao \t你好"]; v.Commits != 3 {
		t.Errorf("Expected commits 3 after round trip, got %+v", v)
	}
	if v := records["zai jian \t再见"]; v.Commits != -1 {
		t.Errorf("Expected tombstone preserved by round trip, got %+v", v)
	}
}

func TestExportMissingDict(t *testing.T) {
	mgr, _ := newTestManager(t)
	if _, err := mgr.Export("no-such-dict", filepath.Join(t.TempDir(), "out.txt")); err == nil {
		t.Errorf("Expected Export of a missing dictionary to fail")
	}
}

// --------------------------------------------------------------------------
// Backup / ownership
// --------------------------------------------------------------------------

func TestBackupPublishesSnapshot(t *testing.T) {
	mgr, cfg := newTestManager(t)
	stageDict(t, cfg.UserDataDir, "notes", cfg.UserID, testVersion, 1,
		map[string]dict.Value{"abc \tentry": {Commits: 1}})

	if err := mgr.Backup("notes"); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	snapshot := filepath.Join(cfg.SyncDir, cfg.UserID, "notes"+SnapshotSuffix)
	if _, err := os.Stat(snapshot); err != nil {
		t.Errorf("Expected snapshot at %q: %v", snapshot, err)
	}
}

func TestBackupReclaimsOwnership(t *testing.T) {
	mgr, cfg := newTestManager(t)
	// a dictionary copied over from another installation
	stageDict(t, cfg.UserDataDir, "notes", "other-device", testVersion, 1,
		map[string]dict.Value{"abc \tentry": {Commits: 4}})

	if err := mgr.Backup("notes"); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	d := bolt.New("notes", &bolt.DBOptions{Directory: cfg.UserDataDir})
	if err := d.OpenReadOnly(); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer d.Close()
	if got := d.UserID(); got != cfg.UserID {
		t.Errorf("Expected ownership reclaimed by %q, got %q", cfg.UserID, got)
	}
	// record data is untouched by the reclaim
	if raw, found := d.Fetch("abc \tentry"); !found || dict.UnpackValue(raw).Commits != 4 {
		t.Errorf("Expected record data to survive metadata regeneration")
	}
}

func TestBackupMissingDict(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.Backup("no-such-dict"); err == nil {
		t.Errorf("Expected Backup of a missing dictionary to fail")
	}
}

// --------------------------------------------------------------------------
// Synchronization
// --------------------------------------------------------------------------

func TestSynchronize(t *testing.T) {
	mgr, cfg := newTestManager(t)

	// two peers have published snapshots of the same dictionary
	for peer, key := range map[string]string{
		"alice": "aa \tfrom-alice",
		"bob":   "bb \tfrom-bob",
	} {
		snapshot := stageSnapshot(t, "words", peer, 1,
			map[string]dict.Value{key: {Commits: 1, Dee: 0.1, Tick: 1}})
		peerDir := filepath.Join(cfg.SyncDir, peer)
		if err := os.MkdirAll(peerDir, 0o755); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(snapshot)
		if err != nil {
			t.Fatal(err)
		}
		writeFile(t, filepath.Join(peerDir, "words"+SnapshotSuffix), string(data))
	}

	if err := mgr.Synchronize("words"); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}

	_, records := readDict(t, cfg.UserDataDir, "words")
	if len(records) != 2 {
		t.Errorf("Expected 2 records after synchronizing both peers, got %d", len(records))
	}
	// the merged state is published for other peers
	own := filepath.Join(cfg.SyncDir, cfg.UserID, "words"+SnapshotSuffix)
	if _, err := os.Stat(own); err != nil {
		t.Errorf("Expected own snapshot at %q: %v", own, err)
	}
}

func TestSynchronizeContinuesPastBadPeer(t *testing.T) {
	mgr, cfg := newTestManager(t)

	badDir := filepath.Join(cfg.SyncDir, "mallory")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(badDir, "words"+SnapshotSuffix), "garbage\n")

	goodSnapshot := stageSnapshot(t, "words", "alice", 1,
		map[string]dict.Value{"aa \tfrom-alice": {Commits: 1}})
	goodDir := filepath.Join(cfg.SyncDir, "alice")
	if err := os.MkdirAll(goodDir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(goodSnapshot)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(goodDir, "words"+SnapshotSuffix), string(data))

	if err := mgr.Synchronize("words"); err == nil {
		t.Errorf("Expected Synchronize to report the failed peer")
	}

	// the good peer was still merged and the merged state still published
	_, records := readDict(t, cfg.UserDataDir, "words")
	if _, found := records["aa \tfrom-alice"]; !found {
		t.Errorf("Expected good peer's record despite bad peer")
	}
	own := filepath.Join(cfg.SyncDir, cfg.UserID, "words"+SnapshotSuffix)
	if _, err := os.Stat(own); err != nil {
		t.Errorf("Expected own snapshot despite bad peer: %v", err)
	}
}

func TestSynchronizeAllEmpty(t *testing.T) {
	mgr, cfg := newTestManager(t)
	if err := mgr.SynchronizeAll(); err != nil {
		t.Fatalf("SynchronizeAll over zero dictionaries failed: %v", err)
	}
	if _, err := os.Stat(cfg.SyncDir); err == nil {
		t.Errorf("Expected no side effects for zero dictionaries")
	}
}

func TestList(t *testing.T) {
	mgr, cfg := newTestManager(t)
	if got := mgr.List(); len(got) != 0 {
		t.Fatalf("Expected empty catalog, got %v", got)
	}

	stageDict(t, cfg.UserDataDir, "alpha", cfg.UserID, testVersion, 0, nil)
	stageDict(t, cfg.UserDataDir, "beta", cfg.UserID, testVersion, 0, nil)
	writeFile(t, filepath.Join(cfg.UserDataDir, "notes.txt"), "not a store\n")

	got := mgr.List()
	if len(got) != 2 {
		t.Fatalf("Expected 2 dictionaries, got %v", got)
	}
	want := map[string]bool{"alpha": true, "beta": true}
	for _, name := range got {
		if !want[name] {
			t.Errorf("Unexpected dictionary %q in catalog", name)
		}
	}
}

// --------------------------------------------------------------------------
// Upgrade
// --------------------------------------------------------------------------

func TestUpgradeLegacyDict(t *testing.T) {
	mgr, cfg := newTestManager(t)
	stageDict(t, cfg.UserDataDir, "legacy", cfg.UserID, "0.9.7", 2, map[string]dict.Value{
		"ab\tcd":  {Commits: 1, Dee: 0.5, Tick: 1}, // corrupted by the old writer
		"ok \tef": {Commits: 2, Dee: 0.5, Tick: 2},
	})

	if err := mgr.Upgrade("legacy"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	_, records := readDict(t, cfg.UserDataDir, "legacy")
	if _, found := records["ab \tcd"]; !found {
		t.Errorf("Expected corrupted key repaired during upgrade")
	}
	if _, found := records["ab\tcd"]; found {
		t.Errorf("Expected corrupted key %q gone after upgrade", "ab\tcd")
	}
	if _, found := records["ok \tef"]; !found {
		t.Errorf("Expected well-formed key to survive upgrade")
	}

	// the pre-upgrade state is quarantined
	quarantine := filepath.Join(cfg.UserDataDir, trashDirName, "legacy"+SnapshotSuffix)
	if _, err := os.Stat(quarantine); err != nil {
		t.Errorf("Expected quarantine snapshot at %q: %v", quarantine, err)
	}

	// the rebuilt dictionary carries the current creator version
	d := bolt.New("legacy", &bolt.DBOptions{Directory: cfg.UserDataDir})
	if err := d.OpenReadOnly(); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer d.Close()
	if got := d.CreatorVersion(); got != testVersion {
		t.Errorf("Expected creator version %q after upgrade, got %q", testVersion, got)
	}
}

func TestUpgradeCurrentDictIsNoop(t *testing.T) {
	mgr, cfg := newTestManager(t)
	stageDict(t, cfg.UserDataDir, "current", cfg.UserID, testVersion, 1,
		map[string]dict.Value{"abc \tentry": {Commits: 1}})

	if err := mgr.Upgrade("current"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.UserDataDir, trashDirName)); err == nil {
		t.Errorf("Expected no quarantine directory for an up-to-date dictionary")
	}
}
