package testing

import (
	"path/filepath"
	"testing"

	"github.com/udict/udict/lib/db"
)

// DBFactory is a function that creates a new (not yet opened) UserDB handle
// for the given dictionary name
type DBFactory func(name string) db.UserDB

// RunUserDBTests runs a conformance test suite for a UserDB implementation.
func RunUserDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("OpenClose", func(t *testing.T) {
			testOpenClose(t, factory)
		})

		t.Run("Fetch&Update", func(t *testing.T) {
			testFetchUpdate(t, factory)
		})

		t.Run("Metadata", func(t *testing.T) {
			testMetadata(t, factory)
		})

		t.Run("OrderedQuery", func(t *testing.T) {
			testOrderedQuery(t, factory)
		})

		t.Run("BackupRestore", func(t *testing.T) {
			testBackupRestore(t, factory)
		})

		t.Run("ConcurrentOpen", func(t *testing.T) {
			testConcurrentOpen(t, factory)
		})

		t.Run("ReadOnly", func(t *testing.T) {
			testReadOnly(t, factory)
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testOpenClose(t *testing.T, factory DBFactory) {
	d := factory("open-close")

	if d.Exists() {
		t.Errorf("Expected store not to exist before first Open")
	}
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !d.Exists() {
		t.Errorf("Expected store to exist after Open")
	}
	if !d.IsUserDB() {
		t.Errorf("Expected fresh store to be tagged as user dictionary")
	}
	if got := d.DBName(); got != "open-close" {
		t.Errorf("Expected embedded name %q, got %q", "open-close", got)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// closing twice is a no-op
	if err := d.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	if err := d.OpenReadOnly(); err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer d.Close()
	if !d.IsUserDB() {
		t.Errorf("Expected store to stay a user dictionary after reopen")
	}
}

func testFetchUpdate(t *testing.T, factory DBFactory) {
	d := factory("fetch-update")
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	key := "abc \tentry"
	value := []byte("c=1 d=0.5 t=3")

	if !d.Update(key, value) {
		t.Fatalf("Update failed")
	}
	got, found := d.Fetch(key)
	if !found {
		t.Fatalf("Expected key %q to exist after Update", key)
	}
	if string(got) != string(value) {
		t.Errorf("Expected value %q, got %q", value, got)
	}

	if _, found := d.Fetch("missing \tkey"); found {
		t.Errorf("Expected missing key not to be found")
	}
}

func testMetadata(t *testing.T, factory DBFactory) {
	d := factory("metadata")
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	if got := d.TickCount(); got != 0 {
		t.Errorf("Expected fresh store at tick 0, got %d", got)
	}
	if !d.MetaUpdate(db.MetaTick, "42") {
		t.Fatalf("MetaUpdate failed")
	}
	if got := d.TickCount(); got != 42 {
		t.Errorf("Expected tick 42, got %d", got)
	}

	// regenerating metadata must not reset the clock
	if err := d.CreateMetadata(); err != nil {
		t.Fatalf("CreateMetadata failed: %v", err)
	}
	if got := d.TickCount(); got != 42 {
		t.Errorf("Expected tick 42 after CreateMetadata, got %d", got)
	}
	if got, found := d.MetaFetch(db.MetaTick); !found || got != "42" {
		t.Errorf("Expected MetaFetch %q = %q, got %q (found=%v)", db.MetaTick, "42", got, found)
	}
}

func testOrderedQuery(t *testing.T, factory DBFactory) {
	d := factory("ordered-query")
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	// inserted out of order on purpose
	keys := []string{"b \ttwo", "a \tone", "c \tthree"}
	for _, k := range keys {
		if !d.Update(k, []byte("c=1 d=0 t=0")) {
			t.Fatalf("Update %q failed", k)
		}
	}

	a, err := d.Query("")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer a.Close()
	a.Jump(" ")

	var got []string
	for {
		k, _, ok := a.Next()
		if !ok {
			break
		}
		got = append(got, k)
	}
	want := []string{"a \tone", "b \ttwo", "c \tthree"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entry keys, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected key %q at position %d, got %q", want[i], i, got[i])
		}
	}

	// prefix-scoped query
	p, err := d.Query("b")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer p.Close()
	k, _, ok := p.Next()
	if !ok || k != "b \ttwo" {
		t.Errorf("Expected prefix query to yield %q, got %q (ok=%v)", "b \ttwo", k, ok)
	}
	if _, _, ok := p.Next(); ok {
		t.Errorf("Expected prefix query to be exhausted")
	}
}

func testBackupRestore(t *testing.T, factory DBFactory) {
	src := factory("backup-src")
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	key := "abc \tentry"
	value := []byte("c=2 d=1 t=5")
	if !src.Update(key, value) {
		t.Fatalf("Update failed")
	}
	src.MetaUpdate(db.MetaTick, "5")

	snapshot := filepath.Join(t.TempDir(), "backup-src.snapshot")
	if err := src.Backup(snapshot); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	dst := factory("backup-dst")
	if err := dst.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dst.Close()
	if err := dst.Restore(snapshot); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	// a restored store carries the snapshot's identity, not the handle's
	if got := dst.DBName(); got != "backup-src" {
		t.Errorf("Expected embedded name %q after restore, got %q", "backup-src", got)
	}
	if got := dst.TickCount(); got != 5 {
		t.Errorf("Expected tick 5 after restore, got %d", got)
	}
	got, found := dst.Fetch(key)
	if !found || string(got) != string(value) {
		t.Errorf("Expected record %q after restore, got %q (found=%v)", value, got, found)
	}
}

func testConcurrentOpen(t *testing.T, factory DBFactory) {
	d1 := factory("concurrent")
	if err := d1.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	d2 := factory("concurrent")
	if err := d2.Open(); err == nil {
		_ = d2.Close()
		t.Errorf("Expected second Open of the same store to fail")
	}

	if err := d1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d2.Open(); err != nil {
		t.Fatalf("Open after Close failed: %v", err)
	}
	_ = d2.Close()
}

func testReadOnly(t *testing.T, factory DBFactory) {
	missing := factory("read-only-missing")
	if err := missing.OpenReadOnly(); err == nil {
		_ = missing.Close()
		t.Errorf("Expected OpenReadOnly of a missing store to fail")
	}

	d := factory("read-only")
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	key := "abc \tentry"
	if !d.Update(key, []byte("c=1 d=0 t=0")) {
		t.Fatalf("Update failed")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := d.OpenReadOnly(); err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer d.Close()
	if d.Update(key, []byte("c=9 d=0 t=0")) {
		t.Errorf("Expected Update on a read-only handle to fail")
	}
	if _, found := d.Fetch(key); !found {
		t.Errorf("Expected Fetch to work on a read-only handle")
	}
}

func testRemove(t *testing.T, factory DBFactory) {
	d := factory("remove")
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := d.Remove(); err == nil {
		t.Errorf("Expected Remove of an open store to fail")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if d.Exists() {
		t.Errorf("Expected store not to exist after Remove")
	}
}
