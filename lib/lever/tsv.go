package lever

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/udict/udict/lib/dict"
)

// --------------------------------------------------------------------------
// Text Export / Import
// --------------------------------------------------------------------------

// Export streams every record of the dictionary to a tab-separated text file
// (entry, code sequence, usage count) and returns the number of entries
// written. Tombstoned records are exported with their negative count so a
// later import preserves the deletion.
func (m *Manager) Export(dictName, textFile string) (int, error) {
	d := m.newDB(dictName)
	if err := d.OpenReadOnly(); err != nil {
		return -1, fmt.Errorf("export %q: %w", dictName, err)
	}
	defer d.Close()
	if !d.IsUserDB() {
		return -1, fmt.Errorf("export %q: not a user dictionary", dictName)
	}

	f, err := os.Create(textFile)
	if err != nil {
		return -1, fmt.Errorf("export %q: %w", dictName, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# uDict user dictionary export\n# dictionary: %s\n", dictName)

	a, err := d.Query("")
	if err != nil {
		return -1, fmt.Errorf("export %q: %w", dictName, err)
	}
	defer a.Close()
	a.Jump(" ") // skip metadata

	numEntries := 0
	for {
		key, raw, ok := a.Next()
		if !ok {
			break
		}
		code, entry, ok := dict.SplitKey(key)
		if !ok {
			continue
		}
		v := dict.UnpackValue(raw)
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\n", entry, code, v.Commits); err != nil {
			return -1, fmt.Errorf("export %q: %w", dictName, err)
		}
		numEntries++
	}
	if err := w.Flush(); err != nil {
		return -1, fmt.Errorf("export %q: %w", dictName, err)
	}
	m.logger.Debugf("%d entries saved", numEntries)
	entriesExported.Add(numEntries)
	return numEntries, nil
}

// Import bulk-loads a tab-separated text file into the dictionary and returns
// the number of entries written. Blank lines and #-comments are skipped; a
// line needs at least entry text and a code sequence; the optional third
// field is the usage count, defaulting to zero when absent or unparsable.
//
// A positive imported count takes max against the stored one; a negative
// count is an explicit delete marker and replaces the stored count outright.
// Imported records are not timestamped against the dictionary's clock.
func (m *Manager) Import(dictName, textFile string) (int, error) {
	d := m.newDB(dictName)
	if err := d.Open(); err != nil {
		return -1, fmt.Errorf("import %q: %w", dictName, err)
	}
	defer d.Close()
	if !d.IsUserDB() {
		return -1, fmt.Errorf("import %q: not a user dictionary", dictName)
	}

	f, err := os.Open(textFile)
	if err != nil {
		return -1, fmt.Errorf("import %q: %w", dictName, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	numEntries := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		// skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		row := strings.Split(line, "\t")
		if len(row) < 2 || row[0] == "" || strings.TrimSpace(row[1]) == "" {
			m.logger.Warnf("invalid entry at line %d", lineNo)
			continue
		}
		key := dict.BuildKey(row[1], row[0])
		commits := 0
		if len(row) >= 3 && row[2] != "" {
			if c, err := strconv.Atoi(strings.TrimSpace(row[2])); err == nil {
				commits = c
			}
		}
		var v dict.Value
		if stored, found := d.Fetch(key); found {
			v.Unpack(stored)
		}
		if commits > 0 {
			if commits > v.Commits {
				v.Commits = commits
			}
		} else if commits < 0 { // mark as deleted
			v.Commits = commits
		}
		if d.Update(key, v.Pack()) {
			numEntries++
		}
	}
	if err := scanner.Err(); err != nil {
		return -1, fmt.Errorf("import %q: %w", dictName, err)
	}
	entriesImported.Add(numEntries)
	return numEntries, nil
}
