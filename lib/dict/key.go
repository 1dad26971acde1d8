package dict

import "strings"

// --------------------------------------------------------------------------
// Record Keys
// --------------------------------------------------------------------------

// Record keys have the form "<normalized code> \t<entry>": the space before
// the tab separator is mandatory. Keys without a tab, or with the tab in
// first position, do not represent dictionary entries.

// BuildKey constructs a record key from a code sequence and an entry text.
// The code is whitespace-normalized: leading/trailing whitespace is dropped
// and runs of separators collapse to a single space.
func BuildKey(code, entry string) string {
	return strings.Join(strings.Fields(code), " ") + " \t" + entry
}

// SanitizeKey repairs the missing space before the tab separator that a
// known-defective writer produced. The second return value is false for keys
// that are not dictionary entries (no separator, or separator first), which
// merge scans skip entirely.
func SanitizeKey(key string) (string, bool) {
	tab := strings.IndexByte(key, '\t')
	if tab <= 0 {
		return key, false
	}
	if key[tab-1] != ' ' {
		key = key[:tab] + " " + key[tab:]
	}
	return key, true
}

// SplitKey breaks a well-formed record key into its code and entry parts.
func SplitKey(key string) (code, entry string, ok bool) {
	tab := strings.IndexByte(key, '\t')
	if tab <= 0 {
		return "", "", false
	}
	return strings.TrimRight(key[:tab], " "), key[tab+1:], true
}
