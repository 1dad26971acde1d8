package dict

import (
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Record Value
// --------------------------------------------------------------------------

// maxDee caps the weight on decode; legacy writers occasionally produced
// runaway values.
const maxDee = 10000.0

// Value is the decoded form of a dictionary record's stored value.
type Value struct {
	// Commits counts how often the entry was chosen. A negative value is a
	// tombstone marking deliberate deletion; its magnitude carries no
	// further meaning.
	Commits int

	// Dee is the record's decayed frequency/freshness weight.
	Dee float64

	// Tick is the dictionary's logical clock at the record's last write.
	Tick uint64
}

// Pack encodes the value into its compact persisted form, e.g. "c=3 d=0.5 t=7".
func (v *Value) Pack() []byte {
	var sb strings.Builder
	sb.WriteString("c=")
	sb.WriteString(strconv.Itoa(v.Commits))
	sb.WriteString(" d=")
	sb.WriteString(strconv.FormatFloat(v.Dee, 'g', -1, 64))
	sb.WriteString(" t=")
	sb.WriteString(strconv.FormatUint(v.Tick, 10))
	return []byte(sb.String())
}

// Unpack decodes a persisted value. Fields that are absent or fail to parse
// keep their zero value; a record with corrupt metadata must not block a
// merge.
func (v *Value) Unpack(data []byte) {
	for _, field := range strings.Split(string(data), " ") {
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			continue
		}
		val := field[eq+1:]
		switch field[:eq] {
		case "c":
			if c, err := strconv.Atoi(val); err == nil {
				v.Commits = c
			}
		case "d":
			if d, err := strconv.ParseFloat(val, 64); err == nil {
				if d > maxDee {
					d = maxDee
				}
				v.Dee = d
			}
		case "t":
			if t, err := strconv.ParseUint(val, 10, 64); err == nil {
				v.Tick = t
			}
		}
	}
}

// UnpackValue decodes data into a fresh Value.
func UnpackValue(data []byte) Value {
	var v Value
	v.Unpack(data)
	return v
}
