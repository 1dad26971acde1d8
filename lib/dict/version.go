package dict

import (
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Version Comparison
// --------------------------------------------------------------------------

// CompareVersions compares two dotted version strings segment by segment and
// returns -1, 0 or +1. Segments compare numerically where both parse as
// integers ("0.10" > "0.9") and lexically otherwise; missing segments count
// as zero.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		sa, sb := "0", "0"
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		default:
			if sa != sb {
				if sa < sb {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}
