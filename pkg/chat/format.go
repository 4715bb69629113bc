package chat

import (
	"math"
	"strconv"
)

// groupDigits renders a rounded amount with thousands separators for replies,
// e.g. 1234567.8 -> "1,234,568".
func groupDigits(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}

	s := strconv.FormatInt(n, 10)
	if len(s) > 3 {
		var b []byte
		for i, c := range []byte(s) {
			if i > 0 && (len(s)-i)%3 == 0 {
				b = append(b, ',')
			}
			b = append(b, c)
		}
		s = string(b)
	}
	if neg {
		return "-" + s
	}
	return s
}

// round1 rounds person-days to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
