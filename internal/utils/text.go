package utils

// Ellipsis marks text that was cut by Truncate.
const Ellipsis = "..."

// Truncate keeps the first max runes of s and appends Ellipsis when anything was dropped.
func Truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + Ellipsis
}
