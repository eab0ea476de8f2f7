// Package util contains helper functions used around the code.
package util

// In returns true if s is found in ss, false otherwise
func In(ss []string, s string) bool {
	for _, v := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// Strip0x removes a leading "0x" or "0X" from a hex string, if present.
// Node responses mix prefixed and bare hex freely.
func Strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
