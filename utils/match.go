package utils

// Glob reports whether value matches pattern using shell-style glob
// semantics: '*' matches any run of characters (including none) and '?'
// matches exactly one character. Every other character is literal; there is
// no escaping and no character classes.
func Glob(value, pattern string) bool {
	vi, pi := 0, 0
	star, mark := -1, 0

	for vi < len(value) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == value[vi]):
			vi++
			pi++
		case pi < len(pattern) && pattern[pi] == '*':
			// remember the star so we can retry with a longer match
			star = pi
			mark = vi
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			vi = mark
		default:
			return false
		}
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
