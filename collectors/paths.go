package collectors

import (
	"path/filepath"
	"strings"
)

// HasGlob reports whether p contains shell glob metacharacters.
func HasGlob(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// Within reports whether path is equal to, or lies beneath, pattern. A pattern
// containing glob metacharacters matches when it matches path or any of its
// ancestors.
func Within(path, pattern string) bool {
	path = filepath.Clean(path)
	pattern = filepath.Clean(pattern)

	if !HasGlob(pattern) {
		if pattern == "/" {
			return strings.HasPrefix(path, "/")
		}
		return path == pattern || strings.HasPrefix(path, pattern+"/")
	}

	for p := path; ; p = filepath.Dir(p) {
		if ok, _ := filepath.Match(pattern, p); ok {
			return true
		}
		if p == "/" || p == "." {
			return false
		}
	}
}
