// Package pathutil holds request path checks shared by the file serving code.
package pathutil

import (
	"path"
	"strings"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// CleanURLPath normalizes a request path to a rooted, slash-separated form.
// A trailing slash is kept because it selects directory index files.
// Paths with NUL bytes, backslashes, ".." anywhere or dot segments are
// rejected rather than cleaned.
func CleanURLPath(p string) (string, bool) {
	if p == "" {
		return "/", true
	}
	if strings.ContainsAny(p, "\x00\\") || strings.Contains(p, "..") || HasDotSegments(p) {
		return "", false
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := path.Clean(p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean, true
}
