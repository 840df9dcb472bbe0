package dialect

import (
	"net/url"
	"path/filepath"
	"strings"
)

// fileURI converts a bare filesystem path into an absolute file:// URI.
func fileURI(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	u := url.URL{Scheme: "file", Path: abs}
	return u.String()
}

// ensureFileURI leaves anything already carrying a URI scheme untouched and
// converts bare paths, per spec §4.5.1 ("any bare filesystem path is
// converted to a file:// URI").
func ensureFileURI(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	return fileURI(p)
}
