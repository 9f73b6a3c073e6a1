package httpds

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// HashString returns a stable 16-digit hex digest of s.
func HashString(s string) string {
	h := strconv.FormatUint(xxh3.HashString(s), 16)
	return strings.Repeat("0", 16-len(h)) + h
}

// SafeFilenameFromURL derives a filesystem-safe base name from a URL for
// artifacts written next to a remote export. It uses the last path segment
// without its extension, then the query string, and falls back to a hash of
// the whole URL. Runs of other characters collapse to "_".
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, cand := range []string{base, u.RawQuery} {
		clean := strings.Trim(filenameCleaner.ReplaceAllString(cand, "_"), "_")
		if clean != "" {
			return clean
		}
	}
	return HashString(rawURL)
}
