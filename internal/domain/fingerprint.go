package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
)

// volatileParams are query parameters that vary between requests to the same
// resource (tracking tokens, playback offsets) and must not affect the
// fingerprint.
var volatileParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"si":           {},
	"feature":      {},
	"t":            {},
}

// Fingerprint returns a stable hex token for a URL, used to correlate jobs
// targeting the same resource and to address their output files on disk.
// Volatile query parameters and the fragment are stripped before hashing;
// the remaining query is re-encoded in sorted order so parameter order does
// not change the result.
func Fingerprint(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		sum := sha1.Sum([]byte(raw))
		return hex.EncodeToString(sum[:])
	}

	q := u.Query()
	for param := range q {
		if _, ok := volatileParams[param]; ok {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	sum := sha1.Sum([]byte(u.String()))
	return hex.EncodeToString(sum[:])
}
