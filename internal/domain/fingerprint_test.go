package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_StripsVolatileParams(t *testing.T) {
	base := Fingerprint("https://example.com/watch?v=abc123")

	withTracking := Fingerprint("https://example.com/watch?v=abc123&utm_source=feed&fbclid=xyz")
	assert.Equal(t, base, withTracking)

	withOffset := Fingerprint("https://example.com/watch?v=abc123&t=42")
	assert.Equal(t, base, withOffset)
}

func TestFingerprint_QueryOrderIndependent(t *testing.T) {
	a := Fingerprint("https://example.com/watch?v=abc&list=pl1")
	b := Fingerprint("https://example.com/watch?list=pl1&v=abc")
	assert.Equal(t, a, b)
}

func TestFingerprint_IgnoresFragmentAndHostCase(t *testing.T) {
	a := Fingerprint("https://Example.COM/watch?v=abc#comments")
	b := Fingerprint("https://example.com/watch?v=abc")
	assert.Equal(t, a, b)
}

func TestFingerprint_DistinctResources(t *testing.T) {
	a := Fingerprint("https://example.com/watch?v=abc")
	b := Fingerprint("https://example.com/watch?v=def")
	assert.NotEqual(t, a, b)
}

func TestFingerprint_StableForSameInput(t *testing.T) {
	url := "https://example.com/videos/1.mp4"
	assert.Equal(t, Fingerprint(url), Fingerprint(url))
	assert.Len(t, Fingerprint(url), 40)
}
