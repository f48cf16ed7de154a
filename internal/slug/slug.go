package slug

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var maxIdx = big.NewInt(int64(len(charset)))

// Generate returns a random 6-character Base62 string, used when a split test
// is created without an explicit slug.
func Generate() (string, error) {
	b := make([]byte, 6)
	for i := range b {
		n, err := rand.Int(rand.Reader, maxIdx)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}

// Normalize collapses s to a lowercase URL-safe token: runs of anything
// outside [a-z0-9] become single hyphens, leading/trailing hyphens are
// trimmed.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
