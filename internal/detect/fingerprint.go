package detect

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint identifies a prompt by the content of its normalized text.
// Two buffers that normalize to the same text always produce the same
// fingerprint; the rate limiter relies on this to recognize repeats.
type Fingerprint [md5.Size]byte

// FingerprintOf hashes the normalized form of text. MD5 is used as a
// 128-bit content digest, not for security.
func FingerprintOf(text string) Fingerprint {
	return md5.Sum([]byte(Normalize(text)))
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}
