package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashedName returns a deterministic, filesystem-safe name for key: the hex
// sha256 of key, split as "ab/cdef..." to keep directories small.
func HashedName(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return h[:2] + "/" + h[2:]
}
