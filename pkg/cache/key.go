package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Key returns the cache key for an analysis of selection, found at location
// in the document at absPath whose full text is docText. Results carry
// positions, so equal text selected at two places keys differently. Fields
// are length-prefixed so that no two distinct tuples hash the same input.
func Key(absPath, selection, location, docText string) string {
	h := sha256.New()
	var n [8]byte
	for _, field := range []string{absPath, selection, location, docText} {
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
