package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashLen is the length of a hex-encoded Hash.
const HashLen = sha256.Size * 2

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content".
// This is the digest an object is addressed by; two objects with identical
// type and content always hash to the same value.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// IsHexHash reports whether s could be a full or abbreviated object hash:
// non-empty, no longer than a full digest, all lowercase hex digits.
func IsHexHash(s string) bool {
	if len(s) == 0 || len(s) > HashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
