// Package uidhash derives the short public identifier of a job from its UID.
package uidhash

import (
	"encoding/base64"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Length is the number of characters of a public job hash. A 12-byte blake2b
// digest encodes to exactly 16 unpadded base64 characters.
const Length = 16

// Hash returns the URL-safe public hash of uid. The mapping is one-way.
func Hash(uid uuid.UUID) string {
	h, err := blake2b.New(12, nil)
	if err != nil {
		// Only reachable with a digest size outside 1..64.
		panic(err)
	}
	h.Write([]byte(uid.String()))
	s := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return s[:min(Length, len(s))]
}
