package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Domain-specific hash types
type (
	// BatchFingerprint identifies one immutable batch; scopes metric caches.
	BatchFingerprint Hash
	// ConfigSignature is the identity of an expectation configuration inside a suite.
	ConfigSignature Hash
)

func (h BatchFingerprint) String() string { return Hash(h).String() }
func (h ConfigSignature) String() string  { return Hash(h).String() }

// ComputeMapHash hashes a string-keyed map deterministically (sorted keys)
func ComputeMapHash(m map[string]interface{}) Hash {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", m[key]))
	}

	return NewHash([]byte(data.String()))
}
