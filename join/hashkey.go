package join

import "github.com/OneOfOne/xxhash"

// HashKeyBytes hashes a raw join-key encoding (e.g. a Record field's raw
// bytes) into the uint64 space every HashTable and bloom filter here
// operates on. Grounded on the teacher's xxhash dependency, already used
// for content addressing elsewhere in the stack.
func HashKeyBytes(b []byte) uint64 {
	return xxhash.Checksum64(b)
}
