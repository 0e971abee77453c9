package table

// NoHash is returned by Hash for a nil or empty key.
const NoHash = -1

// NoSlot is returned by SlotIndex when a key cannot be placed.
const NoSlot = -1

// shortKeyLen is the longest key that is hashed over all of its bytes.
const shortKeyLen = 5

// Hash computes the slot hash of a key. Keys of up to five bytes hash to the sum of all
// bytes, longer keys to the sum of the first two and the last three bytes.
// The hash is deterministic across processes, which keeps replicas in the same layout.
func Hash(key *string) int {
	if key == nil || len(*key) == 0 {
		return NoHash
	}
	k := *key
	sum := 0
	if len(k) <= shortKeyLen {
		for i := 0; i < len(k); i++ {
			sum += int(k[i])
		}
		return sum
	}
	n := len(k)
	return int(k[0]) + int(k[1]) + int(k[n-3]) + int(k[n-2]) + int(k[n-1])
}

// SlotIndex maps a key to a slot of a table with the given number of slots.
func SlotIndex(key *string, slots int) int {
	h := Hash(key)
	if h == NoHash || slots <= 0 {
		return NoSlot
	}
	return h % slots
}
