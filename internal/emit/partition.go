package emit

import "hash/fnv"

// partitionFor maps key to one of n partitions using FNV-1a, the
// deterministic, allocation-free stdlib hash SPEC_FULL.md §13 settles on
// (no third-party hashing library appears anywhere in the retrieved pack
// for this purpose, and kafka-go itself does not impose a partitioner).
func partitionFor(key string, n int) int32 {
	if n <= 0 {
		return 0
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return int32(h.Sum32() % uint32(n)) //nolint:gosec // n is always a small, positive partition count
}
