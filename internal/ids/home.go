package ids

import "github.com/cespare/xxhash/v2"

// HomeNode returns the index, in [0, cloudSize), of the cluster node that
// owns k: a fixed, deterministic function of the chunk key, so every node
// agrees on ownership without coordination.
func HomeNode(k Key, cloudSize int) int {
	if cloudSize <= 0 {
		return 0
	}
	return int(xxhash.Sum64(k) % uint64(cloudSize))
}

// IsHome reports whether k is homed on the node at index self within a
// cluster of size cloudSize -- the only question the map/reduce core ever
// asks of chunk ownership.
func IsHome(k Key, self, cloudSize int) bool {
	return HomeNode(k, cloudSize) == self
}
