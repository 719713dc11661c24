package hashtable

const hashSeed uint64 = 5381

// Hash is the djb2 string hash: h = h*33 + c for every byte, seeded with
// 5381. Overflow wraps modulo 2^64.
func Hash(key string) uint64 {
	h := hashSeed
	for i := 0; i < len(key); i++ {
		h = h<<5 + h + uint64(key[i])
	}
	return h
}

func bucketIndex(key string, capacity int) int {
	return int(Hash(key) % uint64(capacity))
}
