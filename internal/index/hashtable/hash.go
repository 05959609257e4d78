package hashtable

// stringPrime is the multiplier of the polynomial string hash.
const stringPrime = 31

// HashUint32 maps an integer key by modulo. The distribution is only as good
// as the bucket count's independence from the key structure, so callers
// should prefer prime bucket counts.
func HashUint32(key uint32, bucketCount uint32) uint32 {
	return key % bucketCount
}

// HashString is the polynomial accumulator h = (h*31 + b) mod n, evaluated
// byte by byte from the left. The running value is kept in 64 bits so the
// multiplication cannot wrap for any 32-bit bucket count.
func HashString(key string, bucketCount uint32) uint32 {
	n := uint64(bucketCount)
	var h uint64
	for i := 0; i < len(key); i++ {
		h = (h*stringPrime + uint64(key[i])) % n
	}
	return uint32(h)
}
