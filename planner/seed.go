package planner

// Salts keep the streams for different decisions independent.
const (
	saltMotion     = 0x6d6f74
	saltTransition = 0x747261
	saltJitter     = 0x6a6974
	saltRotation   = 0x726f74
)

// pick returns a value in [0, n) that depends only on seed and parts.
func pick(n int, seed int64, parts ...int) int {
	if n <= 1 {
		return 0
	}
	return int(mix(seed, parts...) % uint64(n))
}

func mix(seed int64, parts ...int) uint64 {
	x := splitmix(uint64(seed))
	for _, p := range parts {
		x = splitmix(x ^ uint64(int64(p)))
	}
	return x
}

// splitmix is the SplitMix64 finalizer.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
