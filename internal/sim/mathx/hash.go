package mathx

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash3 is a stateless seeded hash over three lattice coordinates. Grid
// generation uses it instead of an RNG so that a segment's fate does not depend
// on visiting order.
func Hash3(seed int64, a, b, c int) uint64 {
	ua := uint64(uint32(int32(a)))
	ub := uint64(uint32(int32(b)))
	uc := uint64(uint32(int32(c)))
	v := uint64(seed) ^ (ua * 0x9e3779b97f4a7c15) ^ (ub * 0xc2b2ae3d27d4eb4f) ^ (uc * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Permille maps a hash onto [0, 1000).
func Permille(h uint64) int {
	return int(h % 1000)
}

func ClampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}
