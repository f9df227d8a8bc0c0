package geometry

// XorShift32 is the 13/17/5 xorshift generator used by the shuffle seed.
type XorShift32 struct {
	state uint32
}

// NewXorShift32 creates a generator. A zero seed is replaced by 1.
func NewXorShift32(seed uint32) *XorShift32 {
	if seed == 0 {
		seed = 1
	}
	return &XorShift32{state: seed}
}

// Next advances the generator and returns the new state.
func (r *XorShift32) Next() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}
