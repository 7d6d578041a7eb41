package model

import (
	"math/bits"

	"learnedkv/pkg/common"
)

// delta is a signed difference kept as sign and magnitude, so the distance
// between any two 64-bit keys fits without overflow.
type delta struct {
	neg bool
	mag uint64
}

func keyDelta[K common.Key](a, b K) delta {
	if a >= b {
		return delta{mag: uint64(a) - uint64(b)}
	}
	return delta{neg: true, mag: uint64(b) - uint64(a)}
}

func posDelta(a, b int64) delta {
	if a >= b {
		return delta{mag: uint64(a) - uint64(b)}
	}
	return delta{neg: true, mag: uint64(b) - uint64(a)}
}

func (d delta) float() float64 {
	f := float64(d.mag)
	if d.neg {
		return -f
	}
	return f
}

// wide is a signed 128-bit product.
type wide struct {
	neg    bool
	hi, lo uint64
}

func mul(a, b delta) wide {
	hi, lo := bits.Mul64(a.mag, b.mag)
	if hi == 0 && lo == 0 {
		return wide{}
	}
	return wide{neg: a.neg != b.neg, hi: hi, lo: lo}
}

func cmpWide(a, b wide) int {
	if a.neg != b.neg {
		if a.neg {
			return -1
		}
		return 1
	}
	c := 0
	switch {
	case a.hi < b.hi:
		c = -1
	case a.hi > b.hi:
		c = 1
	case a.lo < b.lo:
		c = -1
	case a.lo > b.lo:
		c = 1
	}
	if a.neg {
		return -c
	}
	return c
}

func (w wide) float() float64 {
	f := float64(w.hi)*0x1p64 + float64(w.lo)
	if w.neg {
		return -f
	}
	return f
}

// diff returns a-b, computed exactly before the single rounding to float64,
// so nearly equal products do not cancel to zero.
func diff(a, b wide) float64 {
	if a.neg != b.neg {
		return a.float() - b.float()
	}
	x, y := a, b
	neg := a.neg
	if x.hi < y.hi || (x.hi == y.hi && x.lo < y.lo) {
		x, y = y, x
		neg = !neg
	}
	lo, borrow := bits.Sub64(x.lo, y.lo, 0)
	hi, _ := bits.Sub64(x.hi, y.hi, borrow)
	return wide{neg: neg, hi: hi, lo: lo}.float()
}

// slope is dy/dx kept as an exact fraction.
type slope struct {
	dx, dy delta
}

// cmpSlope compares two slopes by cross multiplication. Both dx must have
// the same sign, which holds for every comparison the hull performs.
func cmpSlope(a, b slope) int {
	return cmpWide(mul(a.dy, b.dx), mul(b.dy, a.dx))
}

func (s slope) float() float64 {
	if s.dx.mag == 0 {
		return 0
	}
	return s.dy.float() / s.dx.float()
}

type point[K common.Key] struct {
	x K
	y int64
}

func (p point[K]) sub(q point[K]) slope {
	return slope{dx: keyDelta(p.x, q.x), dy: posDelta(p.y, q.y)}
}

// cross returns the sign of (a-o) x (b-o).
func cross[K common.Key](o, a, b point[K]) int {
	oa, ob := a.sub(o), b.sub(o)
	return cmpWide(mul(oa.dx, ob.dy), mul(oa.dy, ob.dx))
}
