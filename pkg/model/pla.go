package model

import (
	"fmt"
	"math"

	"learnedkv/pkg/common"
)

// ErrNotIncreasing is returned when points are not fed in strictly increasing key order.
var ErrNotIncreasing = fmt.Errorf("%w: points must be strictly increasing by key", common.ErrPrecondition)

// PLA builds one error-bounded linear segment at a time. It keeps the upper
// and lower convex hulls of the points seen since the segment began, and the
// rectangle whose diagonals bound the feasible slopes. When a new point
// leaves the feasible region the segment is closed and the point rejected.
//
// 最优分段线性近似 (O'Rourke)，一遍扫描，总代价 O(n)。
type PLA[K common.Key] struct {
	epsilon int64

	lower, upper           []point[K]
	lowerStart, upperStart int
	pointsInHull           int
	firstX, lastX          K
	rect                   [4]point[K]
}

func NewPLA[K common.Key](epsilon int) *PLA[K] {
	return &PLA[K]{epsilon: int64(epsilon)}
}

// Reset drops the current segment.
func (p *PLA[K]) Reset() {
	p.pointsInHull = 0
}

// Len returns the number of points covered by the open segment.
func (p *PLA[K]) Len() int {
	return p.pointsInHull
}

// Add tries to extend the open segment with (x, y). It returns false when
// the point does not fit, in which case the caller must close the segment
// with Segment, Reset and add the point again.
func (p *PLA[K]) Add(x K, y int64) (bool, error) {
	if p.pointsInHull > 0 && x <= p.lastX {
		return false, ErrNotIncreasing
	}
	p.lastX = x

	p1 := point[K]{x: x, y: satAdd(y, p.epsilon)}
	p2 := point[K]{x: x, y: satSub(y, p.epsilon)}

	if p.pointsInHull == 0 {
		p.firstX = x
		p.rect[0] = p1
		p.rect[1] = p2
		p.upper = append(p.upper[:0], p1)
		p.lower = append(p.lower[:0], p2)
		p.upperStart, p.lowerStart = 0, 0
		p.pointsInHull++
		return true, nil
	}

	if p.pointsInHull == 1 {
		p.rect[2] = p2
		p.rect[3] = p1
		p.upper = append(p.upper, p1)
		p.lower = append(p.lower, p2)
		p.pointsInHull++
		return true, nil
	}

	slope1 := p.rect[2].sub(p.rect[0])
	slope2 := p.rect[3].sub(p.rect[1])
	outsideLine1 := cmpSlope(p1.sub(p.rect[2]), slope1) < 0
	outsideLine2 := cmpSlope(p2.sub(p.rect[3]), slope2) > 0
	if outsideLine1 || outsideLine2 {
		p.pointsInHull = 0
		return false, nil
	}

	if cmpSlope(p1.sub(p.rect[1]), slope2) < 0 {
		// 更新最大斜率
		minSlope := p.lower[p.lowerStart].sub(p1)
		minIdx := p.lowerStart
		for i := p.lowerStart + 1; i < len(p.lower); i++ {
			val := p.lower[i].sub(p1)
			if cmpSlope(val, minSlope) > 0 {
				break
			}
			minSlope = val
			minIdx = i
		}
		p.rect[1] = p.lower[minIdx]
		p.rect[3] = p1
		p.lowerStart = minIdx

		end := len(p.upper)
		for end >= p.upperStart+2 && cross(p.upper[end-2], p.upper[end-1], p1) <= 0 {
			end--
		}
		p.upper = append(p.upper[:end], p1)
	}

	if cmpSlope(p2.sub(p.rect[0]), slope1) > 0 {
		// 更新最小斜率
		maxSlope := p.upper[p.upperStart].sub(p2)
		maxIdx := p.upperStart
		for i := p.upperStart + 1; i < len(p.upper); i++ {
			val := p.upper[i].sub(p2)
			if cmpSlope(val, maxSlope) < 0 {
				break
			}
			maxSlope = val
			maxIdx = i
		}
		p.rect[0] = p.upper[maxIdx]
		p.rect[2] = p2
		p.upperStart = maxIdx

		end := len(p.lower)
		for end >= p.lowerStart+2 && cross(p.lower[end-2], p.lower[end-1], p2) >= 0 {
			end--
		}
		p.lower = append(p.lower[:end], p2)
	}

	p.pointsInHull++
	return true, nil
}

func (p *PLA[K]) onePoint() bool {
	return p.pointsInHull == 1 || (p.rect[0] == p.rect[2] && p.rect[1] == p.rect[3])
}

// Segment closes the open segment: the line passes through the intersection
// of the rectangle diagonals with the mean of the extreme feasible slopes.
func (p *PLA[K]) Segment() Segment[K] {
	if p.onePoint() {
		return Segment[K]{
			Key:       p.firstX,
			Slope:     0,
			Intercept: midpoint(p.rect[0].y, p.rect[1].y),
		}
	}

	ix, iy := p.intersection()
	minSlope := p.rect[2].sub(p.rect[0]).float()
	maxSlope := p.rect[3].sub(p.rect[1]).float()
	s := (minSlope + maxSlope) / 2
	if s < 0 {
		s = 0
	}
	c := iy - ix*s
	if math.IsNaN(c) || math.IsInf(c, 0) {
		// 退回最大斜率对角线，它本身是可行直线
		s = maxSlope
		c = float64(p.rect[1].y) - keyDelta(p.rect[1].x, p.firstX).float()*s
	}
	return Segment[K]{
		Key:       p.firstX,
		Slope:     s,
		Intercept: roundSat(c),
	}
}

// intersection returns the crossing point of the two diagonals, with x
// relative to the first key of the segment.
func (p *PLA[K]) intersection() (float64, float64) {
	p0, p1, p2, p3 := p.rect[0], p.rect[1], p.rect[2], p.rect[3]
	slope1 := p2.sub(p0)
	slope2 := p3.sub(p1)
	x0 := keyDelta(p0.x, p.firstX).float()
	if cmpSlope(slope1, slope2) == 0 {
		return x0, float64(p0.y)
	}

	p0p1 := p1.sub(p0)
	a := diff(mul(slope1.dx, slope2.dy), mul(slope1.dy, slope2.dx))
	b := diff(mul(p0p1.dx, slope2.dy), mul(p0p1.dy, slope2.dx)) / a
	return x0 + b*slope1.dx.float(), float64(p0.y) + b*slope1.dy.float()
}

// roundSat rounds f to the nearest int64, saturating at the range ends.
func roundSat(f float64) int64 {
	r := math.Round(f)
	switch {
	case math.IsNaN(r):
		return 0
	case r >= 0x1p63:
		return math.MaxInt64
	case r < -0x1p63:
		return math.MinInt64
	}
	return int64(r)
}

func midpoint(a, b int64) int64 {
	return a/2 + b/2 + (a%2+b%2)/2
}

func satAdd(y, eps int64) int64 {
	if y > math.MaxInt64-eps {
		return math.MaxInt64
	}
	return y + eps
}

func satSub(y, eps int64) int64 {
	if y < math.MinInt64+eps {
		return math.MinInt64
	}
	return y - eps
}
