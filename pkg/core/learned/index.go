package learned

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"strconv"
	"time"

	"learnedkv/pkg/common"
	"learnedkv/pkg/model"
)

const (
	DefaultEpsilon          = 64
	DefaultEpsilonRecursive = 4

	// 窗口小于该值时线性扫描
	linearSearchThreshold = 16
)

var (
	ErrInvalidEpsilon = fmt.Errorf("%w: epsilon must be positive", common.ErrConfiguration)
	ErrUnsorted       = fmt.Errorf("%w: keys must be sorted in non-decreasing order", common.ErrPrecondition)
)

type Options struct {
	// Epsilon bounds the prediction error over the data keys.
	Epsilon int
	// EpsilonRecursive bounds the prediction error of the upper levels.
	EpsilonRecursive int
	// Parallelism > 1 segments level 0 in that many partitions.
	Parallelism int
}

func DefaultOptions() Options {
	return Options{
		Epsilon:          DefaultEpsilon,
		EpsilonRecursive: DefaultEpsilonRecursive,
		Parallelism:      1,
	}
}

func (o Options) validate() error {
	if o.Epsilon <= 0 {
		return fmt.Errorf("%w (epsilon=%d)", ErrInvalidEpsilon, o.Epsilon)
	}
	if o.EpsilonRecursive <= 0 {
		return fmt.Errorf("%w (epsilon_recursive=%d)", ErrInvalidEpsilon, o.EpsilonRecursive)
	}
	return nil
}

// Index is an immutable learned index over a sorted key slice. It is safe
// for concurrent use by any number of readers.
type Index[K common.Key] struct {
	keys             []K
	epsilon          int
	epsilonRecursive int
	segments         []model.Segment[K]
	offsets          []int
}

// Build indexes keys with the given epsilon and the default recursive
// epsilon. keys must be sorted and is retained by the index.
func Build[K common.Key](keys []K, epsilon int) (*Index[K], error) {
	opts := DefaultOptions()
	opts.Epsilon = epsilon
	return BuildWithOptions(context.Background(), keys, opts)
}

func BuildWithOptions[K common.Key](ctx context.Context, keys []K, opts Options) (*Index[K], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if !slices.IsSorted(keys) {
		return nil, ErrUnsorted
	}

	segments, offsets, err := buildLevels(ctx, keys, opts)
	if err != nil {
		return nil, err
	}
	return &Index[K]{
		keys:             keys,
		epsilon:          opts.Epsilon,
		epsilonRecursive: opts.EpsilonRecursive,
		segments:         segments,
		offsets:          offsets,
	}, nil
}

// Search returns the predicted position of key and a window [Lo, Hi] that
// contains the lower bound of key, i.e. a binary search over keys[Lo:Hi]
// finds it. Hi-Lo is at most 2*epsilon+2. Keys outside the indexed range
// get a window clamped to [0, Len()].
func (idx *Index[K]) Search(key K) common.ApproxPos {
	n := len(idx.keys)
	if n == 0 {
		return common.ApproxPos{}
	}
	k := max(key, idx.keys[0])
	it := idx.segmentIndex(k)
	pos := idx.predict(it, 0, k)
	return common.ApproxPos{
		Pos: pos,
		Lo:  clamp(pos-idx.epsilon, 0, n),
		Hi:  clamp(pos+idx.epsilon+2, 0, n),
	}
}

// SegmentForKey returns the level-0 segment responsible for key.
func (idx *Index[K]) SegmentForKey(key K) model.Segment[K] {
	if len(idx.keys) == 0 {
		return idx.segments[0]
	}
	return idx.segments[idx.segmentIndex(max(key, idx.keys[0]))]
}

// segmentIndex descends from the root and returns the flat index of the
// level-0 segment whose range holds key.
func (idx *Index[K]) segmentIndex(key K) int {
	h := idx.Height()
	it := idx.offsets[h-1]
	for l := h - 2; l >= 0; l-- {
		begin, end := idx.offsets[l], idx.offsets[l+1]
		size := end - begin
		pos := idx.predict(it, l+1, key)
		lo := clamp(pos-idx.epsilonRecursive-1, 0, size)
		hi := clamp(pos+idx.epsilonRecursive+3, 0, size)
		level := idx.segments[begin:end]

		j := lastNotAfter(level, lo, hi, key)
		// 浮点误差兜底
		for j > 0 && level[j].Key > key {
			j--
		}
		for j+1 < size && level[j+1].Key <= key {
			j++
		}
		it = begin + j
	}
	return it
}

// lastNotAfter returns the last j in [lo, hi) with level[j].Key <= key, or
// lo-1 if there is none (clamped to 0).
func lastNotAfter[K common.Key](level []model.Segment[K], lo, hi int, key K) int {
	var j int
	if hi-lo < linearSearchThreshold {
		j = lo
		for j < hi && level[j].Key <= key {
			j++
		}
	} else {
		j = lo + sort.Search(hi-lo, func(i int) bool {
			return level[lo+i].Key > key
		})
	}
	if j == 0 {
		return 0
	}
	return j - 1
}

// predict applies segment it, which lives on the given level, and clamps the
// result to the next segment's intercept and to the size of the level below.
func (idx *Index[K]) predict(it, level int, key K) int {
	var size int
	if level == 0 {
		size = len(idx.keys)
	} else {
		size = idx.offsets[level] - idx.offsets[level-1]
	}
	pos := idx.segments[it].Predict(key)
	if it+1 < idx.offsets[level+1] {
		pos = min(pos, idx.segments[it+1].Intercept)
	}
	return int(min(max(pos, 0), int64(size)))
}

// LowerBound returns the first position whose key is >= key.
func (idx *Index[K]) LowerBound(key K) int {
	n := len(idx.keys)
	if n == 0 {
		return 0
	}
	ap := idx.Search(key)
	i := ap.Lo + idx.firstAtLeast(ap.Lo, ap.Hi, key)
	if i > 0 && idx.keys[i-1] >= key {
		i = idx.firstAtLeast(0, i, key)
	}
	if i < n && idx.keys[i] < key {
		i += idx.firstAtLeast(i, n, key)
	}
	return i
}

// firstAtLeast returns the offset from lo of the first key >= key in keys[lo:hi].
func (idx *Index[K]) firstAtLeast(lo, hi int, key K) int {
	if hi-lo < linearSearchThreshold {
		i := lo
		for i < hi && idx.keys[i] < key {
			i++
		}
		return i - lo
	}
	return sort.Search(hi-lo, func(i int) bool {
		return idx.keys[lo+i] >= key
	})
}

// UpperBound returns the first position whose key is > key.
func (idx *Index[K]) UpperBound(key K) int {
	lo := idx.LowerBound(key)
	rest := idx.keys[lo:]
	return lo + sort.Search(len(rest), func(i int) bool {
		return rest[i] > key
	})
}

// EqualRange returns [lo, hi), the positions of every copy of key.
func (idx *Index[K]) EqualRange(key K) (int, int) {
	lo := idx.LowerBound(key)
	if lo == len(idx.keys) || idx.keys[lo] != key {
		return lo, lo
	}
	return lo, idx.UpperBound(key)
}

func (idx *Index[K]) Contains(key K) bool {
	i := idx.LowerBound(key)
	return i < len(idx.keys) && idx.keys[i] == key
}

// Predict implements model.Model.
func (idx *Index[K]) Predict(key K) int {
	return idx.Search(key).Pos
}

// ErrorBound implements model.Model.
func (idx *Index[K]) ErrorBound() int {
	return idx.epsilon
}

// SizeInBytes is the footprint of the segments and the level offsets, not
// counting the keys.
func (idx *Index[K]) SizeInBytes() int {
	return len(idx.segments)*model.SegmentSize[K]() + len(idx.offsets)*(strconv.IntSize/8)
}

func (idx *Index[K]) Len() int {
	return len(idx.keys)
}

// Keys returns the indexed keys. The slice is shared and must not be modified.
func (idx *Index[K]) Keys() []K {
	return idx.keys
}

func (idx *Index[K]) Epsilon() int {
	return idx.epsilon
}

func (idx *Index[K]) EpsilonRecursive() int {
	return idx.epsilonRecursive
}

// Height returns the number of levels, root included.
func (idx *Index[K]) Height() int {
	return len(idx.offsets) - 1
}

// LevelOffsets returns the cumulative segment counts, one entry per level
// plus the total.
func (idx *Index[K]) LevelOffsets() []int {
	return slices.Clone(idx.offsets)
}

// Segments returns a copy of every segment, level 0 first.
func (idx *Index[K]) Segments() []model.Segment[K] {
	return slices.Clone(idx.segments)
}

// LevelSize returns the number of segments on level l.
func (idx *Index[K]) LevelSize(l int) int {
	return idx.offsets[l+1] - idx.offsets[l]
}

// Level returns a copy of the segments of level l.
func (idx *Index[K]) Level(l int) []model.Segment[K] {
	return slices.Clone(idx.segments[idx.offsets[l]:idx.offsets[l+1]])
}

func (idx *Index[K]) ExportDiagnostics(maxPoints int) []model.DiagnosticPoint[K] {
	return model.Diagnose[K](idx, idx.keys, maxPoints)
}

// BenchmarkInternal times iterations random lookups with a plain binary
// search and with the learned index, returning the average ns per lookup.
func (idx *Index[K]) BenchmarkInternal(iterations int, rng *rand.Rand) (float64, float64) {
	if len(idx.keys) == 0 || iterations <= 0 {
		return 0, 0
	}

	probes := make([]K, iterations)
	for i := range probes {
		probes[i] = idx.keys[rng.Intn(len(idx.keys))]
	}

	// Binary Search Benchmark
	startBin := time.Now()
	for _, key := range probes {
		sort.Search(len(idx.keys), func(i int) bool {
			return idx.keys[i] >= key
		})
	}
	avgBin := float64(time.Since(startBin).Nanoseconds()) / float64(iterations)

	// Learned Index Benchmark
	startPGM := time.Now()
	for _, key := range probes {
		idx.LowerBound(key)
	}
	avgPGM := float64(time.Since(startPGM).Nanoseconds()) / float64(iterations)

	return avgBin, avgPGM
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
