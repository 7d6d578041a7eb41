package monitor

import (
	"sync/atomic"
)

type WorkloadStats struct {
	ReadCount   uint64
	WriteCount  uint64
	DeleteCount uint64
	HitCount    uint64
	MergeCount  uint64
	// MergedEntries counts entries written by merges, for write amplification.
	MergedEntries uint64
}

func NewWorkloadStats() *WorkloadStats {
	return &WorkloadStats{}
}

func (ws *WorkloadStats) RecordRead() {
	atomic.AddUint64(&ws.ReadCount, 1)
}

func (ws *WorkloadStats) RecordWrite() {
	atomic.AddUint64(&ws.WriteCount, 1)
}

func (ws *WorkloadStats) RecordDelete() {
	atomic.AddUint64(&ws.DeleteCount, 1)
}

func (ws *WorkloadStats) RecordHit() {
	atomic.AddUint64(&ws.HitCount, 1)
}

func (ws *WorkloadStats) RecordMerge(entries int) {
	atomic.AddUint64(&ws.MergeCount, 1)
	atomic.AddUint64(&ws.MergedEntries, uint64(entries))
}

func (ws *WorkloadStats) GetReadWriteRatio() float64 {
	reads := atomic.LoadUint64(&ws.ReadCount)
	writes := atomic.LoadUint64(&ws.WriteCount) + atomic.LoadUint64(&ws.DeleteCount)

	if writes == 0 {
		if reads > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(reads) / float64(writes)
}

// WriteAmplification is merged entries per user write.
func (ws *WorkloadStats) WriteAmplification() float64 {
	writes := atomic.LoadUint64(&ws.WriteCount) + atomic.LoadUint64(&ws.DeleteCount)
	if writes == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&ws.MergedEntries)) / float64(writes)
}

// Snapshot returns a consistent-enough copy for reporting.
func (ws *WorkloadStats) Snapshot() WorkloadStats {
	return WorkloadStats{
		ReadCount:     atomic.LoadUint64(&ws.ReadCount),
		WriteCount:    atomic.LoadUint64(&ws.WriteCount),
		DeleteCount:   atomic.LoadUint64(&ws.DeleteCount),
		HitCount:      atomic.LoadUint64(&ws.HitCount),
		MergeCount:    atomic.LoadUint64(&ws.MergeCount),
		MergedEntries: atomic.LoadUint64(&ws.MergedEntries),
	}
}
