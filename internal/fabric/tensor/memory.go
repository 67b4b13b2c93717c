package tensor

import (
	"fmt"
	"sync/atomic"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Hard memory budget constants (§4.6) — not tunable per call, only the
// monitor's overall Limit is configurable.
const (
	ChunkSize         = 64 * 1024       // bytes read per I/O window
	DecodeSize        = 16384           // floats held in the decode buffer
	MaxWorkingMemory  = 1 * 1024 * 1024 // ceiling for all transient buffers
)

// MemoryMonitor is a process-wide, CAS-based allocation counter. Every
// streamed buffer the tensor loader creates must be requested through it;
// the release function returned by TryAllocate must run when the buffer is
// discarded (Go has no destructors, so callers `defer release()` in place
// of the original's RAII handle).
type MemoryMonitor struct {
	current atomic.Int64
	limit   int64
}

// NewMemoryMonitor creates a monitor that refuses allocations once current
// usage would exceed limit bytes.
func NewMemoryMonitor(limit int64) *MemoryMonitor {
	return &MemoryMonitor{limit: limit}
}

// CanAllocate is a non-committing check: would TryAllocate(n) currently
// succeed.
func (m *MemoryMonitor) CanAllocate(n int64) bool {
	return m.current.Load()+n <= m.limit
}

// TryAllocate attempts to reserve n bytes via compare-and-swap, retrying on
// contention. On success it returns a release func that must be called
// exactly once when the buffer is freed.
func (m *MemoryMonitor) TryAllocate(n int64) (release func(), err error) {
	for {
		cur := m.current.Load()
		next := cur + n
		if next > m.limit {
			return nil, fabricerr.New(fabricerr.AllocationDenied,
				fmt.Sprintf("allocation of %d bytes denied: current=%d limit=%d", n, cur, m.limit))
		}
		if m.current.CompareAndSwap(cur, next) {
			released := false
			return func() {
				if released {
					return
				}
				released = true
				m.current.Add(-n)
			}, nil
		}
	}
}

// Current reports current reserved bytes.
func (m *MemoryMonitor) Current() int64 { return m.current.Load() }

// Limit reports the configured ceiling.
func (m *MemoryMonitor) Limit() int64 { return m.limit }
