package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemLoad is one tick's sampled load, per spec §4.6.
type SystemLoad struct {
	CPUPercent   float64
	MemPercent   float64
	DiskBytesSec uint64
	DiskBusy     bool
}

// LoadSampler samples system load once per tick.
type LoadSampler interface {
	Sample(ctx context.Context) (SystemLoad, error)
}

// SystemLoadSampler is the real gopsutil-backed sampler, the Go analogue
// of the original's sysinfo-crate-based sampler
// (original_source/ultrasearch/crates/scheduler/src/lib.rs).
type SystemLoadSampler struct {
	DiskBusyBytesPerSec uint64

	mu        sync.Mutex
	lastIO    map[string]disk.IOCountersStat
	lastSample time.Time
}

// NewSystemLoadSampler returns a sampler that flags disk_busy once bytes/s
// across all disks exceeds busyThreshold.
func NewSystemLoadSampler(busyThreshold uint64) *SystemLoadSampler {
	return &SystemLoadSampler{DiskBusyBytesPerSec: busyThreshold}
}

func (s *SystemLoadSampler) Sample(ctx context.Context) (SystemLoad, error) {
	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return SystemLoad{}, err
	}
	var cpuVal float64
	if len(cpuPct) > 0 {
		cpuVal = cpuPct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemLoad{}, err
	}

	ioCounters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return SystemLoad{}, err
	}

	bytesPerSec := s.diskThroughput(ioCounters)

	return SystemLoad{
		CPUPercent:   cpuVal,
		MemPercent:   vm.UsedPercent,
		DiskBytesSec: bytesPerSec,
		DiskBusy:     bytesPerSec > s.DiskBusyBytesPerSec,
	}, nil
}

func (s *SystemLoadSampler) diskThroughput(counters map[string]disk.IOCountersStat) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var total uint64
	if s.lastIO != nil && !s.lastSample.IsZero() {
		elapsed := now.Sub(s.lastSample).Seconds()
		if elapsed > 0 {
			for name, cur := range counters {
				prev, ok := s.lastIO[name]
				if !ok {
					continue
				}
				delta := (cur.ReadBytes + cur.WriteBytes) - (prev.ReadBytes + prev.WriteBytes)
				total += uint64(float64(delta) / elapsed)
			}
		}
	}
	s.lastIO = counters
	s.lastSample = now
	return total
}

// FakeLoadSampler returns a fixed SystemLoad for tests.
type FakeLoadSampler struct {
	Load SystemLoad
	Err  error
}

func (f *FakeLoadSampler) Sample(ctx context.Context) (SystemLoad, error) { return f.Load, f.Err }
