package scheduler

import "ultrasearch/pkg/models"

// admissionBase is the default matrix from spec §4.6, ignoring the global
// CPU gates layered on top by Admitter.Tick.
func admissionBase(kind models.JobKind, idle IdleState, load SystemLoad) bool {
	switch kind {
	case models.JobCriticalUpdate:
		return true
	case models.JobMetadataRebuild:
		return idle != Active
	case models.JobContentBatch:
		return idle == DeepIdle && load.CPUPercent < 20 && !load.DiskBusy
	default:
		return false
	}
}

// Admitter applies the admission matrix plus the global CPU gates and
// hysteresis described in spec §4.6: above cpu_hard_limit_pct all queues
// pause; between soft and hard only CriticalUpdate runs; once a category
// is gated off it must see the admitting condition hold for
// HysteresisTicks consecutive ticks before being re-admitted.
type Admitter struct {
	CPUSoftLimitPct float64
	CPUHardLimitPct float64
	HysteresisTicks int

	// consecutiveAdmitted counts, per job kind, how many consecutive
	// ticks the base+gate condition has held true while the kind was
	// gated off. Reset to 0 on any tick the condition is false.
	consecutiveAdmitted map[models.JobKind]int
	gated               map[models.JobKind]bool
}

// NewAdmitter builds an Admitter with no category currently gated.
func NewAdmitter(cpuSoft, cpuHard float64, hysteresisTicks int) *Admitter {
	return &Admitter{
		CPUSoftLimitPct: cpuSoft,
		CPUHardLimitPct: cpuHard,
		HysteresisTicks: hysteresisTicks,
		consecutiveAdmitted: map[models.JobKind]int{},
		gated:               map[models.JobKind]bool{},
	}
}

// Tick evaluates admission for one job kind on the current tick's
// sampled idle state and load, applying hysteresis, and returns whether
// the kind may run this tick. Call once per (kind, tick).
func (a *Admitter) Tick(kind models.JobKind, idle IdleState, load SystemLoad) bool {
	globallyOK := true
	if kind != models.JobCriticalUpdate {
		if load.CPUPercent >= a.CPUHardLimitPct {
			globallyOK = false
		} else if load.CPUPercent >= a.CPUSoftLimitPct {
			globallyOK = false
		}
	} else if load.CPUPercent >= a.CPUHardLimitPct {
		globallyOK = false
	}

	condition := globallyOK && admissionBase(kind, idle, load)

	if !a.gated[kind] {
		if condition {
			return true
		}
		a.gated[kind] = true
		a.consecutiveAdmitted[kind] = 0
		return false
	}

	if !condition {
		a.consecutiveAdmitted[kind] = 0
		return false
	}
	a.consecutiveAdmitted[kind]++
	if a.consecutiveAdmitted[kind] >= a.HysteresisTicks {
		a.gated[kind] = false
		a.consecutiveAdmitted[kind] = 0
		return true
	}
	return false
}
