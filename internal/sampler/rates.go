package sampler

import (
	"math"
	"time"
)

const (
	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024
)

// CPUTimes is one reading of the aggregate CPU time counters. Units only need
// to be consistent between two readings.
type CPUTimes struct {
	User    float64 `json:"user"`
	Nice    float64 `json:"nice"`
	System  float64 `json:"system"`
	Idle    float64 `json:"idle"`
	Iowait  float64 `json:"iowait"`
	Irq     float64 `json:"irq"`
	Softirq float64 `json:"softirq"`
	Steal   float64 `json:"steal"`
}

func (t *CPUTimes) idle() float64 {
	return t.Idle + t.Iowait
}

func (t *CPUTimes) total() float64 {
	return t.idle() + t.User + t.Nice + t.System + t.Irq + t.Softirq + t.Steal
}

// NetCounters is a reading of cumulative bytes across all interfaces
type NetCounters struct {
	Sent uint64 `json:"sent"`
	Recv uint64 `json:"recv"`
}

// CPUPercent returns busy time between two readings as a percentage in [0, 100].
// A missing reading yields 0. Counters that went backwards contribute no delta.
func CPUPercent(prev, curr *CPUTimes) float64 {
	if prev == nil || curr == nil {
		return 0
	}
	deltaTotal := math.Max(0, curr.total()-prev.total())
	deltaIdle := math.Max(0, curr.idle()-prev.idle())
	if deltaTotal == 0 {
		return 0
	}
	return clampPercent((1 - deltaIdle/deltaTotal) * 100)
}

// NetSpeed converts the byte delta between two counter readings into MB/s.
// Resets yield 0, as does a non-positive interval.
func NetSpeed(prev, curr uint64, interval time.Duration) float64 {
	if interval <= 0 || curr < prev {
		return 0
	}
	return float64(curr-prev) / interval.Seconds() / bytesPerMB
}

// BytesToGB converts a cumulative byte counter to GiB
func BytesToGB(b uint64) float64 {
	return float64(b) / bytesPerGB
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
