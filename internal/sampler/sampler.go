package sampler

import (
	"context"
	"log"
	"time"

	"github.com/mycoool/imonitor/internal/types"
)

// State is carried from one tick to the next. Nil readings mean no
// successful sample yet.
type State struct {
	CPU   *CPUTimes
	Net   *NetCounters
	NetAt time.Time
}

// Sampler turns raw counters into report snapshots
type Sampler struct {
	source   Source
	info     HostInfo
	token    string
	interval time.Duration
	now      func() time.Time
}

// NewSampler creates a Sampler. interval is used as the rate window when the
// previous network reading carries no timestamp.
func NewSampler(source Source, info HostInfo, token string, interval time.Duration) *Sampler {
	return &Sampler{
		source:   source,
		info:     info,
		token:    token,
		interval: interval,
		now:      time.Now,
	}
}

// Tick samples the host once. It never fails: unreadable sources produce
// zero values and the previous reading is carried forward in the returned state.
func (s *Sampler) Tick(ctx context.Context, prev State) (types.Report, State) {
	next := prev
	var metrics types.NodeMetrics

	if curr, err := s.source.CPUTimes(ctx); err != nil {
		log.Printf("agent: cpu times unreadable: %v", err)
	} else {
		metrics.CPU = CPUPercent(prev.CPU, curr)
		next.CPU = curr
	}

	if total, available, err := s.source.Memory(ctx); err != nil {
		log.Printf("agent: memory unreadable: %v", err)
	} else if total > 0 {
		used := total - min(available, total)
		metrics.MemoryPercent = float64(used) / float64(total) * 100
	}

	if disk, err := s.source.DiskPercent(ctx); err != nil {
		log.Printf("agent: disk usage unreadable: %v", err)
	} else {
		metrics.DiskPercent = disk
	}

	if avg, err := s.source.LoadAvg(ctx); err != nil {
		log.Printf("agent: load average unreadable: %v", err)
	} else {
		metrics.LoadAvg = avg
	}

	if up, err := s.source.Uptime(ctx); err != nil {
		log.Printf("agent: uptime unreadable: %v", err)
	} else {
		metrics.Uptime = up
	}

	now := s.now()
	if curr, err := s.source.NetCounters(ctx); err != nil {
		log.Printf("agent: network counters unreadable: %v", err)
	} else {
		if prev.Net != nil {
			window := s.interval
			if !prev.NetAt.IsZero() {
				window = now.Sub(prev.NetAt)
			}
			metrics.NetSentSpeed = NetSpeed(prev.Net.Sent, curr.Sent, window)
			metrics.NetRecvSpeed = NetSpeed(prev.Net.Recv, curr.Recv, window)
		}
		metrics.TotalSent = BytesToGB(curr.Sent)
		metrics.TotalRecv = BytesToGB(curr.Recv)
		next.Net = curr
		next.NetAt = now
	}

	metrics.CPU = round2(metrics.CPU)
	metrics.MemoryPercent = round2(metrics.MemoryPercent)
	metrics.DiskPercent = round2(metrics.DiskPercent)
	metrics.NetSentSpeed = round3(metrics.NetSentSpeed)
	metrics.NetRecvSpeed = round3(metrics.NetRecvSpeed)
	metrics.TotalSent = round3(metrics.TotalSent)
	metrics.TotalRecv = round3(metrics.TotalRecv)
	for i := range metrics.LoadAvg {
		metrics.LoadAvg[i] = round2(metrics.LoadAvg[i])
	}

	// without a detected address the registry falls back to the request source
	var ip *string
	if s.info.IPAddress != "" {
		addr := s.info.IPAddress
		ip = &addr
	}
	return types.Report{
		Token:     s.token,
		Hostname:  s.info.Hostname,
		IPAddress: ip,
		Meta:      s.info.Meta,
		Metrics:   metrics,
	}, next
}
