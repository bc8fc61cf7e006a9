package sampler

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"golang.org/x/sys/unix"
)

// Source reads the live host counters sampled on every tick
type Source interface {
	CPUTimes(ctx context.Context) (*CPUTimes, error)
	NetCounters(ctx context.Context) (*NetCounters, error)
	Memory(ctx context.Context) (total, available uint64, err error)
	DiskPercent(ctx context.Context) (float64, error)
	LoadAvg(ctx context.Context) ([3]float64, error)
	Uptime(ctx context.Context) (uint64, error)
}

// HostSource reads counters from the running kernel through gopsutil
type HostSource struct {
	// DiskPath is the mount whose usage is reported, "/" by default
	DiskPath string
}

func (h HostSource) CPUTimes(ctx context.Context) (*CPUTimes, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, errors.New("no aggregate cpu times")
	}
	t := times[0]
	return &CPUTimes{
		User:    t.User,
		Nice:    t.Nice,
		System:  t.System,
		Idle:    t.Idle,
		Iowait:  t.Iowait,
		Irq:     t.Irq,
		Softirq: t.Softirq,
		Steal:   t.Steal,
	}, nil
}

// NetCounters sums bytes over every interface, loopback included
func (h HostSource) NetCounters(ctx context.Context) (*NetCounters, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, errors.New("no network counters")
	}
	return &NetCounters{Sent: counters[0].BytesSent, Recv: counters[0].BytesRecv}, nil
}

func (h HostSource) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

// DiskPercent is (blocks - bavail) / blocks, the share unavailable to unprivileged users
func (h HostSource) DiskPercent(ctx context.Context) (float64, error) {
	path := h.DiskPath
	if path == "" {
		path = "/"
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	if st.Blocks == 0 {
		return 0, errors.New("filesystem reports zero blocks")
	}
	blocks := float64(st.Blocks)
	used := blocks - float64(st.Bavail)
	return used / blocks * 100, nil
}

func (h HostSource) LoadAvg(ctx context.Context) ([3]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{avg.Load1, avg.Load5, avg.Load15}, nil
}

func (h HostSource) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}
