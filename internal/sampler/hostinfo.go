package sampler

import (
	"bufio"
	"context"
	"io"
	"log"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mycoool/imonitor/internal/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

const (
	// DefaultFlag is shown next to the node when no flag is configured
	DefaultFlag = "🖥️"

	unknownCPU = "Unknown CPU"
	defaultOS  = "Linux"
)

// HostInfo is the static part of every report, read once at startup
type HostInfo struct {
	Hostname  string
	IPAddress string
	Meta      types.NodeMeta
}

// DetectHostInfo gathers hostname, outbound IP, OS release and CPU description.
// Every field falls back to a safe default when its source is unreadable.
func DetectHostInfo(ctx context.Context, flag string) HostInfo {
	if flag == "" {
		flag = DefaultFlag
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}

	osShort, osFull := defaultOS, defaultOS
	if f, err := os.Open("/etc/os-release"); err == nil {
		osShort, osFull = ParseOSRelease(f)
		f.Close()
	} else {
		log.Printf("agent: os-release unreadable: %v", err)
	}

	arch, err := host.KernelArch()
	if err != nil || arch == "" {
		arch = runtime.GOARCH
	}

	model, cores := detectCPU(ctx)

	return HostInfo{
		Hostname:  hostname,
		IPAddress: DetectIP(),
		Meta: types.NodeMeta{
			OS:       osShort,
			OSShort:  osShort,
			OSFull:   osFull,
			Arch:     arch,
			CPUModel: model,
			CPUCores: cores,
			Flag:     flag,
		},
	}
}

// ParseOSRelease extracts a short and a full OS name from os-release content.
// PRETTY_NAME wins; otherwise NAME plus VERSION; otherwise "Linux".
func ParseOSRelease(r io.Reader) (short, full string) {
	var pretty, name, version string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "PRETTY_NAME":
			pretty = value
		case "NAME":
			if name == "" {
				name = value
			}
		case "VERSION":
			if version == "" {
				version = value
			}
		}
	}

	switch {
	case pretty != "":
		short = pretty
	case name != "" && version != "":
		short = name + " " + version
	case name != "":
		short = name
	default:
		short = defaultOS
	}

	full = short
	return short, full
}

func detectCPU(ctx context.Context) (string, int) {
	model := unknownCPU
	hypervisor := false

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		log.Printf("agent: cpu info unreadable: %v", err)
	}
	for _, info := range infos {
		if model == unknownCPU && strings.TrimSpace(info.ModelName) != "" {
			model = strings.TrimSpace(info.ModelName)
		}
		for _, f := range info.Flags {
			if f == "hypervisor" {
				hypervisor = true
			}
		}
	}

	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cores <= 0 {
		cores = 1
	}

	vendor := ""
	if hypervisor {
		if system, role, err := host.VirtualizationWithContext(ctx); err == nil && role == "guest" {
			vendor = system
		}
	}
	return RelabelCPU(model, hypervisor, vendor), cores
}

// RelabelCPU marks a model string as virtual when the hypervisor flag is set
func RelabelCPU(model string, hypervisor bool, vendor string) string {
	if !hypervisor {
		return model
	}
	if vendor != "" {
		return "Virtual CPU (" + vendor + ")"
	}
	return "Virtual CPU / " + model
}

// DetectIP returns the local address used for outbound traffic. UDP "connect"
// only selects a route, nothing is sent.
func DetectIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 2*time.Second)
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
