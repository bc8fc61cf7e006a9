package types

// Report is the JSON object a sampler pushes to the registry on every tick.
// IPAddress is a pointer so that an omitted field can be told apart from an
// explicitly empty one.
type Report struct {
	Token     string      `json:"token"`
	Hostname  string      `json:"hostname"`
	IPAddress *string     `json:"ip_address,omitempty"`
	Meta      NodeMeta    `json:"meta"`
	Metrics   NodeMetrics `json:"metrics"`
}

// NodeMeta static host description
type NodeMeta struct {
	OS       string `json:"os"`
	OSShort  string `json:"os_short"`
	OSFull   string `json:"os_full"`
	Arch     string `json:"arch"`
	CPUModel string `json:"cpu_model"`
	CPUCores int    `json:"cpu_cores"`
	Flag     string `json:"flag"`
}

// NodeMetrics dynamic measurements; speeds are MB/s, totals are GB.
type NodeMetrics struct {
	CPU           float64    `json:"cpu"`
	MemoryPercent float64    `json:"memory_percent"`
	DiskPercent   float64    `json:"disk_percent"`
	NetSentSpeed  float64    `json:"net_sent_speed"`
	NetRecvSpeed  float64    `json:"net_recv_speed"`
	TotalSent     float64    `json:"total_sent"`
	TotalRecv     float64    `json:"total_recv"`
	LoadAvg       [3]float64 `json:"load_avg"`
	Uptime        uint64     `json:"uptime"`
}

// ReserveResponse is returned when the operator reserves a node.
type ReserveResponse struct {
	NodeID  string `json:"node_id"`
	Token   string `json:"token"`
	Command string `json:"command"`
}
