package registry

import "time"

const (
	StatusPending = "pending"
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// DeriveStatus classifies a node from its last accepted report.
// A node that has never reported is pending; otherwise it is online while
// now-lastSeen stays within timeout, inclusive.
func DeriveStatus(lastSeen *time.Time, now time.Time, timeout time.Duration) string {
	if lastSeen == nil {
		return StatusPending
	}
	if now.Sub(*lastSeen) <= timeout {
		return StatusOnline
	}
	return StatusOffline
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
