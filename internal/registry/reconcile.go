package registry

import (
	"context"
	"log"

	"github.com/mycoool/imonitor/internal/database"
	"gorm.io/gorm"
)

// ReconcileDuplicates removes every node other than survivor that shares the
// reported hostname or IP address. Empty values never match. Must run inside
// the transaction that recorded the survivor's report.
func ReconcileDuplicates(ctx context.Context, tx *gorm.DB, survivor *database.Node, hostname, ip string) ([]database.Node, error) {
	if hostname == "" && ip == "" {
		return nil, nil
	}

	query := tx.WithContext(ctx).Where("token <> ?", survivor.Token)
	switch {
	case hostname != "" && ip != "":
		query = query.Where("hostname = ? OR ip_address = ?", hostname, ip)
	case hostname != "":
		query = query.Where("hostname = ?", hostname)
	default:
		query = query.Where("ip_address = ?", ip)
	}

	var victims []database.Node
	if err := query.Find(&victims).Error; err != nil {
		return nil, err
	}
	if len(victims) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(victims))
	for _, v := range victims {
		ids = append(ids, v.ID)
	}
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Delete(&database.Node{}).Error; err != nil {
		return nil, err
	}

	for _, v := range victims {
		reason := "hostname"
		if v.Hostname != hostname || hostname == "" {
			reason = "ip_address"
		}
		if err := database.CreateEvent(ctx, tx, &database.NodeEvent{
			Action:     database.NodeActionEvict,
			NodeID:     v.ID,
			Label:      v.Label,
			Hostname:   v.Hostname,
			IPAddress:  v.IPAddress,
			Reason:     reason + " claimed by " + survivor.ID,
			RemoteAddr: remoteAddrFrom(ctx),
		}); err != nil {
			return nil, err
		}
		log.Printf("Evicted duplicate node %s (%s) in favour of %s: shared %s", v.ID, v.Label, survivor.ID, reason)
	}
	return victims, nil
}
