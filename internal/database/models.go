package database

import (
	"time"
)

// Node one monitored host. Status is never stored, it is derived from LastSeen at read time.
type Node struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	Token     string     `json:"token" gorm:"size:64;uniqueIndex;not null"`
	Label     string     `json:"label" gorm:"size:200"`
	Hostname  string     `json:"hostname" gorm:"size:255;index"`
	IPAddress string     `json:"ip_address" gorm:"size:45;index"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	LastSeen  *time.Time `json:"last_seen"`
	Meta      string     `json:"meta" gorm:"type:text"`    // JSON object, replaced wholesale
	Metrics   string     `json:"metrics" gorm:"type:text"` // JSON object, replaced wholesale
}

// NodeEvent audit record of operator actions and reconciliation evictions
type NodeEvent struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
	Action     string    `json:"action" gorm:"size:20;index"`
	NodeID     string    `json:"node_id" gorm:"size:36;index"`
	Label      string    `json:"label" gorm:"size:200"`
	Hostname   string    `json:"hostname" gorm:"size:255"`
	IPAddress  string    `json:"ip_address" gorm:"size:45"`
	Reason     string    `json:"reason" gorm:"type:text"`
	RemoteAddr string    `json:"remote_addr" gorm:"size:45"`
}

// NodeAction node event action constant
const (
	NodeActionReserve = "RESERVE"
	NodeActionRename  = "RENAME"
	NodeActionDelete  = "DELETE"
	NodeActionEvict   = "EVICT"
)
