package database

import (
	"context"
	"log"
	"time"
)

// ScheduleEventCleanup starts the periodic event cleanup task
func ScheduleEventCleanup(ctx context.Context, service *EventService, retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = 30 // default 30 days
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour) // check once a day
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := service.CleanOldEvents(ctx, retentionDays)
				if err != nil {
					log.Printf("Failed to clean old node events: %v", err)
				} else if removed > 0 {
					log.Printf("Cleaned %d node events older than %d days", removed, retentionDays)
				}
			}
		}
	}()

	log.Printf("Started automatic node event cleanup task (retention: %d days)", retentionDays)
}
