package main

import (
	"context"
	"sync"
	"time"
)

// heartbeat keeps the board's watchdog fed while the port is open. A beat
// is dropped when the writer has not yet sent the previous one.
func (pm *PortManager) heartbeat(ctx context.Context, beats chan<- byte, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(pm.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			{
				pm.logger.Debug().Msg("Heartbeat done")
				return
			}
		case <-ticker.C:
			{
				select {
				case beats <- HEARTBEAT:
				default:
				}
			}
		}
	}
}
