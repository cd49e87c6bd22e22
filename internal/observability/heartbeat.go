package observability

import (
	"context"
	"time"

	"github.com/lumenbridge/lumenbridge/internal/logx"
)

const heartbeatInterval = 1 * time.Second

// StatsProvider supplies the fields of scheduler.Stats (uptime, active
// sinks, dropped frames) without this package importing scheduler
// (observability only reads, never drives).
type StatsProvider func() (uptimeSeconds float64, activeSinks int, droppedFrames int64)

// RunHeartbeat emits a one-line status summary every second until ctx is
// cancelled (supplemental feature, grounded on the original firmware's
// main/heartbeat.cpp housekeeping status line).
func RunHeartbeat(ctx context.Context, log *logx.Logger, stats StatsProvider) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uptime, active, dropped := stats()
			log.Info("heartbeat", "uptime_s", int64(uptime), "active_sinks", active, "dropped_frames", dropped)
		}
	}
}
