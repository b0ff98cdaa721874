package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Health reports whether the player store answers a ping.
func (g *Game) Health(ctx context.Context) *HealthOutput {
	storeOK := true
	if err := g.store.Ping(ctx); err != nil {
		slog.Warn(fmt.Sprintf("%s - store ping failed: %v", logPrefix, err))
		storeOK = false
	}

	status := "healthy"
	if !storeOK {
		status = "unhealthy"
	}

	return &HealthOutput{
		Status:    status,
		Timestamp: g.now().Format(time.RFC3339),
		Checks:    HealthChecks{Store: storeOK},
	}
}
