package database

import (
	"context"

	"video-rewrite/internal/logging"
	"video-rewrite/internal/metrics"
)

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	counts, err := d.CountByStatus(context.Background())
	if err != nil {
		logging.Warn("Failed to count jobs for metrics: %v", err)
		return metrics.Stats{}
	}
	stats := metrics.Stats{JobsByStatus: make(map[string]int, len(counts))}
	for status, n := range counts {
		stats.JobsByStatus[string(status)] = n
	}
	return stats
}
