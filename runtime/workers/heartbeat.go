package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RelayStats is what the heartbeat reads from the relay.
type RelayStats interface {
	Rooms() int
	Topics() int
}

// Stats is one sample of the process and relay state.
type Stats struct {
	Rooms      int     `json:"rooms"`
	Topics     int     `json:"topics"`
	RssBytes   uint64  `json:"rssBytes"`
	CpuPercent float64 `json:"cpuPercent"`
}

type HeartbeatWorker struct {
	log      *slog.Logger
	relay    RelayStats
	interval time.Duration
	proc     *process.Process
}

func NewHeartbeatWorker(log *slog.Logger, relay RelayStats, interval time.Duration) (*HeartbeatWorker, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HeartbeatWorker{log: log, relay: relay, interval: interval, proc: p}, nil
}

// Run logs a Stats sample every interval until ctx is done.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := w.Collect()
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Heartbeat",
				"rooms", stats.Rooms,
				"topics", stats.Topics,
				"rss_bytes", stats.RssBytes,
				"cpu_percent", stats.CpuPercent)
		}
	}
}

// Collect samples the relay counters and the memory and CPU usage of this process.
func (w *HeartbeatWorker) Collect() (Stats, error) {
	stats := Stats{Rooms: w.relay.Rooms(), Topics: w.relay.Topics()}

	memInfo, err := w.proc.MemoryInfo()
	if err != nil {
		return stats, err
	}
	stats.RssBytes = memInfo.RSS

	cpuPercent, err := w.proc.CPUPercent()
	if err != nil {
		return stats, err
	}
	stats.CpuPercent = cpuPercent
	return stats, nil
}
