package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Hub           HubMetrics     `json:"hub"`
	Entities      EntityMetrics  `json:"entities"`
	Observers     ObserverCounts `json:"observers"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedMessages  uint64 `json:"dropped_messages"`
}

// HubMetrics describes the upstream connection.
type HubMetrics struct {
	Connected bool   `json:"connected"`
	HAVersion string `json:"ha_version,omitempty"`
}

// EntityMetrics contains entity store statistics.
type EntityMetrics struct {
	Total    int            `json:"total"`
	ByDomain map[string]int `json:"by_domain"`
}

// ObserverCounts is the number of attached observers per registry.
type ObserverCounts struct {
	States int `json:"states"`
	Events int `json:"events"`
	Errors int `json:"errors"`
}

// handleMetrics returns runtime and store metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.ws.ClientCount(),
			DroppedMessages:  s.ws.Dropped(),
		},
	}

	if s.hubStatus != nil {
		metrics.Hub = HubMetrics{
			Connected: s.hubStatus.IsConnected(),
			HAVersion: s.hubStatus.HAVersion(),
		}
	}

	records := s.store.Snapshot()
	metrics.Entities = EntityMetrics{Total: len(records), ByDomain: make(map[string]int)}
	for _, rec := range records {
		metrics.Entities.ByDomain[rec.ID.Domain]++
	}

	if s.observers != nil {
		metrics.Observers = ObserverCounts{
			States: s.observers.States.Count(),
			Events: s.observers.Events.Count(),
			Errors: s.observers.Errors.Count(),
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
