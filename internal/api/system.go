package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shvydak/homelab-dashboard/internal/auth"
)

// ServerInfo is the payload of GET /api/v1/info.
type ServerInfo struct {
	Status        string          `json:"status"`
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds float64         `json:"uptime"`
	GoVersion     string          `json:"goVersion"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Services      ServiceStatuses `json:"services"`

	// StoreDriver is only reported to admins.
	StoreDriver string `json:"storeDriver,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memoryAllocMb"`
	MemorySysMB   float64 `json:"memorySysMb"`
	NumGC         uint32  `json:"numGc"`
}

// ServiceStatuses reports the optional integrations.
type ServiceStatuses struct {
	MQTT             bool `json:"mqtt"`
	InfluxDB         bool `json:"influxdb"`
	RateLimit        bool `json:"rateLimit"`
	WebSocketClients int  `json:"websocketClients"`
}

const bytesPerMB = 1024 * 1024

// handleHealth reports that the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Server is running",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.environment,
	})
}

// handleInfo returns version, uptime and runtime statistics.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	info := ServerInfo{
		Status:        "running",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemorySysMB:   float64(memStats.Sys) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		Services: ServiceStatuses{
			MQTT:             s.mqtt.IsConnected(),
			InfluxDB:         s.influx != nil && s.influx.IsConnected(),
			RateLimit:        s.limiter != nil,
			WebSocketClients: s.hub.ClientCount(),
		},
	}

	if u := auth.UserFromContext(r.Context()); u != nil && u.Role == auth.RoleAdmin {
		info.StoreDriver = s.storeDriver
	}

	writeSuccess(w, http.StatusOK, info, "")
}
