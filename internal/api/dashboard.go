package api

import (
	"net/http"
	"time"

	"github.com/shvydak/homelab-dashboard/internal/auth"
)

// dashboardService is one link on the dashboard.
type dashboardService struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// dashboardResponse is the payload of GET /api/dashboard.
type dashboardResponse struct {
	User     string             `json:"user"`
	Services []dashboardService `json:"services"`
}

// handleDashboard returns the configured services with a greeting.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	name := user.DisplayName()

	services := make([]dashboardService, 0, len(s.dashboard.Services))
	for _, svc := range s.dashboard.Services {
		status := svc.Status
		if status == "" {
			status = "unknown"
		}
		services = append(services, dashboardService{
			Name:   svc.Name,
			URL:    svc.URL,
			Status: status,
		})
	}

	writeSuccess(w, http.StatusOK, dashboardResponse{
		User:     name,
		Services: services,
	}, "Welcome to the dashboard, "+name+"!")
}

// handleDashboardHealth is the unauthenticated liveness probe used by the web client.
func (s *Server) handleDashboardHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Seconds(),
	}, "")
}
