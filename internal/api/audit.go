package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shvydak/homelab-dashboard/internal/audit"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/mqtt"
)

// auditChanSize is the buffer size for the async audit log channel.
// Entries beyond this are dropped (best-effort) to avoid back-pressure on requests.
const auditChanSize = 256

// channelAudit is the event hub channel carrying audit entries.
const channelAudit = "audit"

// auditLog enqueues an audit log entry for asynchronous write (best-effort).
// If the channel is full the entry is dropped and a warning is logged.
func (s *Server) auditLog(r *http.Request, action, entityID, userID string, details map[string]any) {
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: audit.EntityUser,
		EntityID:   entityID,
		UserID:     userID,
		Source:     "api",
		RemoteAddr: clientIP(r),
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	select {
	case s.auditCh <- entry:
	default:
		s.metrics.auditDropped.Inc()
		s.logger.Warn("audit log channel full, dropping entry",
			"action", action,
			"entity_type", entry.EntityType,
		)
	}
}

// drainAuditLog reads entries from the audit channel and processes them
// serially: persist, then fan out to MQTT, InfluxDB and the event hub.
// It runs until the context is cancelled, then drains remaining entries.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.processAudit(entry)
		case <-ctx.Done():
			// Drain remaining entries before exiting
			for {
				select {
				case entry := <-s.auditCh:
					s.processAudit(entry)
				default:
					return
				}
			}
		}
	}
}

// processAudit persists one entry and forwards it to every configured sink.
// Sink failures are logged and never block the remaining sinks.
func (s *Server) processAudit(entry *audit.AuditLog) {
	if s.auditRepo != nil {
		if err := s.auditRepo.Create(context.Background(), entry); err != nil {
			s.logger.Error("audit log write failed",
				"action", entry.Action,
				"entity_type", entry.EntityType,
				"error", err,
			)
		}
	}

	if s.mqtt != nil {
		if err := s.mqtt.PublishJSON(auditTopic(entry), entry); err != nil {
			if errors.Is(err, mqtt.ErrNotConnected) {
				s.logger.Debug("mqtt offline, audit event not published", "action", entry.Action)
			} else {
				s.logger.Warn("audit event publish failed", "action", entry.Action, "error", err)
			}
		}
	}

	if s.influx != nil {
		s.influx.WriteAuditEvent(entry.Action, entry.EntityType, entry.EntityID, entry.UserID, entry.Source, entry.CreatedAt)
	}

	s.hub.Broadcast(channelAudit, entry)
}

// auditTopic routes auth.* actions to the auth event topics and everything
// else to the generic audit topics.
func auditTopic(entry *audit.AuditLog) string {
	var topics mqtt.Topics
	if action, ok := strings.CutPrefix(entry.Action, "auth."); ok {
		return topics.AuthEvent(action)
	}
	return topics.AuditEvent(entry.EntityType, entry.Action)
}

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by action (auth.login, user.update, ...)
//   - entity_type: filter by entity type
//   - entity_id: filter by specific entity ID
//   - user_id: filter by acting user
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		s.writeInternal(w, r, "Audit logging not configured", nil)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.writeInternal(w, r, "Failed to list audit logs", err)
		return
	}

	writeSuccess(w, http.StatusOK, result, "")
}
