package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAuditEvents = "audit_events"
	MeasurementAuthEvents  = "auth_events"
)

// WriteAuditEvent records one audit entry. Tags stay low-cardinality
// (action, entity type, source); IDs go into fields.
func (c *Client) WriteAuditEvent(action, entityType, entityID, userID, source string, at time.Time) {
	c.WritePointWithTime(MeasurementAuditEvents,
		map[string]string{
			"action":      action,
			"entity_type": entityType,
			"source":      source,
		},
		map[string]any{
			"count":     1,
			"entity_id": entityID,
			"user_id":   userID,
		},
		at,
	)
}

// WriteAuthEvent records a login or registration attempt. outcome is
// "success" or "failure".
func (c *Client) WriteAuthEvent(action, outcome, userID string, at time.Time) {
	c.WritePointWithTime(MeasurementAuthEvents,
		map[string]string{
			"action":  action,
			"outcome": outcome,
		},
		map[string]any{
			"count":   1,
			"user_id": userID,
		},
		at,
	)
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point. Dropped silently when disconnected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
