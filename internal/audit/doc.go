// Package audit stores the dashboard's audit trail in the audit_logs table:
// registrations, logins (successful and failed), account updates and
// deletions.
//
// The trail always lives in the SQLite database, whatever credential store
// driver is configured. Entries are written asynchronously by the API server
// and then fanned out to MQTT, InfluxDB and WebSocket subscribers.
package audit
