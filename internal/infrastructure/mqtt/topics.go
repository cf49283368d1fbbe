package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the dashboard publishes.
const TopicPrefix = "homelab"

// Topics builds homelab MQTT topics.
//
//	mqtt.Topics{}.AuthEvent("login")         // homelab/auth/events/login
//	mqtt.Topics{}.AuditEvent("user", "delete") // homelab/audit/user/delete
type Topics struct{}

// SystemStatus carries the retained online/offline status and the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AuthEvent is where authentication events of one kind are published.
func (Topics) AuthEvent(action string) string {
	return fmt.Sprintf("%s/auth/events/%s", TopicPrefix, sanitizeSegment(action))
}

// AuditEvent is where audit entries for an entity type and action are published.
func (Topics) AuditEvent(entityType, action string) string {
	return fmt.Sprintf("%s/audit/%s/%s", TopicPrefix, sanitizeSegment(entityType), sanitizeSegment(action))
}

// AllAuditEvents matches every audit topic, for subscribers.
func (Topics) AllAuditEvents() string {
	return TopicPrefix + "/audit/#"
}

// sanitizeSegment keeps a value from adding levels or wildcards to a topic.
func sanitizeSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
