// Package mqtt publishes homelab dashboard events to an MQTT broker.
//
// The dashboard only publishes; it never subscribes. Audit entries are sent
// to homelab/audit/{entity}/{action} and authentication events to
// homelab/auth/events/{action}, so home automation tools (Home Assistant,
// Node-RED) can react to logins, failed logins and account changes.
//
// # Connection
//
// Connect builds the paho client from config, registers a Last Will on
// homelab/system/status so subscribers notice a crash, and publishes a
// retained "online" status on every (re)connect. Close publishes a
// graceful "offline" status before disconnecting.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.AuthEvent("login_failed"), event)
//
// Use TLS (cfg.Broker.TLS) whenever the broker is not on localhost.
package mqtt
