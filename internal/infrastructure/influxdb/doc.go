// Package influxdb writes dashboard activity to InfluxDB as time series.
//
// Every audit entry becomes a point in the "audit_events" measurement and
// every login attempt a point in "auth_events", so login rates and failed
// attempts can be graphed next to the rest of the homelab's metrics.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent("login", "failure", "", time.Now())
//
// Writes are non-blocking and batched (batch_size, flush_interval). Write
// failures arrive asynchronously through SetOnError.
package influxdb
