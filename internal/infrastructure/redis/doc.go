// Package redis connects to Redis, which backs the shared request rate
// limiter when api.rate_limit is enabled and redis.enabled is true.
package redis
