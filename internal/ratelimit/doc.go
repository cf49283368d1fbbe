// Package ratelimit implements the fixed-window request limiter applied to
// every /api route.
//
// RedisLimiter shares counters between dashboard instances. MemoryLimiter
// keeps them in process and is used on its own when Redis is disabled, or
// behind Fallback when Redis becomes unreachable.
package ratelimit
