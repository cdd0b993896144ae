// Package ratelimit holds the two in-memory limiters used by the server.
//
// IPLimiter is a per-IP token bucket wrapped around every public route for
// basic abuse prevention. SubmissionLimiter counts accepted contact form
// submissions per email address and per client IP inside a fixed window.
//
// Both are single-instance and process-local. Running several replicas behind
// a load balancer multiplies the effective limits by the replica count.
package ratelimit
