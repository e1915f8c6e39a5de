// Package health reports whether the blueprint service and the dependencies
// it was configured with can serve exports.
//
// Checkers are registered on a Manager, which runs them in parallel under a
// per-check timeout. ProbeManager layers Kubernetes-style liveness,
// readiness, and startup probes on top:
//
//	probes := health.NewProbeManager(version.Version)
//	probes.AddChecker(health.NewProviderChecker(provider.DefaultFactory, settings))
//	probes.AddChecker(health.NewNATSChecker(nc))
//	probes.MarkInitialized()
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency.
type Checker interface {
	// Name is lowercase with hyphens, e.g. "ai-provider".
	Name() string

	// Check must respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	StatusHealthy Status = "healthy"

	// StatusDegraded means exports still work with reduced functionality,
	// for example template-only exports when no AI provider is reachable.
	StatusDegraded Status = "degraded"

	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Result is the outcome of a single check.
type Result struct {
	Status  Status                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Latency time.Duration          `json:"latency_ns,omitempty"`
}

// NewResult creates a result with an empty detail map.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail and returns r for chaining.
func (r *Result) WithDetail(key string, value interface{}) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns r for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
