package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means scoring works but evidence is not reaching storage.
	Degraded Status = "degraded"
	// Unhealthy means durable storage is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckSkipped marks a component not configured (memory mode).
	CheckSkipped CheckResult = "skipped"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	storage StoragePinger
	flusher FlushReporter
}

// New creates a Service. storage is nil in memory mode; flusher may be nil.
func New(storage StoragePinger, flusher FlushReporter) *Service {
	return &Service{storage: storage, flusher: flusher}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{"storage": CheckSkipped, "flush": CheckSkipped}
	status := Healthy

	if s.storage != nil {
		checks["storage"] = CheckOK
		if err := s.storage.Ping(ctx); err != nil {
			checks["storage"] = CheckError
			status = Unhealthy
		}
	}

	if s.flusher != nil {
		checks["flush"] = CheckOK
		if s.flusher.LastFlushError() != nil {
			checks["flush"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		}
	}

	return Report{Status: status, Checks: checks}
}
