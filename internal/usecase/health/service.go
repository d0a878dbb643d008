package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckFull indicates no more tabs can be opened.
	CheckFull CheckResult = "full"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	proxy    ProxyPinger
	sessions SessionCounter
}

// New creates a Service. sessions can be nil.
func New(proxy ProxyPinger, sessions SessionCounter) *Service {
	return &Service{proxy: proxy, sessions: sessions}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.proxy.Ping(ctx); err != nil {
		checks["proxy"] = CheckError
	} else {
		checks["proxy"] = CheckOK
	}

	if s.sessions != nil {
		if s.sessions.Count() >= s.sessions.Capacity() {
			checks["sessions"] = CheckFull
		} else {
			checks["sessions"] = CheckOK
		}
	}

	failed := 0
	for _, v := range checks {
		if v != CheckOK {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
