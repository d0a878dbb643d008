package health

import "context"

// ProxyPinger checks search proxy availability.
type ProxyPinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports tab usage.
type SessionCounter interface {
	Count() int
	Capacity() int
}
