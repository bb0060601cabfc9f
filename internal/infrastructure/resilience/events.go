package resilience

import "time"

// EventType names a resilience lifecycle event
type EventType string

const (
	EventRetry           EventType = "retry"
	EventCircuitOpened   EventType = "circuit_opened"
	EventCircuitHalfOpen EventType = "circuit_half_open"
	EventCircuitClosed   EventType = "circuit_closed"
)

// Event is emitted on retries and breaker state transitions
type Event struct {
	Type      EventType
	Attempt   int
	Delay     time.Duration
	Err       error
	FromState string
	ToState   string
}

// EventHandler receives events synchronously; it must not block
type EventHandler func(Event)

// emit logs the event and forwards it to every registered handler
func (p *Policy) emit(e Event) {
	fields := map[string]interface{}{
		"event": string(e.Type),
	}
	if e.Attempt > 0 {
		fields["attempt"] = e.Attempt
		fields["max_attempts"] = p.settings.MaxAttempts
	}
	if e.Delay > 0 {
		fields["delay_ms"] = e.Delay.Milliseconds()
	}
	if e.Err != nil {
		fields["error"] = e.Err.Error()
	}
	if e.ToState != "" {
		fields["from_state"] = e.FromState
		fields["to_state"] = e.ToState
	}

	switch e.Type {
	case EventRetry:
		p.logger.Warn("Upstream attempt failed, retrying", fields)
	case EventCircuitOpened:
		p.logger.Error("Circuit opened", fields)
	case EventCircuitHalfOpen:
		p.logger.Info("Circuit half-open; testing upstream health", fields)
	case EventCircuitClosed:
		p.logger.Info("Circuit closed; calls will flow again", fields)
	}

	for _, h := range p.handlers {
		h(e)
	}
}
