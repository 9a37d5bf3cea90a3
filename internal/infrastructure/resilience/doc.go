/*
Package resilience provides the circuit breaker the gateway client uses to
fail fast while the bridge is unreachable.

# Usage

	breaker := resilience.New("gateway", resilience.Settings{
		Timeout: 5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsFailure: isTransportError,
	})

	err := breaker.Do(func() error {
		return call()
	})

# States

- Closed: calls pass through; counts reset every Interval
- Open: calls fail immediately with ErrCircuitOpen until Timeout elapses
- Half-Open: up to MaxRequests trial calls; that many successes close it, one failure reopens it

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[successes]-> Closed
	                                              |
	                                          [failure]
	                                              v
	                                             Open
*/
package resilience
