/*
Package correlator bridges fire-and-forget script execution to
request/response semantics.

A surface can run scripts but never returns their values. The correlator
tags every call with a fresh id, dispatches a wrapper script that runs
the tool and POSTs {id, result} to the callback endpoint, then waits on
the result store for that id:

	c := correlator.New(injector, store, correlator.Options{
		MaxAttempts:  50,
		PollInterval: 100 * time.Millisecond,
		CallbackURL:  "http://127.0.0.1:8765/api/results",
	}, logger)

	data, err := c.Invoke(ctx, correlator.Request{Tool: "ping"})

Failures are returned as *Error carrying one of the Code values.
*/
package correlator
