/*
Package streaming writes long-lived HTTP responses that push data as it
becomes available.

# Overview

A slow or vanished client must not pin a handler forever. Writer bounds
every write with its own deadline through http.ResponseController and
flushes after each write so the client sees data immediately. Because
deadlines are per write, the server itself can keep WriteTimeout at zero.

# Polling Streams

StreamJSON polls a function and writes each value it returns as one line
of newline-delimited JSON:

	err := streaming.StreamJSON(r.Context(), w, streaming.DefaultConfig(),
		func(ctx context.Context) (any, bool, error) {
			job, err := svc.Get(ctx, id)
			if err != nil {
				return nil, false, err
			}
			return job, job.Status.Terminal(), nil
		})

Returning a nil value skips the write for that tick. The stream ends when
the function reports done, the request context ends (ErrClientGone), or
MaxDuration passes (ErrMaxDuration).

Headers must not have been written before StreamJSON is called; it sets
Content-Type to application/x-ndjson and disables caching.
*/
package streaming
