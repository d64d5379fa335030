// Package ws accepts chat connections and serves each one as a Session.
//
// A Session runs three goroutines under one errgroup:
//   - readPump decodes frames and queues them in arrival order
//   - dispatch routes queued messages and runs text generation
//   - writePump writes replies and keepalive pings
//
// Malformed frames are logged and dropped without closing the connection.
// Generation failures, including rate limiting, are answered with an ERROR
// message and affect only the session that sent the prompt.
package ws
