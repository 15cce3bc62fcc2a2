// Package upstream talks to the remote object store that backs the cache.
// On a miss the proxy asks Client.Fetch for an object's bytes; transient
// failures (connection errors, 5xx) are retried with exponential back-off
// before the first byte is handed to the caller, never mid-stream.
package upstream
