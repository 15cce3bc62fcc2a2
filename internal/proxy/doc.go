// Package proxy serves objects for the /v1/objects/:id route. A hit streams
// the committed cache entry through a read session; a miss fetches the object
// from upstream and tees the body into both the client response and a write
// session, so the entry is published only after the whole body was relayed.
package proxy
