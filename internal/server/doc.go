// Package server hosts the Fiber HTTP service and its request middleware
// chain. NewApp wires request IDs, panic recovery and the object route
// (/v1/objects/:id) into a ProxyHandler; diagnostics under /-/ are mounted
// by the routes subpackage. Keep exports narrow and accept explicit
// dependencies so tests can inject fake handlers.
package server
