// Package websocket pushes dataset changes to connected dashboards.
//
// A Hub owns the set of clients. Each Client runs a read pump, which only
// watches for disconnects and heartbeats, and a write pump, which drains
// the client's buffered send queue and pings the peer. Slow clients whose
// queue fills up are dropped instead of blocking a broadcast.
package websocket
