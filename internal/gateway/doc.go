// Package gateway is the real-time WebSocket fan-out.
//
// Admission happens once, before the upgrade: the bearer token comes from
// the Authorization header or from the sub-protocol pair "bearer, <token>"
// (the server then selects "bearer"). Only resolved users are upgraded and
// registered.
//
// Every event bus topic is broadcast as a JSON object whose "type" field
// names the topic, e.g.
//
//	{"type":"connection_status_update","status":"connected","previous":"connecting"}
//
// Each subscriber has a bounded send queue served by its own writer, so a
// slow socket only loses its own frames. A heartbeat pings every
// subscriber; one that has not answered by the next tick is dropped.
package gateway
