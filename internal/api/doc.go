// Package api is the HTTP surface of FieldLink Core.
//
// All routes live under /api/v1:
//
//	GET  /health               liveness, broker and database status
//	GET  /metrics              Prometheus exposition
//	GET  /ws                   real-time gateway (bearer token at upgrade)
//	GET  /commands             command catalog
//	POST /commands             dispatch; 202 {"orderId","frames"}
//	GET  /commands/broker      broker connection status
//	GET  /commands/usage       per-command usage counts
//	POST /commands/test-ws     echo broadcast (dev mode, admin only)
//	GET  /coordinators/nodes   nodes grouped by coordinator
//
// Errors use the body {"status", "code", "message"}.
package api
