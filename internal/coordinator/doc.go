// Package coordinator provides read-only membership data: which
// coordinators exist and which nodes hang off each of them.
//
// The tables are maintained by the commissioning tooling; this service
// never writes them.
package coordinator
