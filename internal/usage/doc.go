// Package usage records which commands operators send.
//
// The Recorder listens on the event bus. Each command_usage event becomes
// a row in the command_usage table and, when InfluxDB is enabled, a
// time-series point. Device responses are written to InfluxDB only.
package usage
