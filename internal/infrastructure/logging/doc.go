// Package logging provides structured logging for FieldLink Core.
//
// It wraps log/slog so every component logs JSON (or text) records carrying
// the service name and build version. Components derive child loggers with
// With("component", "...").
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file:
//	    path: "./logs/fieldlink.log"
//	    max_size: 50     # megabytes before rotation
//	    max_backups: 5
//	    max_age: 28      # days
//	    compress: true
//
// File output is rotated by lumberjack; call Close on shutdown.
//
// Never log bearer tokens or broker passwords.
package logging
