// Package command holds the catalog of device commands and their
// parameter contracts.
//
// The catalog is built once at startup and never mutated. Dispatch uses it
// to validate requests; the HTTP layer lists it for operators.
package command
