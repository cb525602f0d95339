// Package protocol defines the JSON frames exchanged with field devices.
//
// Outbound, a DeviceFrame carries a command code, addressing and up to four
// positional parameters. Inbound, DecodeResponse turns a payload into one of
// a closed set of Response variants selected by its command code; each
// variant constrains the params it may carry. Anything else is reported as
// ErrMalformed and is meant to be dropped by the caller.
package protocol
