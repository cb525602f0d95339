// Package broker owns the device link: it publishes command frames to the
// command topic, decodes responses from the response topic onto the event
// bus, and turns sampled connection status into edge-triggered events.
package broker
