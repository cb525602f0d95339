// Package dispatch turns operator command requests into device frames.
//
// A request is checked against the command catalog and the coordinator
// membership data, then expanded into one frame per coordinator (for
// coordinator commands) or one frame per requested node (for node
// commands). All frames of a request share one order id, which devices
// echo in their responses. Frames are published one at a time in the
// order the caller listed the coordinators; the first publish failure
// ends the request with ErrPartialPublish.
//
// Responses are not awaited here. They arrive on the event bus as
// device_response events.
package dispatch
