// Package eventbus is the in-process publish/subscribe hub that decouples
// the broker client and dispatch orchestrator from the real-time gateway.
//
// Topics:
//   - connection_status_update: broker status transitions
//   - device_response: decoded device responses
//   - command_usage: one event per accepted dispatch
//   - echo: development connectivity test
//
// Delivery is asynchronous and bounded per subscriber. Handler errors and
// panics are logged and never reach the publisher or other subscribers.
package eventbus
