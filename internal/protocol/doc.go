// Package protocol owns the driver wire contract.
//
// Ownership boundary:
// - message envelope shapes (call, response, create, event)
// - remote error payloads
// - reserved protocol method names
package protocol
