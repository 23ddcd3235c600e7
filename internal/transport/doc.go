// Package transport owns byte-stream delivery to and from the driver.
//
// Ownership boundary:
// - frame read loop and write side over one duplex stream
// - driver subprocess lifecycle (pipe transport)
// - inbound message callback registration
//
// A broken transport is fatal to its connection; nothing here retries.
package transport
