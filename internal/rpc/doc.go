// Package rpc owns the connection runtime for one driver process.
//
// Ownership boundary:
// - pending-call correlation table and completion slots
// - remote-object identity registry with hierarchical ownership scopes
// - channel/owner stubs and guid<->object payload rewriting
// - event emitters and the wait-race primitive
//
// Concurrency model: one goroutine owns the transport read loop and is the
// only caller of dispatch. Callers issue sends from any goroutine and block
// on (or select over) their call's completion slot; the registry and the
// correlation table are guarded by the connection mutex so the two sides
// never race. A pending call settles exactly once.
package rpc
