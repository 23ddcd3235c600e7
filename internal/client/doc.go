// Package client owns the local proxy surface for driver objects.
//
// Ownership boundary:
// - object factory (type tag -> proxy constructor)
// - per-entity proxy types and their thin call wrappers
// - driver launch/initialize glue
//
// Every proxy method is serialize-arguments, one call, deserialize-result;
// protocol mechanics live in internal/rpc.
package client
