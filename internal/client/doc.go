// Package client implements the client application runtime.
//
// It wires configuration, the local store, identity reconciliation, the
// credential manager, the connectivity monitor and background
// synchronization into a single process lifecycle.
package client
