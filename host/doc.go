// Package host runs workflow bundles in a wazero sandbox.
//
// A Manager owns exactly one current Instance at a time. Each Instance has
// its own runtime, its own host-owned linear memory and its own set of entry
// points; replacing the bundle builds all of them anew and discards the old
// ones only after the outgoing bundle has shut down.
//
// When no bundle file exists the Manager runs an empty, unprovisioned
// instance so the agent can still connect and receive its first bundle.
package host
