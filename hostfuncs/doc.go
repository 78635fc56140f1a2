// Package hostfuncs provides pure Go implementations of the functions a
// sandbox can import from the agent.
// Handlers have NO WASM runtime dependencies; they see guest memory only
// through bridge.Memory. infrastructure/wazero adapts them to wazero.
package hostfuncs
