// Package ports defines interfaces for infrastructure operations.
// Application code depends on these abstractions and infrastructure
// adapters implement them.
package ports
