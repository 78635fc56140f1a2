package wazero

import (
	"context"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var bundleIDKey = &contextKey{name: "bundle_id"}

// WithBundleID adds the id of the bundle being called to the context.
func WithBundleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, bundleIDKey, id)
}

// BundleIDFromContext retrieves the bundle id from the context, or "" if
// none was set.
func BundleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(bundleIDKey).(string)
	return id
}
