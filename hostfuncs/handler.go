package hostfuncs

import (
	"context"
	"fmt"
)

// Handler implements one host function. args holds the raw i32 arguments
// in call order; the returned status is handed back to the guest.
//
// A returned error aborts the guest call. Wrap failures that must stop the
// agent in errors.FatalError.
type Handler func(ctx context.Context, env *Env, args []uint32) (int32, error)

// Function describes a host function: its import name, the number of i32
// parameters it takes and its implementation. Every host function returns a
// single i32.
type Function struct {
	Handler Handler
	Name    string
	Params  int
}

// ArgCountError is returned when a handler is invoked with the wrong number
// of arguments.
type ArgCountError struct {
	Function string
	Want     int
	Got      int
}

func (e *ArgCountError) Error() string {
	return fmt.Sprintf("%s: want %d arguments, got %d", e.Function, e.Want, e.Got)
}
