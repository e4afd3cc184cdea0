package safe

import (
	"TransitChat/logger"
	"fmt"
	"reflect"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required collaborators during construction.
func MustNotNil(v any, name string) {
	if v == nil || (reflect.ValueOf(v).Kind() == reflect.Ptr && reflect.ValueOf(v).IsNil()) {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
}

// Go starts a goroutine that recovers from panic, so a failing
// best-effort side effect can never take the gateway down.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %s panic recovered: %v", name, r)
			}
		}()
		f()
	}()
}

// Run is the synchronous variant of Go: it runs f in the calling
// goroutine but converts a panic into a logged event. Used for
// best-effort steps that must not abort the steps after them.
func Run(name string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[safe.Run] %s panic recovered: %v", name, r)
		}
	}()
	f()
}
