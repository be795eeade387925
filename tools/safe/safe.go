package safe

import (
	"TravelRelay/logger"
	"TravelRelay/tools/errs"
)

// Go starts f in a new goroutine and recovers any panic, so that one
// misbehaving session cannot crash the entire gateway.
// onPanic (optional) runs after the panic has been logged.
func Go(name string, f func(), onPanic ...func(err error)) {
	go func() {
		defer Recover(name, onPanic...)
		f()
	}()
}

// Recover is meant to be deferred directly.
func Recover(name string, onPanic ...func(err error)) {
	r := recover()
	if r == nil {
		return
	}
	err := errs.ErrPanic(r)
	logger.Errorf("[safe] %s panic recovered: %+v", name, err)
	for _, h := range onPanic {
		if h != nil {
			h(err)
		}
	}
}

// DefaultString returns the fallback if s is empty.
func DefaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
