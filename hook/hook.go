package hook

import (
	"fmt"
	"runtime/debug"
)

// Interface is a unit of work with explicit error and cleanup stages.
type Interface interface {
	Try() error
	Catch(err error) error
	Finally()
}

// PanicError is returned by Call when Try panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Call runs Try, passes its error through Catch and always runs Finally.
// A panic inside Try is recovered and returned as a *PanicError.
func Call(hook Interface) (err error) {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}

	defer hook.Finally()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	if tryErr := hook.Try(); tryErr != nil {
		return hook.Catch(tryErr)
	}
	return nil
}

// Funcs adapts plain functions to Interface. Nil fields are no-ops.
type Funcs struct {
	TryFunc     func() error
	CatchFunc   func(err error) error
	FinallyFunc func()
}

func (f Funcs) Try() error {
	if f.TryFunc == nil {
		return nil
	}
	return f.TryFunc()
}

func (f Funcs) Catch(err error) error {
	if f.CatchFunc == nil {
		return err
	}
	return f.CatchFunc(err)
}

func (f Funcs) Finally() {
	if f.FinallyFunc != nil {
		f.FinallyFunc()
	}
}
