// Package xerrors attaches call-site information to errors so the log
// package can report where an error was created or wrapped.
//
// New, Newf, WithStack, EnsureTrace and Join record a stack. Wrap and Wrapf
// record only the single frame that added context.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxStackDepth = 64

// stacked carries the stack captured when the error entered our code.
type stacked struct {
	err error
	pcs []uintptr
}

func (s *stacked) Error() string       { return s.err.Error() }
func (s *stacked) Unwrap() error       { return s.err }
func (s *stacked) StackPCs() []uintptr { return s.pcs }
func (s *stacked) IsXerrorsWrapper()   {}

// wrapped adds a message and the frame that added it.
type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error     { return w.err }
func (w *wrapped) PC() uintptr       { return w.pc }
func (w *wrapped) IsXerrorsWrapper() {}

// callers skips runtime.Callers, itself and skip more frames.
func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func caller(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(2+skip, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

// stack wraps err with the stack of the caller skip frames above stack's caller.
func stack(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &stacked{err: err, pcs: callers(skip + 1)}
}

func hasStack(err error) bool {
	var s interface{ StackPCs() []uintptr }
	return errors.As(err, &s) && s != nil && len(s.StackPCs()) > 0
}

func New(msg string) error { return stack(errors.New(msg), 1) }

func Newf(format string, args ...any) error { return stack(fmt.Errorf(format, args...), 1) }

// WithStack records the caller's stack on err. nil stays nil.
func WithStack(err error) error { return stack(err, 1) }

// EnsureTrace is WithStack unless something in err's chain already has a stack.
func EnsureTrace(err error) error {
	if err == nil || hasStack(err) {
		return err
	}
	return stack(err, 1)
}

// Join combines errs like errors.Join and records the caller's stack.
// It returns nil when every err is nil.
func Join(errs ...error) error {
	joined := errors.Join(errs...)
	if joined == nil {
		return nil
	}
	return stack(joined, 1)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: caller(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: caller(1)}
}
