package sal

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is the closed set of failure kinds returned by a socket API. A nil
// error means ErrNone; every other kind may arrive wrapped with context, so
// callers branch with errors.Is or KindOf.
type Error uint8

const (
	ErrNone Error = iota
	ErrNullPointer
	ErrBadArgument
	ErrBadFamily
	ErrBadStack
	ErrBadAddress
	ErrSize
	ErrBadAlloc
	ErrNoConnection
	ErrWouldBlock
	ErrUnimplemented
	ErrUnknown
)

var errorNames = [...]string{
	ErrNone:          "no error",
	ErrNullPointer:   "null pointer",
	ErrBadArgument:   "bad argument",
	ErrBadFamily:     "bad family",
	ErrBadStack:      "bad stack",
	ErrBadAddress:    "bad address",
	ErrSize:          "size error",
	ErrBadAlloc:      "allocation failure",
	ErrNoConnection:  "no connection",
	ErrWouldBlock:    "would block",
	ErrUnimplemented: "unimplemented",
	ErrUnknown:       "unknown error",
}

func (e Error) Error() string {
	if int(e) < len(errorNames) {
		return "socket: " + errorNames[e]
	}
	return fmt.Sprintf("socket: error %d", uint8(e))
}

// KindOf reports the kind carried by err. Errors that do not wrap an Error
// are folded into ErrUnknown.
func KindOf(err error) Error {
	if err == nil {
		return ErrNone
	}
	var kind Error
	if errors.As(err, &kind) {
		return kind
	}
	return ErrUnknown
}
