package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindDevice     ErrorKind = "device"
	KindChannel    ErrorKind = "channel"
	KindCompletion ErrorKind = "completion"
	KindSynthesis  ErrorKind = "synthesis"
	KindPlayback   ErrorKind = "playback"
	KindConfig     ErrorKind = "config"
)

var (
	ErrNoDevice       = errors.New("no audio device available")
	ErrChannelClosed  = errors.New("streaming channel closed")
	ErrEmptyResponse  = errors.New("empty response")
	ErrUnknownVariant = errors.New("unknown prompt variant")
)

// Error tags a failure with the stage that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func DeviceError(op string, err error) error     { return NewError(KindDevice, op, err) }
func ChannelError(op string, err error) error    { return NewError(KindChannel, op, err) }
func CompletionError(op string, err error) error { return NewError(KindCompletion, op, err) }
func SynthesisError(op string, err error) error  { return NewError(KindSynthesis, op, err) }
func PlaybackError(op string, err error) error   { return NewError(KindPlayback, op, err) }
func ConfigError(op string, err error) error     { return NewError(KindConfig, op, err) }

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// EnsureKind wraps err with kind unless it already carries one.
func EnsureKind(kind ErrorKind, op string, err error) error {
	if err == nil || KindOf(err) != "" {
		return err
	}
	return NewError(kind, op, err)
}
